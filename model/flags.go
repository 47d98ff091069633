package model

// Flags holds the parsed command-line configuration.
type Flags struct {
	AccountsPath    string
	Environment     string
	BusinessUnit    string
	Concurrency     int
	Output          string
	Store           bool
	DBPath          string
	Trends          bool
	TrendDays       int
	Recommendations int
	Version         bool
}

// VersionInfo carries build-time version metadata.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

package model

// SecurityScore is a point-in-time 0-100 summary of unresolved findings.
// Scores are computed fresh on each aggregation and never mutated.
type SecurityScore struct {
	Score         float64 `json:"score"`
	Grade         string  `json:"grade"`
	Status        string  `json:"status"`
	CriticalCount int     `json:"critical_count"`
	HighCount     int     `json:"high_count"`
	MediumCount   int     `json:"medium_count"`
	LowCount      int     `json:"low_count"`
	TotalFindings int     `json:"total_findings"`
}

// AccountScore pairs an account with its computed score.
type AccountScore struct {
	AccountID   string        `json:"account_id"`
	AccountName string        `json:"account_name"`
	Score       SecurityScore `json:"score"`
}

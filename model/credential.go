package model

import "time"

// ExpiryBuffer is the window before expiration in which a credential is
// considered too stale to hand out. Callers holding a credential inside
// this window must re-issue instead of racing a last-minute renewal.
const ExpiryBuffer = 5 * time.Minute

// Credential is a set of temporary, role-scoped credentials issued by the
// provider's token service. It lives in memory only and is never written
// to durable storage.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
	RoleARN         string
	IssuedAt        time.Time
}

// Expired reports whether the credential's lifetime has fully elapsed.
func (c Credential) Expired() bool {
	return !time.Now().Before(c.Expiration)
}

// ExpiringSoon reports whether the credential has less than the expiry
// buffer remaining.
func (c Credential) ExpiringSoon() bool {
	return time.Until(c.Expiration) < ExpiryBuffer
}

package model

import "time"

// AuthMethod describes how a session is built for an account.
type AuthMethod string

const (
	AuthAccessKeys  AuthMethod = "access_keys"
	AuthAssumedRole AuthMethod = "assumed_role"
	AuthInstance    AuthMethod = "instance_identity"
)

// AccountStatus is the lifecycle state of a registered account.
type AccountStatus string

const (
	StatusPending      AccountStatus = "pending"
	StatusActive       AccountStatus = "active"
	StatusError        AccountStatus = "error"
	StatusDisconnected AccountStatus = "disconnected"
)

// Account is a validated record for one tenant-owned AWS account.
type Account struct {
	AccountID    string        `json:"account_id"`
	Name         string        `json:"name"`
	AuthMethod   AuthMethod    `json:"auth_method"`
	RoleARN      string        `json:"role_arn,omitempty"`
	ExternalID   string        `json:"external_id,omitempty"`
	AccessKeyID  string        `json:"access_key_id,omitempty"`
	SecretKey    string        `json:"secret_key,omitempty"`
	Regions      []string      `json:"regions"`
	Environment  string        `json:"environment,omitempty"`
	BusinessUnit string        `json:"business_unit,omitempty"`
	Status       AccountStatus `json:"status"`
	LastScanAt   *time.Time    `json:"last_scan_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// PrimaryRegion returns the first configured region.
func (a Account) PrimaryRegion() string {
	if len(a.Regions) == 0 {
		return ""
	}
	return a.Regions[0]
}

// Package registry holds validated account records for the scan fleet.
// It is pure bookkeeping: no operation contacts the cloud provider.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/thirukguru/aws-fleetscan/model"
)

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// ErrNotFound is returned when an account id is not registered.
var ErrNotFound = errors.New("account not found")

// Filter selects accounts on List. Zero-valued fields match everything;
// set fields are AND-combined.
type Filter struct {
	Environment  string
	BusinessUnit string
	Status       model.AccountStatus
}

// Service is the interface for the account registry.
type Service interface {
	Add(account model.Account) error
	Remove(accountID string) bool
	Get(accountID string) (model.Account, bool)
	List(filter Filter) []model.Account
	UpdateStatus(accountID string, status model.AccountStatus, errorMessage string) error
}

// NewService creates an empty account registry.
func NewService() Service {
	return &service{accounts: make(map[string]model.Account)}
}

type service struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
}

func (s *service) Add(account model.Account) error {
	if err := validate(account); err != nil {
		return err
	}
	if account.Status == "" {
		account.Status = model.StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.AccountID]; exists {
		return fmt.Errorf("account %s is already registered", account.AccountID)
	}
	s.accounts[account.AccountID] = account
	return nil
}

func (s *service) Remove(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return false
	}
	delete(s.accounts, accountID)
	return true
}

func (s *service) Get(accountID string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	return account, ok
}

func (s *service) List(filter Filter) []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		if filter.Environment != "" && account.Environment != filter.Environment {
			continue
		}
		if filter.BusinessUnit != "" && account.BusinessUnit != filter.BusinessUnit {
			continue
		}
		if filter.Status != "" && account.Status != filter.Status {
			continue
		}
		matched = append(matched, account)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].AccountID < matched[j].AccountID
	})
	return matched
}

func (s *service) UpdateStatus(accountID string, status model.AccountStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}

	account.Status = status
	account.LastError = errorMessage
	if status == model.StatusActive {
		now := time.Now().UTC()
		account.LastScanAt = &now
	}
	s.accounts[accountID] = account
	return nil
}

func validate(account model.Account) error {
	if !accountIDPattern.MatchString(account.AccountID) {
		return fmt.Errorf("account id %q must be exactly 12 digits", account.AccountID)
	}
	if account.Name == "" {
		return errors.New("account name is required")
	}
	if len(account.Regions) == 0 {
		return fmt.Errorf("account %s must have at least one region", account.AccountID)
	}

	switch account.AuthMethod {
	case model.AuthAssumedRole:
		if account.RoleARN == "" {
			return fmt.Errorf("account %s uses assumed role auth but has no role ARN", account.AccountID)
		}
	case model.AuthAccessKeys:
		if account.AccessKeyID == "" || account.SecretKey == "" {
			return fmt.Errorf("account %s uses access key auth but is missing key material", account.AccountID)
		}
	case model.AuthInstance:
		// Ambient identity needs no extra fields.
	default:
		return fmt.Errorf("account %s has unknown auth method %q", account.AccountID, account.AuthMethod)
	}
	return nil
}

// Package credcache provides an in-memory, TTL-aware cache of temporary
// role credentials keyed by role ARN.
package credcache

import (
	"sync"

	"github.com/thirukguru/aws-fleetscan/model"
)

// NewService creates an empty credential cache.
func NewService() Service {
	return &service{entries: make(map[string]model.Credential)}
}

type service struct {
	mu      sync.RWMutex
	entries map[string]model.Credential
}

// Service is the interface for the credential cache. Implementations are
// safe for concurrent callers but do not serialize issuance: two
// concurrent misses may both issue, and the last Put wins.
type Service interface {
	// Get returns the cached credential for a role, or false when there
	// is no entry or the entry is expired or expiring soon. Stale
	// entries are evicted on the way out.
	Get(roleARN string) (model.Credential, bool)
	Put(cred model.Credential)
	Invalidate(roleARN string)
	Clear()
	Len() int
}

func (s *service) Get(roleARN string) (model.Credential, bool) {
	s.mu.RLock()
	cred, ok := s.entries[roleARN]
	s.mu.RUnlock()
	if !ok {
		return model.Credential{}, false
	}
	if cred.ExpiringSoon() {
		// Lazy eviction: drop the stale entry so the caller re-issues.
		s.Invalidate(roleARN)
		return model.Credential{}, false
	}
	return cred, true
}

func (s *service) Put(cred model.Credential) {
	if cred.RoleARN == "" {
		return
	}
	s.mu.Lock()
	s.entries[cred.RoleARN] = cred
	s.mu.Unlock()
}

func (s *service) Invalidate(roleARN string) {
	s.mu.Lock()
	delete(s.entries, roleARN)
	s.mu.Unlock()
}

func (s *service) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]model.Credential)
	s.mu.Unlock()
}

func (s *service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

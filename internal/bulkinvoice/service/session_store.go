package service

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/smallbiznis/crewbill/internal/cache"
)

// sessionEntry serializes work on one session.
type sessionEntry struct {
	mu      sync.Mutex
	session domain.Session
}

type sessionStore struct {
	cache cache.Cache[string, *sessionEntry]
	ttl   func() time.Duration
}

func newSessionStore(c cache.Cache[string, *sessionEntry], ttl func() time.Duration) *sessionStore {
	return &sessionStore{cache: c, ttl: ttl}
}

func (s *sessionStore) create(session domain.Session) *sessionEntry {
	session.ID = ulid.Make().String()
	entry := &sessionEntry{session: session}
	s.cache.Set(session.ID, entry, s.ttl())
	return entry
}

// get returns the session when it belongs to orgID and refreshes its ttl.
func (s *sessionStore) get(orgID, id string) (*sessionEntry, bool) {
	entry, ok := s.cache.Get(id)
	if !ok || entry == nil {
		return nil, false
	}
	entry.mu.Lock()
	owner := entry.session.OrgID
	entry.mu.Unlock()
	if owner != orgID {
		return nil, false
	}
	s.cache.Set(id, entry, s.ttl())
	return entry, true
}

func (s *sessionStore) remove(id string) {
	s.cache.Delete(id)
}

// snapshot copies the session so callers never share slices with the store.
func snapshot(session domain.Session) domain.Session {
	out := session
	out.ProjectIDs = append([]string(nil), session.ProjectIDs...)
	out.Customers = append([]domain.CustomerGroup(nil), session.Customers...)
	out.Results = append([]domain.InvoiceResult(nil), session.Results...)
	if out.Customers == nil {
		out.Customers = []domain.CustomerGroup{}
	}
	return out
}

package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"vouch/internal/audit"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/tx"
)

// InMemoryStore keeps audit entries per tenant. Appends made inside a
// tx.MemoryRunner transaction are removed again if it rolls back.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.TenantID][]audit.Entry
	seq     int64
	now     func() time.Time
	failErr error
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides the append timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[id.TenantID][]audit.Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailWith makes every subsequent Append return err. Pass nil to recover.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *InMemoryStore) Append(ctx context.Context, entry audit.Entry) (*audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}

	s.seq++
	entry.ID = uuid.New()
	entry.Seq = s.seq
	entry.CreatedAt = s.now()
	entry.EventData = maps.Clone(entry.EventData)
	s.entries[entry.TenantID] = append(s.entries[entry.TenantID], entry)

	tx.OnRollback(ctx, func() { s.remove(entry.TenantID, entry.ID) })

	out := entry
	return &out, nil
}

func (s *InMemoryStore) remove(tenantID id.TenantID, entryID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tenantID] = slices.DeleteFunc(s.entries[tenantID], func(e audit.Entry) bool {
		return e.ID == entryID
	})
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.entries[tenantID])
	slices.SortStableFunc(out, func(a, b audit.Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

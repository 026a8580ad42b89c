package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vouch/internal/approval/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
)

type requestKey struct {
	tenant  id.TenantID
	request id.RequestID
}

// InMemoryStore keeps requests keyed by (tenant, id). Status changes are
// compare-and-set under the store lock.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[requestKey]*models.Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[requestKey]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := requestKey{req.TenantID, req.ID}
	if _, exists := s.requests[key]; exists {
		return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrAlreadyUsed)
	}
	copied := cloneRequest(req)
	s.requests[key] = copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tenantID id.TenantID, requestID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestKey{tenantID, requestID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *InMemoryStore) Exists(_ context.Context, tenantID id.TenantID, requestID id.RequestID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.requests[requestKey{tenantID, requestID}]
	return ok, nil
}

// Approve moves a SUBMITTED request to APPROVED. Any other current status
// yields sentinel.ErrInvalidState.
func (s *InMemoryStore) Approve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, at time.Time) (*models.Decision, error) {
	return s.decide(ctx, tenantID, requestID, func(req *models.Request) {
		req.Status = models.StatusApproved
		req.ApprovedAt = &at
		req.ApprovedBy = &actorID
		req.UpdatedAt = at
	}, models.StatusApproved, actorID, at)
}

// Reject moves a SUBMITTED request to REJECTED.
func (s *InMemoryStore) Reject(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, reason string, at time.Time) (*models.Decision, error) {
	return s.decide(ctx, tenantID, requestID, func(req *models.Request) {
		req.Status = models.StatusRejected
		req.RejectedAt = &at
		req.RejectedBy = &actorID
		req.RejectionReason = reason
		req.UpdatedAt = at
	}, models.StatusRejected, actorID, at)
}

func (s *InMemoryStore) decide(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, apply func(*models.Request), next models.Status, actorID id.UserID, at time.Time) (*models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := requestKey{tenantID, requestID}
	req, ok := s.requests[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !req.Status.CanTransitionTo(next) {
		return nil, sentinel.ErrInvalidState
	}

	before := cloneRequest(req)
	apply(req)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests[key] = before
	})

	return &models.Decision{RequestID: requestID, Status: next, DecidedAt: at, DecidedBy: actorID}, nil
}

func cloneRequest(req *models.Request) *models.Request {
	out := *req
	if req.EvidenceTTLSeconds != nil {
		v := *req.EvidenceTTLSeconds
		out.EvidenceTTLSeconds = &v
	}
	if req.ApprovedAt != nil {
		v := *req.ApprovedAt
		out.ApprovedAt = &v
	}
	if req.ApprovedBy != nil {
		v := *req.ApprovedBy
		out.ApprovedBy = &v
	}
	if req.RejectedAt != nil {
		v := *req.RejectedAt
		out.RejectedAt = &v
	}
	if req.RejectedBy != nil {
		v := *req.RejectedBy
		out.RejectedBy = &v
	}
	return &out
}

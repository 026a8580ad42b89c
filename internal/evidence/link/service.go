// Package link attaches evidence files to requests and answers whether a
// request's evidence is present and fresh.
package link

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vouch/internal/audit"
	"vouch/internal/evidence/metrics"
	"vouch/internal/evidence/models"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
	"vouch/pkg/requestcontext"
)

type LinkStore interface {
	Create(ctx context.Context, link *models.Link) error
	ListByRequest(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) ([]models.LinkedEvidence, error)
	LatestLinkedAt(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, readyOnly bool) (time.Time, bool, error)
}

type FileReader interface {
	FindByID(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID) (*models.EvidenceFile, error)
}

// RequestChecker reports whether a request exists within a tenant.
type RequestChecker interface {
	Exists(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (bool, error)
}

type AuditTrail interface {
	Append(ctx context.Context, tenantID id.TenantID, actorID id.UserID, traceID string, name audit.EventName, data map[string]any) (*audit.Entry, error)
}

// Service is the evidence link registry.
type Service struct {
	links     LinkStore
	files     FileReader
	requests  RequestChecker
	trail     AuditTrail
	runner    tx.Runner
	readyOnly bool
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithReadyEvidenceOnly restricts evidence counting and freshness to files
// whose status is READY.
func WithReadyEvidenceOnly(enabled bool) Option {
	return func(s *Service) {
		s.readyOnly = enabled
	}
}

func New(links LinkStore, files FileReader, requests RequestChecker, trail AuditTrail, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		links:    links,
		files:    files,
		requests: requests,
		trail:    trail,
		runner:   runner,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Link attaches fileID to requestID. Both must exist in the tenant and the
// pair must not already be linked.
func (s *Service) Link(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, fileID id.EvidenceFileID, actorID id.UserID) (*models.Link, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant_id is required")
	}

	exists, err := s.requests.Exists(ctx, tenantID, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	if _, err := s.files.FindByID(ctx, tenantID, fileID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence file not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence file")
	}

	link := &models.Link{
		ID:             id.NewLinkID(),
		TenantID:       tenantID,
		RequestID:      requestID,
		EvidenceFileID: fileID,
		LinkedBy:       actorID,
		CreatedAt:      requestcontext.Now(ctx),
	}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.links.Create(ctx, link); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "already linked")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create evidence link")
		}
		_, err := s.trail.Append(ctx, tenantID, actorID, requestcontext.TraceID(ctx), audit.EventEvidenceLinked, map[string]any{
			"requestId":      requestID.String(),
			"evidenceFileId": fileID.String(),
			"linkId":         link.ID.String(),
		})
		return err
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncLinkConflicts()
		}
		return nil, err
	}

	s.metrics.IncLinksCreated()
	s.logger.InfoContext(ctx, "evidence linked",
		"tenant_id", tenantID.String(),
		"request_id", requestID.String(),
		"evidence_file_id", fileID.String(),
	)
	return link, nil
}

// List returns the request's evidence, oldest link first. An unknown request
// is NotFound; a request without links returns an empty slice.
func (s *Service) List(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) ([]models.LinkedEvidence, error) {
	exists, err := s.requests.Exists(ctx, tenantID, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	items, err := s.links.ListByRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list evidence")
	}
	return items, nil
}

// CheckFreshness measures the request's newest evidence against ttlSeconds.
//
//   - no evidence: HasEvidence=false, IsFresh=nil
//   - evidence, no TTL: IsFresh=true
//   - evidence and TTL: AgeSeconds=floor(now-latest) clamped at 0, IsFresh=AgeSeconds<=TTL
func (s *Service) CheckFreshness(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, ttlSeconds *int64) (*models.Freshness, error) {
	latest, found, err := s.links.LatestLinkedAt(ctx, tenantID, requestID, s.readyOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read evidence freshness")
	}
	if !found {
		s.metrics.IncFreshnessCheck("none")
		return &models.Freshness{HasEvidence: false}, nil
	}

	out := &models.Freshness{HasEvidence: true, LatestEvidenceAt: &latest}
	fresh := true
	if ttlSeconds != nil {
		age := int64(requestcontext.Now(ctx).Sub(latest) / time.Second)
		if age < 0 {
			age = 0
		}
		out.AgeSeconds = &age
		fresh = age <= *ttlSeconds
	}
	out.IsFresh = &fresh

	if fresh {
		s.metrics.IncFreshnessCheck("fresh")
	} else {
		s.metrics.IncFreshnessCheck("stale")
	}
	return out, nil
}

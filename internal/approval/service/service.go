// Package service implements the approval guard: a request is approved only
// when its evidence policy is satisfied, and every attempt leaves an audit
// trail whether it succeeds or not.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vouch/internal/approval/metrics"
	"vouch/internal/approval/models"
	"vouch/internal/audit"
	evidencemodels "vouch/internal/evidence/models"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
	"vouch/pkg/requestcontext"
)

const maxRejectionReasonLength = 1000

type Store interface {
	FindByID(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*models.Request, error)
	Approve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, at time.Time) (*models.Decision, error)
	Reject(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, reason string, at time.Time) (*models.Decision, error)
}

type EvidenceChecker interface {
	CheckFreshness(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, ttlSeconds *int64) (*evidencemodels.Freshness, error)
}

type AuditTrail interface {
	Append(ctx context.Context, tenantID id.TenantID, actorID id.UserID, traceID string, name audit.EventName, data map[string]any) (*audit.Entry, error)
}

// Service is the approval guard and request state machine.
type Service struct {
	requests Store
	evidence EvidenceChecker
	trail    AuditTrail
	runner   tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
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

func New(requests Store, evidence EvidenceChecker, trail AuditTrail, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		requests: requests,
		evidence: evidence,
		trail:    trail,
		runner:   runner,
		logger:   slog.Default(),
		tracer:   otel.Tracer("vouch/approval"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a request within the tenant.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*models.Request, error) {
	req, err := s.requests.FindByID(ctx, tenantID, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	return req, nil
}

// Approve evaluates the request's evidence policy and, if it holds, moves the
// request to APPROVED.
//
// The approval.attempted entry is committed before anything is evaluated.
// A blocked attempt appends its approval.blocked.* entry and returns a coded
// error carrying the measurements. A passing attempt updates the status and
// appends approval.succeeded in one transaction that ignores caller
// cancellation; if the audit write fails the status change is rolled back.
func (s *Service) Approve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID) (*models.Decision, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "approval.approve", trace.WithAttributes(
		attribute.String("request.id", requestID.String()),
		attribute.String("tenant.id", tenantID.String()),
	))
	defer span.End()
	defer func() { s.metrics.ObserveApprovalLatency(time.Since(start)) }()

	traceID := requestcontext.TraceID(ctx)

	req, err := s.Get(ctx, tenantID, requestID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, s.outcome(ctx, span, "not_found", err)
		}
		return nil, s.outcome(ctx, span, "error", err)
	}
	policy := req.Policy()

	if _, err := s.trail.Append(ctx, tenantID, actorID, traceID, audit.EventApprovalAttempted, map[string]any{
		"requestId":        requestID.String(),
		"status":           req.Status.String(),
		"evidenceRequired": policy.EvidenceRequired,
		"ttlSeconds":       optional(policy.EvidenceTTLSeconds),
	}); err != nil {
		return nil, s.outcome(ctx, span, "error", err)
	}

	if req.Status != models.StatusSubmitted {
		if _, err := s.trail.Append(ctx, tenantID, actorID, traceID, audit.EventApprovalInvalidState, map[string]any{
			"requestId": requestID.String(),
			"status":    req.Status.String(),
		}); err != nil {
			return nil, s.outcome(ctx, span, "error", err)
		}
		return nil, s.outcome(ctx, span, "invalid_state",
			dErrors.New(dErrors.CodeConflict, "request is not awaiting approval").
				WithDetails(map[string]any{"status": req.Status.String()}))
	}

	freshness, err := s.evidence.CheckFreshness(ctx, tenantID, requestID, policy.EvidenceTTLSeconds)
	if err != nil {
		return nil, s.outcome(ctx, span, "error", err)
	}
	measurements := guardDetails(policy, freshness)

	if policy.EvidenceRequired && !freshness.HasEvidence {
		if _, err := s.trail.Append(ctx, tenantID, actorID, traceID, audit.EventApprovalEvidenceRequired, map[string]any{
			"requestId":   requestID.String(),
			"required":    true,
			"hasEvidence": false,
		}); err != nil {
			return nil, s.outcome(ctx, span, "error", err)
		}
		return nil, s.outcome(ctx, span, "evidence_required",
			dErrors.New(dErrors.CodeEvidenceRequired, "evidence is required before approval").WithDetails(measurements))
	}

	if freshness.IsFresh != nil && !*freshness.IsFresh {
		if _, err := s.trail.Append(ctx, tenantID, actorID, traceID, audit.EventApprovalEvidenceStale, map[string]any{
			"requestId":        requestID.String(),
			"ttlSeconds":       optional(policy.EvidenceTTLSeconds),
			"ageSeconds":       optional(freshness.AgeSeconds),
			"latestEvidenceAt": formatTime(freshness.LatestEvidenceAt),
		}); err != nil {
			return nil, s.outcome(ctx, span, "error", err)
		}
		return nil, s.outcome(ctx, span, "evidence_stale",
			dErrors.New(dErrors.CodeEvidenceStale, "evidence is older than the allowed age").WithDetails(measurements))
	}

	var decision *models.Decision
	err = s.runner.RunInTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		d, err := s.requests.Approve(ctx, tenantID, requestID, actorID, requestcontext.Now(ctx))
		if err != nil {
			return translateDecisionErr(err, "request is no longer awaiting approval")
		}
		data := map[string]any{
			"requestId":        requestID.String(),
			"approvedAt":       d.DecidedAt.UTC().Format(time.RFC3339Nano),
			"approvedBy":       actorID.String(),
			"evidenceRequired": policy.EvidenceRequired,
			"ttlSeconds":       optional(policy.EvidenceTTLSeconds),
			"hasEvidence":      freshness.HasEvidence,
			"ageSeconds":       optional(freshness.AgeSeconds),
			"latestEvidenceAt": formatTime(freshness.LatestEvidenceAt),
		}
		if _, err := s.trail.Append(ctx, tenantID, actorID, traceID, audit.EventApprovalSucceeded, data); err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, s.outcome(ctx, span, "conflict", err)
		}
		return nil, s.outcome(ctx, span, "error", err)
	}

	s.metrics.IncApprovalOutcome("approved")
	s.logger.InfoContext(ctx, "request approved",
		"tenant_id", tenantID.String(),
		"request_id", requestID.String(),
		"actor_id", actorID.String(),
		"trace_id", traceID,
	)
	return decision, nil
}

// Reject moves a SUBMITTED request to REJECTED. No evidence policy applies.
func (s *Service) Reject(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, reason string) (*models.Decision, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxRejectionReasonLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "reason must be 1000 characters or less")
	}
	traceID := requestcontext.TraceID(ctx)

	var decision *models.Decision
	err := s.runner.RunInTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		d, err := s.requests.Reject(ctx, tenantID, requestID, actorID, reason, requestcontext.Now(ctx))
		if err != nil {
			return translateDecisionErr(err, "request is not awaiting a decision")
		}
		if _, err := s.trail.Append(ctx, tenantID, actorID, traceID, audit.EventRejectionSucceeded, map[string]any{
			"requestId":  requestID.String(),
			"rejectedAt": d.DecidedAt.UTC().Format(time.RFC3339Nano),
			"rejectedBy": actorID.String(),
			"reason":     reason,
		}); err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeConflict):
			s.metrics.IncRejectionOutcome("conflict")
		case dErrors.HasCode(err, dErrors.CodeNotFound):
		default:
			s.metrics.IncRejectionOutcome("error")
			s.logger.ErrorContext(ctx, "reject request failed", "request_id", requestID.String(), "error", err)
		}
		return nil, err
	}

	s.metrics.IncRejectionOutcome("rejected")
	s.logger.InfoContext(ctx, "request rejected",
		"tenant_id", tenantID.String(),
		"request_id", requestID.String(),
		"actor_id", actorID.String(),
	)
	return decision, nil
}

func (s *Service) outcome(ctx context.Context, span trace.Span, outcome string, err error) error {
	s.metrics.IncApprovalOutcome(outcome)
	span.SetAttributes(attribute.String("approval.outcome", outcome))
	if outcome == "error" {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "approval failed", "error", err)
	}
	return err
}

func translateDecisionErr(err error, conflictMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, conflictMsg)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request status")
}

func guardDetails(policy models.Policy, f *evidencemodels.Freshness) map[string]any {
	return map[string]any{
		"hasEvidence":      f.HasEvidence,
		"ageSeconds":       f.AgeSeconds,
		"ttlSeconds":       optional(policy.EvidenceTTLSeconds),
		"latestEvidenceAt": formatTime(f.LatestEvidenceAt),
	}
}

// formatTime and optional keep absent measurements as JSON null.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func optional(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

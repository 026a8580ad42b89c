// Package audit records approval and evidence facts in an append-only trail.
//
// The Trail is fail-closed: if an entry cannot be persisted the error is
// returned and the calling operation MUST fail. Nothing is buffered or retried
// in-process.
package audit

import (
	"context"
	"log/slog"
	"time"

	"vouch/internal/audit/metrics"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// Store persists audit entries. Implementations assign ID, Seq and CreatedAt
// and must join a transaction carried in ctx when one is present.
type Store interface {
	Append(ctx context.Context, entry Entry) (*Entry, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Entry, error)
}

// Trail appends audit entries synchronously.
type Trail struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Trail.
type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) {
		t.metrics = m
	}
}

func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{store: store}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append writes one entry. actorID may be nil for system events.
func (t *Trail) Append(ctx context.Context, tenantID id.TenantID, actorID id.UserID, traceID string, name EventName, data map[string]any) (*Entry, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit entry requires tenant_id")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit entry requires event_name")
	}
	if data == nil {
		data = map[string]any{}
	}

	start := time.Now()
	entry, err := t.store.Append(ctx, Entry{
		TenantID:  tenantID,
		ActorID:   actorID,
		TraceID:   traceID,
		EventName: name,
		EventData: data,
	})
	if err != nil {
		t.metrics.IncPersistFailures()
		if t.logger != nil {
			t.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"event", string(name),
				"tenant_id", tenantID.String(),
				"trace_id", traceID,
				"error", err,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit persistence failed")
	}

	t.metrics.ObservePersistDuration(time.Since(start))
	t.metrics.IncAppended(string(name))
	return entry, nil
}

// List returns a tenant's entries ordered by (CreatedAt, Seq).
func (t *Trail) List(ctx context.Context, tenantID id.TenantID) ([]Entry, error) {
	entries, err := t.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	return entries, nil
}

// Package outbox publishes committed audit entries from the Postgres outbox
// table to the audit stream.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vouch/internal/audit/metrics"
	auditstore "vouch/internal/audit/store"
	"vouch/pkg/platform/tx"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 5 * time.Second
)

// Source reads and acknowledges outbox rows. Both calls receive the relay's
// transaction context.
type Source interface {
	ClaimPending(ctx context.Context, limit int) ([]auditstore.OutboxRecord, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Sink delivers a batch to the audit stream. It returns only once every
// record is acknowledged.
type Sink interface {
	Publish(ctx context.Context, records []auditstore.OutboxRecord) error
}

// Relay drains the outbox on every wakeup and on a fallback poll interval.
type Relay struct {
	source    Source
	sink      Sink
	runner    tx.Runner
	wake      <-chan struct{}
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithWakeup makes the relay drain as soon as a signal arrives.
func WithWakeup(ch <-chan struct{}) Option {
	return func(r *Relay) {
		r.wake = ch
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(source Source, sink Sink, runner tx.Runner, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		sink:      sink,
		runner:    runner,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			r.metrics.IncRelayFailures()
			r.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
			return
		}
		if n < r.batchSize {
			return
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it published.
// Rows are marked only after the sink acknowledged them, so a crash between
// the two replays the batch; consumers dedupe on the entry id.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.runner.RunInTx(ctx, func(ctx context.Context) error {
		records, err := r.source.ClaimPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := r.sink.Publish(ctx, records); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
		}
		if err := r.source.MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.metrics.AddRelayPublished(published)
	return published, nil
}

package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ChannelAuditOutbox is the NOTIFY channel raised by the audit_outbox insert trigger.
const ChannelAuditOutbox = "audit_outbox"

// Listener turns Postgres notifications into relay wakeups.
type Listener struct {
	listener *pq.Listener
	wake     chan struct{}
	logger   *slog.Logger
}

// NewListener opens a dedicated LISTEN connection using a lib/pq DSN.
func NewListener(dsn string, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Listener{wake: make(chan struct{}, 1), logger: logger}
	l.listener = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("audit outbox listener event", "event", int(ev), "error", err)
		}
	})
	if err := l.listener.Listen(ChannelAuditOutbox); err != nil {
		_ = l.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", ChannelAuditOutbox, err)
	}
	return l, nil
}

// Wakeups is passed to WithWakeup. Signals coalesce while the relay is busy.
func (l *Listener) Wakeups() <-chan struct{} {
	return l.wake
}

// Run forwards notifications until ctx is cancelled. A nil notification
// means the connection was re-established, which may have dropped signals.
func (l *Listener) Run(ctx context.Context) error {
	defer l.listener.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.listener.Notify:
			select {
			case l.wake <- struct{}{}:
			default:
			}
		}
	}
}

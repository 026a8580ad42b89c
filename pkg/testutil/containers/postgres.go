//go:build integration

package containers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"vouch/internal/platform/config"
	"vouch/internal/platform/postgres"
)

// PostgresContainer is a migrated Postgres for store integration tests.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	DSN       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts Postgres, applies the embedded migrations and
// registers cleanup on t.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("vouch"),
		tcpostgres.WithUsername("vouch"),
		tcpostgres.WithPassword("vouch"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	pool, err := postgres.Open(ctx, config.Database{URL: dsn, MaxConns: 20})
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return &PostgresContainer{Container: container, DSN: dsn, Pool: pool}
}

// Truncate empties the domain tables between tests. audit_log rejects DELETE
// so TRUNCATE is used, which row triggers do not see.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `TRUNCATE audit_outbox, audit_log, request_evidence_links, evidence_files, approval_requests`)
	return err
}

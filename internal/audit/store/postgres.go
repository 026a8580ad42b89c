package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/audit"
	id "vouch/pkg/domain"
	txcontext "vouch/pkg/platform/tx"
)

// PostgresStore appends to audit_log and, in the same transaction, to
// audit_outbox for the relay to publish. created_at is assigned by the
// database with clock_timestamp().
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type dbQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// outboxPayload is the JSON published on the audit stream.
type outboxPayload struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	TenantID  string         `json:"tenant_id"`
	ActorID   string         `json:"actor_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	EventName string         `json:"event_name"`
	EventData map[string]any `json:"event_data"`
	CreatedAt string         `json:"created_at"`
}

// Append joins the transaction carried by ctx. Without one it opens its own,
// so an audit row is never committed without its outbox row.
func (s *PostgresStore) Append(ctx context.Context, entry audit.Entry) (*audit.Entry, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.appendWith(ctx, tx, entry)
	}
	var out *audit.Entry
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		appended, err := s.appendWith(ctx, tx, entry)
		if err != nil {
			return err
		}
		out = appended
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) appendWith(ctx context.Context, q dbQuerier, entry audit.Entry) (*audit.Entry, error) {
	data, err := json.Marshal(entry.EventData)
	if err != nil {
		return nil, fmt.Errorf("marshal audit event data: %w", err)
	}

	entry.ID = uuid.New()
	query := `
		INSERT INTO audit_log (id, tenant_id, actor_id, trace_id, event_name, event_data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq, created_at
	`
	err = q.QueryRow(ctx, query,
		entry.ID,
		uuid.UUID(entry.TenantID),
		nullableUUID(uuid.UUID(entry.ActorID)),
		entry.TraceID,
		string(entry.EventName),
		data,
	).Scan(&entry.Seq, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	payload := outboxPayload{
		ID:        entry.ID.String(),
		Seq:       entry.Seq,
		TenantID:  entry.TenantID.String(),
		TraceID:   entry.TraceID,
		EventName: string(entry.EventName),
		EventData: entry.EventData,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !entry.ActorID.IsNil() {
		payload.ActorID = entry.ActorID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO audit_outbox (id, tenant_id, event_name, payload)
		VALUES ($1, $2, $3, $4)
	`, entry.ID, uuid.UUID(entry.TenantID), string(entry.EventName), payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("insert outbox entry: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]audit.Entry, error) {
	rows, err := s.querier(ctx).Query(ctx, `
		SELECT id, seq, tenant_id, actor_id, trace_id, event_name, event_data, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at, seq
	`, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			tenant  uuid.UUID
			actor   *uuid.UUID
			name    string
			rawData []byte
		)
		if err := rows.Scan(&e.ID, &e.Seq, &tenant, &actor, &e.TraceID, &name, &rawData, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.TenantID = id.TenantID(tenant)
		if actor != nil {
			e.ActorID = id.UserID(*actor)
		}
		e.EventName = audit.EventName(name)
		if err := json.Unmarshal(rawData, &e.EventData); err != nil {
			return nil, fmt.Errorf("decode audit event data: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// OutboxRecord is one unpublished outbox row.
type OutboxRecord struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	EventName string
	Payload   []byte
}

// ClaimPending locks up to limit unpublished rows for the duration of the
// transaction in ctx, skipping rows held by another relay.
func (s *PostgresStore) ClaimPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	rows, err := s.querier(ctx).Query(ctx, `
		SELECT id, tenant_id, event_name, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var r OutboxRecord
		if err := rows.Scan(&r.ID, &r.TenantID, &r.EventName, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return records, nil
}

// MarkPublished stamps published_at on the given outbox rows.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.querier(ctx).Exec(ctx, `
		UPDATE audit_outbox SET published_at = clock_timestamp()
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vouch/internal/approval/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	txcontext "vouch/pkg/platform/tx"
)

// PostgresStore persists requests in approval_requests.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type dbQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

const requestColumns = `id, tenant_id, title, status, evidence_required_for_approval, evidence_ttl_seconds,
	approved_at, approved_by, rejected_at, rejected_by, rejection_reason, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	_, err := s.querier(ctx).Exec(ctx, `
		INSERT INTO approval_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(req.ID),
		uuid.UUID(req.TenantID),
		req.Title,
		string(req.Status),
		req.EvidenceRequiredForApproval,
		req.EvidenceTTLSeconds,
		req.ApprovedAt,
		userPtr(req.ApprovedBy),
		req.RejectedAt,
		userPtr(req.RejectedBy),
		req.RejectionReason,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*models.Request, error) {
	row := s.querier(ctx).QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM approval_requests
		WHERE tenant_id = $1 AND id = $2
	`, uuid.UUID(tenantID), uuid.UUID(requestID))

	var (
		req        models.Request
		reqID      uuid.UUID
		tenant     uuid.UUID
		status     string
		approvedBy *uuid.UUID
		rejectedBy *uuid.UUID
	)
	err := row.Scan(&reqID, &tenant, &req.Title, &status, &req.EvidenceRequiredForApproval, &req.EvidenceTTLSeconds,
		&req.ApprovedAt, &approvedBy, &req.RejectedAt, &rejectedBy, &req.RejectionReason, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	req.ID = id.RequestID(reqID)
	req.TenantID = id.TenantID(tenant)
	req.Status = models.Status(status)
	if approvedBy != nil {
		u := id.UserID(*approvedBy)
		req.ApprovedBy = &u
	}
	if rejectedBy != nil {
		u := id.UserID(*rejectedBy)
		req.RejectedBy = &u
	}
	return &req, nil
}

func (s *PostgresStore) Exists(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (bool, error) {
	var exists bool
	err := s.querier(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM approval_requests WHERE tenant_id = $1 AND id = $2)
	`, uuid.UUID(tenantID), uuid.UUID(requestID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check request exists: %w", err)
	}
	return exists, nil
}

// Approve is a conditional update guarded on status = SUBMITTED. The
// returned DecidedAt is the value Postgres stored, at its precision.
func (s *PostgresStore) Approve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, at time.Time) (*models.Decision, error) {
	var decidedAt time.Time
	err := s.querier(ctx).QueryRow(ctx, `
		UPDATE approval_requests
		SET status = $3, approved_at = $4, approved_by = $5, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND status = $6
		RETURNING approved_at
	`, uuid.UUID(tenantID), uuid.UUID(requestID),
		string(models.StatusApproved), at, uuid.UUID(actorID),
		string(models.StatusSubmitted),
	).Scan(&decidedAt)
	if err != nil {
		return nil, s.zeroRows(ctx, err, tenantID, requestID)
	}
	return &models.Decision{RequestID: requestID, Status: models.StatusApproved, DecidedAt: decidedAt, DecidedBy: actorID}, nil
}

func (s *PostgresStore) Reject(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, reason string, at time.Time) (*models.Decision, error) {
	var decidedAt time.Time
	err := s.querier(ctx).QueryRow(ctx, `
		UPDATE approval_requests
		SET status = $3, rejected_at = $4, rejected_by = $5, rejection_reason = $6, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND status = $7
		RETURNING rejected_at
	`, uuid.UUID(tenantID), uuid.UUID(requestID),
		string(models.StatusRejected), at, uuid.UUID(actorID), reason,
		string(models.StatusSubmitted),
	).Scan(&decidedAt)
	if err != nil {
		return nil, s.zeroRows(ctx, err, tenantID, requestID)
	}
	return &models.Decision{RequestID: requestID, Status: models.StatusRejected, DecidedAt: decidedAt, DecidedBy: actorID}, nil
}

func (s *PostgresStore) zeroRows(ctx context.Context, err error, tenantID id.TenantID, requestID id.RequestID) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update request status: %w", err)
	}
	exists, existsErr := s.Exists(ctx, tenantID, requestID)
	if existsErr != nil {
		return existsErr
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func userPtr(u *id.UserID) *uuid.UUID {
	if u == nil {
		return nil
	}
	v := uuid.UUID(*u)
	return &v
}

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

	"vouch/internal/evidence/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	txcontext "vouch/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

type dbQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func querier(ctx context.Context, pool *pgxpool.Pool) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return pool
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// PostgresFileStore persists evidence files in evidence_files.
type PostgresFileStore struct {
	pool *pgxpool.Pool
}

func NewPostgresFileStore(pool *pgxpool.Pool) *PostgresFileStore {
	return &PostgresFileStore{pool: pool}
}

const fileColumns = `id, tenant_id, original_name, mime_type, size_bytes, status,
	source_key, view_key, checksum, uploaded_by, created_at`

func (s *PostgresFileStore) Save(ctx context.Context, f *models.EvidenceFile) error {
	_, err := querier(ctx, s.pool).Exec(ctx, `
		INSERT INTO evidence_files (`+fileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(f.ID),
		uuid.UUID(f.TenantID),
		f.OriginalName,
		f.MimeType,
		f.SizeBytes,
		string(f.Status),
		f.SourceKey,
		f.ViewKey,
		f.Checksum,
		uuid.UUID(f.UploadedBy),
		f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("evidence file %s: %w", f.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert evidence file: %w", err)
	}
	return nil
}

func (s *PostgresFileStore) FindByID(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID) (*models.EvidenceFile, error) {
	row := querier(ctx, s.pool).QueryRow(ctx, `
		SELECT `+fileColumns+`
		FROM evidence_files
		WHERE tenant_id = $1 AND id = $2
	`, uuid.UUID(tenantID), uuid.UUID(fileID))
	return scanFile(row)
}

// MarkConverted flips CONVERT_PENDING to READY. Zero rows means the file is
// missing or was already converted; a follow-up read tells them apart.
func (s *PostgresFileStore) MarkConverted(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID, viewKey string) (*models.EvidenceFile, error) {
	row := querier(ctx, s.pool).QueryRow(ctx, `
		UPDATE evidence_files
		SET status = $3, view_key = $4
		WHERE tenant_id = $1 AND id = $2 AND status = $5
		RETURNING `+fileColumns,
		uuid.UUID(tenantID), uuid.UUID(fileID),
		string(models.FileStatusReady), viewKey,
		string(models.FileStatusConvertPending),
	)
	f, err := scanFile(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		if _, findErr := s.FindByID(ctx, tenantID, fileID); findErr != nil {
			return nil, findErr
		}
		return nil, sentinel.ErrInvalidState
	}
	return f, err
}

func scanFile(row pgx.Row) (*models.EvidenceFile, error) {
	var (
		f          models.EvidenceFile
		fileID     uuid.UUID
		tenantID   uuid.UUID
		uploadedBy uuid.UUID
		status     string
	)
	err := row.Scan(&fileID, &tenantID, &f.OriginalName, &f.MimeType, &f.SizeBytes, &status,
		&f.SourceKey, &f.ViewKey, &f.Checksum, &uploadedBy, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan evidence file: %w", err)
	}
	f.ID = id.EvidenceFileID(fileID)
	f.TenantID = id.TenantID(tenantID)
	f.UploadedBy = id.UserID(uploadedBy)
	f.Status = models.FileStatus(status)
	return &f, nil
}

// PostgresLinkStore persists links in request_evidence_links. The unique
// index on (tenant_id, request_id, evidence_file_id) arbitrates concurrent
// duplicates.
type PostgresLinkStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLinkStore(pool *pgxpool.Pool) *PostgresLinkStore {
	return &PostgresLinkStore{pool: pool}
}

func (s *PostgresLinkStore) Create(ctx context.Context, link *models.Link) error {
	_, err := querier(ctx, s.pool).Exec(ctx, `
		INSERT INTO request_evidence_links (id, tenant_id, request_id, evidence_file_id, linked_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.UUID(link.ID),
		uuid.UUID(link.TenantID),
		uuid.UUID(link.RequestID),
		uuid.UUID(link.EvidenceFileID),
		uuid.UUID(link.LinkedBy),
		link.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert evidence link: %w", err)
	}
	return nil
}

func (s *PostgresLinkStore) ListByRequest(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) ([]models.LinkedEvidence, error) {
	rows, err := querier(ctx, s.pool).Query(ctx, `
		SELECT f.id, f.original_name, f.mime_type, f.size_bytes, f.status, l.created_at, l.linked_by
		FROM request_evidence_links l
		JOIN evidence_files f ON f.tenant_id = l.tenant_id AND f.id = l.evidence_file_id
		WHERE l.tenant_id = $1 AND l.request_id = $2
		ORDER BY l.created_at, l.id
	`, uuid.UUID(tenantID), uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("query evidence links: %w", err)
	}
	defer rows.Close()

	out := []models.LinkedEvidence{}
	for rows.Next() {
		var (
			e        models.LinkedEvidence
			fileID   uuid.UUID
			linkedBy uuid.UUID
			status   string
		)
		if err := rows.Scan(&fileID, &e.OriginalName, &e.MimeType, &e.SizeBytes, &status, &e.LinkedAt, &linkedBy); err != nil {
			return nil, fmt.Errorf("scan evidence link: %w", err)
		}
		e.EvidenceFileID = id.EvidenceFileID(fileID)
		e.LinkedBy = id.UserID(linkedBy)
		e.Status = models.FileStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence links: %w", err)
	}
	return out, nil
}

func (s *PostgresLinkStore) LatestLinkedAt(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, readyOnly bool) (time.Time, bool, error) {
	var latest *time.Time
	err := querier(ctx, s.pool).QueryRow(ctx, `
		SELECT max(l.created_at)
		FROM request_evidence_links l
		JOIN evidence_files f ON f.tenant_id = l.tenant_id AND f.id = l.evidence_file_id
		WHERE l.tenant_id = $1 AND l.request_id = $2
		  AND (NOT $3 OR f.status = $4)
	`, uuid.UUID(tenantID), uuid.UUID(requestID), readyOnly, string(models.FileStatusReady)).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest evidence: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

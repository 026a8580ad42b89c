//go:build integration

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vouch/internal/evidence/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
	"vouch/pkg/testutil/containers"
)

type PostgresEvidenceStoreSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	files  *PostgresFileStore
	links  *PostgresLinkStore
	runner *tx.PostgresRunner
	tenant id.TenantID
	actor  id.UserID
	now    time.Time
}

func TestPostgresEvidenceStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresEvidenceStoreSuite))
}

func (s *PostgresEvidenceStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.files = NewPostgresFileStore(s.pg.Pool)
	s.links = NewPostgresLinkStore(s.pg.Pool)
	s.runner = tx.NewPostgresRunner(s.pg.Pool)
}

func (s *PostgresEvidenceStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
	s.tenant = id.TenantID(uuid.New())
	s.actor = id.UserID(uuid.New())
	s.now = time.Now().UTC().Truncate(time.Second)
}

// request inserts a bare approval request so links satisfy their foreign key.
func (s *PostgresEvidenceStoreSuite) request(tenant id.TenantID) id.RequestID {
	reqID := id.NewRequestID()
	_, err := s.pg.Pool.Exec(context.Background(), `
		INSERT INTO approval_requests (id, tenant_id, status, created_at, updated_at)
		VALUES ($1, $2, 'SUBMITTED', now(), now())
	`, uuid.UUID(reqID), uuid.UUID(tenant))
	s.Require().NoError(err)
	return reqID
}

func (s *PostgresEvidenceStoreSuite) saveFile(status models.FileStatus) *models.EvidenceFile {
	f := &models.EvidenceFile{
		ID:           id.NewEvidenceFileID(),
		TenantID:     s.tenant,
		OriginalName: "invoice.pdf",
		MimeType:     models.MimePDF,
		SizeBytes:    42,
		Status:       status,
		Checksum:     "deadbeef",
		UploadedBy:   s.actor,
		CreatedAt:    s.now,
	}
	if status == models.FileStatusReady {
		f.ViewKey = "view"
	} else {
		f.SourceKey = "source"
	}
	s.Require().NoError(s.files.Save(context.Background(), f))
	return f
}

func (s *PostgresEvidenceStoreSuite) link(requestID id.RequestID, fileID id.EvidenceFileID, at time.Time) error {
	return s.links.Create(context.Background(), &models.Link{
		ID:             id.NewLinkID(),
		TenantID:       s.tenant,
		RequestID:      requestID,
		EvidenceFileID: fileID,
		LinkedBy:       s.actor,
		CreatedAt:      at,
	})
}

func (s *PostgresEvidenceStoreSuite) TestFileRoundTripAndConversion() {
	ctx := context.Background()
	f := s.saveFile(models.FileStatusConvertPending)

	_, err := s.files.FindByID(ctx, id.TenantID(uuid.New()), f.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	got, err := s.files.FindByID(ctx, s.tenant, f.ID)
	s.Require().NoError(err)
	s.Equal("deadbeef", got.Checksum)
	s.Equal(models.FileStatusConvertPending, got.Status)
	s.True(s.now.Equal(got.CreatedAt))

	converted, err := s.files.MarkConverted(ctx, s.tenant, f.ID, "tenants/t/view.pdf")
	s.Require().NoError(err)
	s.Equal(models.FileStatusReady, converted.Status)
	s.Equal("tenants/t/view.pdf", converted.ViewKey)

	_, err = s.files.MarkConverted(ctx, s.tenant, f.ID, "again")
	s.ErrorIs(err, sentinel.ErrInvalidState)
	_, err = s.files.MarkConverted(ctx, s.tenant, id.NewEvidenceFileID(), "k")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresEvidenceStoreSuite) TestLinksListAndLatest() {
	ctx := context.Background()
	requestID := s.request(s.tenant)
	ready := s.saveFile(models.FileStatusReady)
	pending := s.saveFile(models.FileStatusConvertPending)

	_, found, err := s.links.LatestLinkedAt(ctx, s.tenant, requestID, false)
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(s.link(requestID, pending.ID, s.now.Add(time.Hour)))
	s.Require().NoError(s.link(requestID, ready.ID, s.now))
	s.ErrorIs(s.link(requestID, ready.ID, s.now), sentinel.ErrAlreadyUsed)

	list, err := s.links.ListByRequest(ctx, s.tenant, requestID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(ready.ID, list[0].EvidenceFileID)
	s.Equal(models.FileStatusConvertPending, list[1].Status)

	latest, found, err := s.links.LatestLinkedAt(ctx, s.tenant, requestID, false)
	s.Require().NoError(err)
	s.True(found)
	s.True(s.now.Add(time.Hour).Equal(latest))

	latest, found, err = s.links.LatestLinkedAt(ctx, s.tenant, requestID, true)
	s.Require().NoError(err)
	s.True(found)
	s.True(s.now.Equal(latest))

	other, err := s.links.ListByRequest(ctx, id.TenantID(uuid.New()), requestID)
	s.Require().NoError(err)
	s.NotNil(other)
	s.Empty(other)
}

func (s *PostgresEvidenceStoreSuite) TestConcurrentDuplicateLinks() {
	requestID := s.request(s.tenant)
	f := s.saveFile(models.FileStatusReady)

	const goroutines = 10
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.link(requestID, f.ID, s.now)
			switch {
			case err == nil:
				wins.Add(1)
			case s.ErrorIs(err, sentinel.ErrAlreadyUsed):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresEvidenceStoreSuite) TestRollbackDiscardsLink() {
	ctx := context.Background()
	requestID := s.request(s.tenant)
	f := s.saveFile(models.FileStatusReady)

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.links.Create(ctx, &models.Link{
			ID: id.NewLinkID(), TenantID: s.tenant, RequestID: requestID, EvidenceFileID: f.ID,
			LinkedBy: s.actor, CreatedAt: s.now,
		}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	list, err := s.links.ListByRequest(ctx, s.tenant, requestID)
	s.Require().NoError(err)
	s.Empty(list)
}

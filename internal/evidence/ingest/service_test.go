package ingest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vouch/internal/audit"
	auditstore "vouch/internal/audit/store"
	"vouch/internal/evidence/models"
	evidencestore "vouch/internal/evidence/store"
	"vouch/internal/jobqueue"
	"vouch/internal/objectstore"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/tx"
	"vouch/pkg/requestcontext"
)

type IngestServiceSuite struct {
	suite.Suite
	files   *evidencestore.InMemoryFileStore
	objects *objectstore.InMemoryStore
	queue   *jobqueue.InMemoryQueue
	audit   *auditstore.InMemoryStore
	service *Service
	tenant  id.TenantID
	actor   id.UserID
	ctx     context.Context
}

func TestIngestServiceSuite(t *testing.T) {
	suite.Run(t, new(IngestServiceSuite))
}

func (s *IngestServiceSuite) SetupTest() {
	s.files = evidencestore.NewInMemoryFileStore()
	s.objects = objectstore.NewInMemoryStore()
	s.queue = jobqueue.NewInMemoryQueue()
	s.audit = auditstore.NewInMemoryStore()
	s.service = New(s.files, s.objects, s.queue, audit.NewTrail(s.audit), tx.NewMemoryRunner(),
		WithMaxUploadBytes(1024))
	s.tenant = id.TenantID(uuid.New())
	s.actor = id.UserID(uuid.New())
	s.ctx = requestcontext.WithTraceID(context.Background(), "trace-upload")
}

func (s *IngestServiceSuite) auditNames() []audit.EventName {
	entries, err := s.audit.ListByTenant(context.Background(), s.tenant)
	s.Require().NoError(err)
	names := make([]audit.EventName, len(entries))
	for i, e := range entries {
		names[i] = e.EventName
	}
	return names
}

func (s *IngestServiceSuite) TestDirectViewableUpload() {
	res, err := s.service.Upload(s.ctx, s.tenant, s.actor, Upload{
		Filename:    "Signed Invoice.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7 body"),
	})
	s.Require().NoError(err)

	s.Equal(http.StatusCreated, res.StatusCode)
	s.Empty(res.JobID)
	s.Equal(models.FileStatusReady, res.File.Status)
	s.Equal(models.MimePDF, res.File.MimeType)
	s.Equal(int64(13), res.File.SizeBytes)
	s.Len(res.File.Checksum, 64)
	s.Equal(models.ViewObjectKey(s.tenant, res.File.ID, "SignedInvoice.pdf"), res.File.ViewKey)
	s.Empty(res.File.SourceKey)

	s.Equal([]string{res.File.ViewKey}, s.objects.Keys())
	s.Empty(s.queue.Jobs())
	s.Equal([]audit.EventName{audit.EventEvidenceUploaded}, s.auditNames())

	stored, err := s.files.FindByID(context.Background(), s.tenant, res.File.ID)
	s.Require().NoError(err)
	s.Equal(s.actor, stored.UploadedBy)
}

func (s *IngestServiceSuite) TestConvertibleUploadWithoutContentType() {
	res, err := s.service.Upload(s.ctx, s.tenant, s.actor, Upload{
		Filename: "budget.xlsx",
		Data:     []byte("PK\x03\x04"),
	})
	s.Require().NoError(err)

	s.Equal(http.StatusAccepted, res.StatusCode)
	s.Equal(models.FileStatusConvertPending, res.File.Status)
	s.Equal(models.MimeXLSX, res.File.MimeType)
	s.Equal(models.SourceObjectKey(s.tenant, res.File.ID, "budget.xlsx"), res.File.SourceKey)
	s.Empty(res.File.ViewKey)

	jobs := s.queue.Jobs()
	s.Require().Len(jobs, 1)
	s.Equal(jobqueue.JobConvertToPDF, jobs[0].Name)
	s.Equal(res.File.ID.String(), jobs[0].Payload["evidenceFileId"])
	s.Equal("trace-upload", jobs[0].TraceID)
	s.Equal(res.JobID, jobs[0].ID)
	s.Len(s.objects.Keys(), 1)
}

func (s *IngestServiceSuite) TestUnsupportedUploadWritesNothing() {
	_, err := s.service.Upload(s.ctx, s.tenant, s.actor, Upload{
		Filename: "bundle.zip",
		Data:     []byte("PK"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedMediaType))
	s.Contains(err.Error(), models.MimeOctetStream)
	details := dErrors.DetailsOf(err)
	s.Equal(models.AcceptedMimeTypes, details["accepted"])

	s.Empty(s.objects.Keys())
	s.Empty(s.queue.Jobs())
	s.Empty(s.auditNames())
}

func (s *IngestServiceSuite) TestInvalidInput() {
	tests := []struct {
		name   string
		tenant id.TenantID
		data   []byte
	}{
		{"missing tenant", id.TenantID{}, []byte("x")},
		{"empty payload", s.tenant, nil},
		{"over size limit", s.tenant, []byte(strings.Repeat("a", 1025))},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Upload(s.ctx, tt.tenant, s.actor, Upload{Filename: "a.pdf", ContentType: "application/pdf", Data: tt.data})
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
	s.Empty(s.objects.Keys())
}

func (s *IngestServiceSuite) TestFailures() {
	s.Run("object store failure is internal and saves no row", func() {
		s.objects.FailPutsWith(errors.New("bucket gone"))
		defer s.objects.FailPutsWith(nil)

		_, err := s.service.Upload(s.ctx, s.tenant, s.actor, Upload{Filename: "a.png", ContentType: "image/png", Data: []byte{1}})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Empty(s.auditNames())
	})

	s.Run("audit failure rolls back the row", func() {
		s.audit.FailWith(errors.New("audit down"))
		defer s.audit.FailWith(nil)

		_, err := s.service.Upload(s.ctx, s.tenant, s.actor, Upload{Filename: "a.png", ContentType: "image/png", Data: []byte{1}})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("queue failure rolls back row and audit", func() {
		s.queue.FailWith(errors.New("broker down"))
		defer s.queue.FailWith(nil)

		_, err := s.service.Upload(s.ctx, s.tenant, s.actor, Upload{Filename: "a.docx", Data: []byte{1}})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Empty(s.auditNames())
	})
}

func (s *IngestServiceSuite) TestViewAndConversion() {
	res, err := s.service.Upload(s.ctx, s.tenant, s.actor, Upload{Filename: "deck.pptx", Data: []byte("PK")})
	s.Require().NoError(err)

	s.Run("pending file cannot be viewed", func() {
		_, _, err := s.service.View(s.ctx, s.tenant, res.File.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("conversion makes file viewable", func() {
		viewKey := models.ConvertedObjectKey(s.tenant, res.File.ID)
		s.Require().NoError(s.objects.Put(context.Background(), viewKey, []byte("%PDF"), models.MimePDF))

		converted, err := s.service.MarkConverted(s.ctx, s.tenant, res.File.ID, "")
		s.Require().NoError(err)
		s.Equal(models.FileStatusReady, converted.Status)
		s.Equal(viewKey, converted.ViewKey)

		file, obj, err := s.service.View(s.ctx, s.tenant, res.File.ID)
		s.Require().NoError(err)
		s.Equal(res.File.ID, file.ID)
		s.Equal([]byte("%PDF"), obj.Data)
	})

	s.Run("second conversion conflicts", func() {
		_, err := s.service.MarkConverted(s.ctx, s.tenant, res.File.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("other tenant cannot view", func() {
		_, _, err := s.service.View(s.ctx, id.TenantID(uuid.New()), res.File.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

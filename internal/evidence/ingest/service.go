// Package ingest accepts evidence uploads, stores their bytes and, for Office
// documents, schedules conversion to PDF.
package ingest

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"

	"vouch/internal/audit"
	"vouch/internal/evidence/metrics"
	"vouch/internal/evidence/models"
	"vouch/internal/jobqueue"
	"vouch/internal/objectstore"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
	"vouch/pkg/requestcontext"
)

// DefaultMaxUploadBytes caps a single upload.
const DefaultMaxUploadBytes int64 = 25 << 20

type FileStore interface {
	Save(ctx context.Context, file *models.EvidenceFile) error
	FindByID(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID) (*models.EvidenceFile, error)
	MarkConverted(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID, viewKey string) (*models.EvidenceFile, error)
}

type AuditTrail interface {
	Append(ctx context.Context, tenantID id.TenantID, actorID id.UserID, traceID string, name audit.EventName, data map[string]any) (*audit.Entry, error)
}

// Upload is one file as received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result reports what ingestion did. StatusCode is 201 for READY files and
// 202 when conversion was scheduled.
type Result struct {
	File       *models.EvidenceFile
	StatusCode int
	JobID      string
}

// Service runs the upload pipeline.
type Service struct {
	files    FileStore
	objects  objectstore.Store
	queue    jobqueue.Queue
	trail    AuditTrail
	runner   tx.Runner
	maxBytes int64
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

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func New(files FileStore, objects objectstore.Store, queue jobqueue.Queue, trail AuditTrail, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		files:    files,
		objects:  objects,
		queue:    queue,
		trail:    trail,
		runner:   runner,
		maxBytes: DefaultMaxUploadBytes,
		logger:   slog.Default(),
		tracer:   otel.Tracer("vouch/evidence/ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxUploadBytes is the configured size ceiling.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxBytes
}

// Upload validates, classifies and stores one file. Exactly one object is
// written for accepted files; unsupported files write nothing.
func (s *Service) Upload(ctx context.Context, tenantID id.TenantID, actorID id.UserID, up Upload) (*Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "evidence.upload")
	defer span.End()

	if tenantID.IsNil() {
		s.metrics.IncUpload("invalid")
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant_id is required")
	}
	if len(up.Data) == 0 {
		s.metrics.IncUpload("invalid")
		return nil, dErrors.New(dErrors.CodeInvalidInput, "file is required")
	}
	if int64(len(up.Data)) > s.maxBytes {
		s.metrics.IncUpload("invalid")
		return nil, dErrors.New(dErrors.CodeInvalidInput, "file exceeds maximum upload size").
			WithDetails(map[string]any{"max_bytes": s.maxBytes})
	}

	mimeType := models.EffectiveMimeType(up.ContentType, up.Filename)
	class := models.Classify(mimeType)
	span.SetAttributes(attribute.String("evidence.mime_type", mimeType))
	if class == models.MediaUnsupported {
		s.metrics.IncUpload("unsupported")
		return nil, dErrors.New(dErrors.CodeUnsupportedMediaType, "unsupported media type: "+mimeType).
			WithDetails(map[string]any{
				"mime_type": mimeType,
				"accepted":  models.AcceptedMimeTypes,
			})
	}

	sum := blake2b.Sum256(up.Data)
	file := &models.EvidenceFile{
		ID:           id.NewEvidenceFileID(),
		TenantID:     tenantID,
		OriginalName: up.Filename,
		MimeType:     mimeType,
		SizeBytes:    int64(len(up.Data)),
		Checksum:     hex.EncodeToString(sum[:]),
		UploadedBy:   actorID,
		CreatedAt:    requestcontext.Now(ctx),
	}
	safeName := models.SanitizeFilename(up.Filename)

	var objectKey string
	statusCode := http.StatusCreated
	if class == models.MediaDirect {
		objectKey = models.ViewObjectKey(tenantID, file.ID, safeName)
		file.Status = models.FileStatusReady
		file.ViewKey = objectKey
	} else {
		objectKey = models.SourceObjectKey(tenantID, file.ID, safeName)
		file.Status = models.FileStatusConvertPending
		file.SourceKey = objectKey
		statusCode = http.StatusAccepted
	}
	span.SetAttributes(attribute.String("evidence.file_id", file.ID.String()))

	if err := s.objects.Put(ctx, objectKey, up.Data, mimeType); err != nil {
		return nil, s.fail(ctx, span, err, "failed to store evidence bytes")
	}

	traceID := requestcontext.TraceID(ctx)
	var jobID string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.files.Save(ctx, file); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save evidence file")
		}
		if _, err := s.trail.Append(ctx, tenantID, actorID, traceID, audit.EventEvidenceUploaded, map[string]any{
			"evidenceFileId": file.ID.String(),
			"mimeType":       file.MimeType,
			"sizeBytes":      file.SizeBytes,
			"status":         file.Status.String(),
			"checksum":       file.Checksum,
		}); err != nil {
			return err
		}
		if file.Status != models.FileStatusConvertPending {
			return nil
		}
		queued, err := s.queue.Enqueue(ctx, jobqueue.Job{
			Name:     jobqueue.JobConvertToPDF,
			Payload:  map[string]any{"evidenceFileId": file.ID.String()},
			TenantID: tenantID,
			ActorID:  actorID,
			TraceID:  traceID,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue conversion")
		}
		jobID = queued
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, err, "failed to record evidence upload")
	}

	if jobID != "" {
		s.metrics.IncConversionJobs()
		s.metrics.IncUpload("convert_pending")
	} else {
		s.metrics.IncUpload("ready")
	}
	s.metrics.ObserveUploadBytes(file.SizeBytes)
	s.metrics.ObserveUploadDuration(time.Since(start))
	s.logger.InfoContext(ctx, "evidence uploaded",
		"tenant_id", tenantID.String(),
		"evidence_file_id", file.ID.String(),
		"mime_type", mimeType,
		"status", file.Status.String(),
		"job_id", jobID,
	)
	return &Result{File: file, StatusCode: statusCode, JobID: jobID}, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error, msg string) error {
	s.metrics.IncUpload("error")
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.ErrorContext(ctx, msg, "error", err)
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// View returns the viewable rendition of a READY file.
func (s *Service) View(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID) (*models.EvidenceFile, *objectstore.Object, error) {
	file, err := s.files.FindByID(ctx, tenantID, fileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "evidence file not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence file")
	}
	if !file.IsReady() {
		return nil, nil, dErrors.New(dErrors.CodeConflict, "evidence file is not ready for viewing").
			WithDetails(map[string]any{"status": file.Status.String()})
	}
	obj, err := s.objects.Get(ctx, file.ViewKey)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read evidence bytes")
	}
	return file, obj, nil
}

// MarkConverted records a finished conversion. viewKey must already hold the
// rendered PDF; an empty key defaults to the conventional location.
func (s *Service) MarkConverted(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID, viewKey string) (*models.EvidenceFile, error) {
	if viewKey == "" {
		viewKey = models.ConvertedObjectKey(tenantID, fileID)
	}

	var file *models.EvidenceFile
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		converted, err := s.files.MarkConverted(ctx, tenantID, fileID, viewKey)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "evidence file not found")
			case errors.Is(err, sentinel.ErrInvalidState):
				return dErrors.New(dErrors.CodeConflict, "evidence file is not awaiting conversion")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark evidence converted")
		}
		if _, err := s.trail.Append(ctx, tenantID, requestcontext.UserID(ctx), requestcontext.TraceID(ctx), audit.EventEvidenceConverted, map[string]any{
			"evidenceFileId": fileID.String(),
			"viewKey":        viewKey,
		}); err != nil {
			return err
		}
		file = converted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vouch/internal/evidence/ingest"
	"vouch/internal/evidence/models"
	"vouch/internal/objectstore"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/httputil"
	request "vouch/pkg/platform/middleware/request"
	"vouch/pkg/requestcontext"
)

// multipartOverhead is the slack allowed above the file limit for part
// headers and boundaries.
const multipartOverhead = 64 << 10

// IngestService stores uploads and serves renditions.
type IngestService interface {
	MaxUploadBytes() int64
	Upload(ctx context.Context, tenantID id.TenantID, actorID id.UserID, up ingest.Upload) (*ingest.Result, error)
	View(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID) (*models.EvidenceFile, *objectstore.Object, error)
	MarkConverted(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID, viewKey string) (*models.EvidenceFile, error)
}

// LinkService attaches files to requests.
type LinkService interface {
	Link(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, fileID id.EvidenceFileID, actorID id.UserID) (*models.Link, error)
	List(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) ([]models.LinkedEvidence, error)
}

// Handler serves the evidence endpoints.
type Handler struct {
	ingest IngestService
	links  LinkService
	logger *slog.Logger
}

func New(ingest IngestService, links LinkService, logger *slog.Logger) *Handler {
	return &Handler{ingest: ingest, links: links, logger: logger}
}

// Register mounts the tenant-facing routes. The caller applies auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evidence", h.HandleUpload)
	r.Get("/evidence/{evidenceFileId}/view", h.HandleView)
	r.Post("/requests/{requestId}/evidence", h.HandleLink)
	r.Get("/requests/{requestId}/evidence", h.HandleList)
}

// RegisterInternal mounts the conversion worker callback. The caller applies
// the service token guard.
func (h *Handler) RegisterInternal(r chi.Router) {
	r.Post("/internal/evidence/{evidenceFileId}/converted", h.HandleConverted)
}

// HandleUpload accepts a multipart upload with a single "file" part.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID := requestcontext.TenantID(ctx)
	actorID := requestcontext.UserID(ctx)

	// One byte past the limit so the service reports the size error.
	limit := h.ingest.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1+multipartOverhead)

	part, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file exceeds maximum upload size").
				WithDetails(map[string]any{"max_bytes": limit}))
			return
		}
		h.logger.WarnContext(ctx, "invalid upload form",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "multipart field \"file\" is required"))
		return
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read upload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "failed to read uploaded file"))
		return
	}

	res, err := h.ingest.Upload(ctx, tenantID, actorID, ingest.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "upload failed", err)
		return
	}
	httputil.WriteJSON(w, res.StatusCode, toUploadResponse(res))
}

// HandleView streams the viewable rendition.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	fileID, err := id.ParseEvidenceFileID(chi.URLParam(r, "evidenceFileId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, obj, err := h.ingest.View(ctx, requestcontext.TenantID(ctx), fileID)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "view failed", err)
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = file.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Content-Disposition", `inline; filename="`+models.SanitizeFilename(viewFilename(file))+`"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("ETag", `"`+file.Checksum+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

// HandleLink links an uploaded file to a request.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	reqID, err := id.ParseRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, ok := httputil.DecodeAndPrepare[LinkEvidenceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	link, err := h.links.Link(ctx, requestcontext.TenantID(ctx), reqID, body.fileID, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "link failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, LinkResponse{
		ID:             link.ID.String(),
		RequestID:      link.RequestID.String(),
		EvidenceFileID: link.EvidenceFileID.String(),
		LinkedBy:       link.LinkedBy.String(),
		LinkedAt:       link.CreatedAt,
	})
}

// HandleList returns the evidence linked to a request, oldest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	reqID, err := id.ParseRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.links.List(ctx, requestcontext.TenantID(ctx), reqID)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "list evidence failed", err)
		return
	}

	resp := ListEvidenceResponse{RequestID: reqID.String(), Items: make([]LinkedEvidenceItem, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, LinkedEvidenceItem{
			EvidenceFileID:  it.EvidenceFileID.String(),
			OriginalName:    it.OriginalName,
			MimeType:        it.MimeType,
			SizeBytes:       it.SizeBytes,
			Status:          string(it.Status),
			LinkedAt:        it.LinkedAt,
			LinkedBy:        it.LinkedBy.String(),
			ViewEndpointRef: it.ViewEndpointRef(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleConverted is called by the conversion worker once the PDF rendition
// is in the object store.
func (h *Handler) HandleConverted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	fileID, err := id.ParseEvidenceFileID(chi.URLParam(r, "evidenceFileId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, ok := httputil.DecodeAndPrepare[ConvertedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	file, err := h.ingest.MarkConverted(ctx, body.tenantID, fileID, body.ViewKey)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "mark converted failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFileResponse(file))
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, requestID, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) || !isDomainError(err) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	} else {
		h.logger.InfoContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func isDomainError(err error) bool {
	_, ok := dErrors.As(err)
	return ok
}

// viewFilename names the rendition. Converted office files are served as PDF.
func viewFilename(f *models.EvidenceFile) string {
	if models.Classify(f.MimeType) != models.MediaConvertible {
		return f.OriginalName
	}
	name := f.OriginalName
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name + ".pdf"
}

func toUploadResponse(res *ingest.Result) UploadResponse {
	return UploadResponse{
		FileResponse: toFileResponse(res.File),
		JobID:        res.JobID,
	}
}

func toFileResponse(f *models.EvidenceFile) FileResponse {
	resp := FileResponse{
		ID:           f.ID.String(),
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		SizeBytes:    f.SizeBytes,
		Status:       string(f.Status),
		Checksum:     f.Checksum,
		UploadedBy:   f.UploadedBy.String(),
		CreatedAt:    f.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if f.IsReady() {
		resp.ViewEndpointRef = models.ViewPath(f.ID)
	}
	return resp
}

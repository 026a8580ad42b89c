package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vouch/internal/approval/models"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/httputil"
	request "vouch/pkg/platform/middleware/request"
	"vouch/pkg/requestcontext"
)

// Service is the approval workflow.
type Service interface {
	Get(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*models.Request, error)
	Approve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID) (*models.Decision, error)
	Reject(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, actorID id.UserID, reason string) (*models.Decision, error)
}

// Handler serves the request decision endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. The caller applies auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/requests/{requestId}", h.HandleGet)
	r.Post("/requests/{requestId}/approve", h.HandleApprove)
	r.Post("/requests/{requestId}/reject", h.HandleReject)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	reqID, err := id.ParseRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.Get(ctx, requestcontext.TenantID(ctx), reqID)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "get request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

// HandleApprove runs the evidence gate. Blocked approvals come back as 422
// with the measured freshness in details.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	reqID, err := id.ParseRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	decision, err := h.service.Approve(ctx, requestcontext.TenantID(ctx), reqID, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "approve request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(decision))
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	reqID, err := id.ParseRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	decision, err := h.service.Reject(ctx, requestcontext.TenantID(ctx), reqID, requestcontext.UserID(ctx), body.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "reject request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(decision))
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, requestID, msg string, err error) {
	if de, ok := dErrors.As(err); !ok || de.Code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func toRequestResponse(req *models.Request) RequestResponse {
	resp := RequestResponse{
		ID:                          req.ID.String(),
		Title:                       req.Title,
		Status:                      string(req.Status),
		EvidenceRequiredForApproval: req.EvidenceRequiredForApproval,
		EvidenceTTLSeconds:          req.EvidenceTTLSeconds,
		ApprovedAt:                  req.ApprovedAt,
		RejectedAt:                  req.RejectedAt,
		RejectionReason:             req.RejectionReason,
		CreatedAt:                   req.CreatedAt,
		UpdatedAt:                   req.UpdatedAt,
	}
	if req.ApprovedBy != nil {
		resp.ApprovedBy = req.ApprovedBy.String()
	}
	if req.RejectedBy != nil {
		resp.RejectedBy = req.RejectedBy.String()
	}
	return resp
}

func toDecisionResponse(d *models.Decision) DecisionResponse {
	return DecisionResponse{
		RequestID: d.RequestID.String(),
		Status:    string(d.Status),
		DecidedAt: d.DecidedAt.UTC().Format(time.RFC3339Nano),
		DecidedBy: d.DecidedBy.String(),
	}
}

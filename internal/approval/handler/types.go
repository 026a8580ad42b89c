package handler

import (
	"strings"
	"time"
	"unicode/utf8"

	dErrors "vouch/pkg/domain-errors"
)

const maxReasonLength = 1000

// RejectRequest is the body of POST /requests/{requestId}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if utf8.RuneCountInString(r.Reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeInvalidInput, "reason must be 1000 characters or less")
	}
	return nil
}

type RequestResponse struct {
	ID                          string     `json:"id"`
	Title                       string     `json:"title"`
	Status                      string     `json:"status"`
	EvidenceRequiredForApproval bool       `json:"evidence_required_for_approval"`
	EvidenceTTLSeconds          *int64     `json:"evidence_ttl_seconds"`
	ApprovedAt                  *time.Time `json:"approved_at,omitempty"`
	ApprovedBy                  string     `json:"approved_by,omitempty"`
	RejectedAt                  *time.Time `json:"rejected_at,omitempty"`
	RejectedBy                  string     `json:"rejected_by,omitempty"`
	RejectionReason             string     `json:"rejection_reason,omitempty"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}

// DecisionResponse is returned by approve and reject.
type DecisionResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	DecidedAt string `json:"decided_at"`
	DecidedBy string `json:"decided_by"`
}

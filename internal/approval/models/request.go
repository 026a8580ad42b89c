package models

import (
	"time"

	id "vouch/pkg/domain"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether this service may move a request from s to
// next. Only submitted requests are decided; earlier transitions happen
// upstream.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusSubmitted && (next == StatusApproved || next == StatusRejected)
}

// Request is a business document awaiting a decision.
//
// Invariants:
//   - ApprovedAt and ApprovedBy are set iff Status is APPROVED
//   - RejectedAt and RejectedBy are set iff Status is REJECTED
//   - EvidenceTTLSeconds, when set, is non-negative
//   - Requests are never deleted
type Request struct {
	ID                          id.RequestID `json:"id"`
	TenantID                    id.TenantID  `json:"tenant_id"`
	Title                       string       `json:"title"`
	Status                      Status       `json:"status"`
	EvidenceRequiredForApproval bool         `json:"evidence_required_for_approval"`
	EvidenceTTLSeconds          *int64       `json:"evidence_ttl_seconds,omitempty"`
	ApprovedAt                  *time.Time   `json:"approved_at,omitempty"`
	ApprovedBy                  *id.UserID   `json:"approved_by,omitempty"`
	RejectedAt                  *time.Time   `json:"rejected_at,omitempty"`
	RejectedBy                  *id.UserID   `json:"rejected_by,omitempty"`
	RejectionReason             string       `json:"rejection_reason,omitempty"`
	CreatedAt                   time.Time    `json:"created_at"`
	UpdatedAt                   time.Time    `json:"updated_at"`
}

// Policy is the approval gate configured on a request.
type Policy struct {
	EvidenceRequired   bool
	EvidenceTTLSeconds *int64
}

func (r *Request) Policy() Policy {
	return Policy{
		EvidenceRequired:   r.EvidenceRequiredForApproval,
		EvidenceTTLSeconds: r.EvidenceTTLSeconds,
	}
}

// Decision is the persisted outcome of a successful approve or reject.
type Decision struct {
	RequestID id.RequestID
	Status    Status
	DecidedAt time.Time
	DecidedBy id.UserID
}

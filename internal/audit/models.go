package audit

import (
	"time"

	"github.com/google/uuid"

	id "vouch/pkg/domain"
)

// EventName identifies what happened. Names are dotted, past tense, and stable:
// downstream consumers of the audit stream key on them.
type EventName string

const (
	// Approval guard
	EventApprovalAttempted        EventName = "approval.attempted"
	EventApprovalEvidenceRequired EventName = "approval.blocked.evidence_required"
	EventApprovalEvidenceStale    EventName = "approval.blocked.evidence_stale"
	EventApprovalInvalidState     EventName = "approval.blocked.invalid_state"
	EventApprovalSucceeded        EventName = "approval.succeeded"

	// Rejection
	EventRejectionSucceeded EventName = "rejection.succeeded"

	// Evidence
	EventEvidenceUploaded  EventName = "evidence.uploaded"
	EventEvidenceLinked    EventName = "evidence.linked"
	EventEvidenceConverted EventName = "evidence.converted"
)

// Entry is one immutable audit fact.
//
// Invariants:
//   - TenantID and EventName are always set
//   - CreatedAt is assigned by the store at append time, never by the caller
//   - Seq increases monotonically per store and breaks CreatedAt ties
//   - ActorID may be nil for system-initiated events
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Seq       int64          `json:"seq"`
	TenantID  id.TenantID    `json:"tenant_id"`
	ActorID   id.UserID      `json:"actor_id"`
	TraceID   string         `json:"trace_id,omitempty"`
	EventName EventName      `json:"event_name"`
	EventData map[string]any `json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

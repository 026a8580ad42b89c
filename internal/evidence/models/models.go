package models

import (
	"time"

	id "vouch/pkg/domain"
)

// FileStatus is the lifecycle state of an uploaded evidence file.
type FileStatus string

const (
	FileStatusReady               FileStatus = "READY"
	FileStatusConvertPending      FileStatus = "CONVERT_PENDING"
	FileStatusRejectedUnsupported FileStatus = "REJECTED_UNSUPPORTED"
)

func (s FileStatus) String() string { return string(s) }

// CanTransitionTo reports whether s may move to next. The only transition is
// the conversion completing.
func (s FileStatus) CanTransitionTo(next FileStatus) bool {
	return s == FileStatusConvertPending && next == FileStatusReady
}

// EvidenceFile is an uploaded document.
//
// Invariants:
//   - READY files always have ViewKey set
//   - CONVERT_PENDING files have SourceKey set and no ViewKey
//   - Status and ViewKey change only through MarkConverted
type EvidenceFile struct {
	ID           id.EvidenceFileID `json:"id"`
	TenantID     id.TenantID       `json:"tenant_id"`
	OriginalName string            `json:"original_name"`
	MimeType     string            `json:"mime_type"`
	SizeBytes    int64             `json:"size_bytes"`
	Status       FileStatus        `json:"status"`
	SourceKey    string            `json:"source_key,omitempty"`
	ViewKey      string            `json:"view_key,omitempty"`
	Checksum     string            `json:"checksum"`
	UploadedBy   id.UserID         `json:"uploaded_by"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (f *EvidenceFile) IsReady() bool {
	return f.Status == FileStatusReady
}

// Link attaches an evidence file to a request. Immutable once created;
// (TenantID, RequestID, EvidenceFileID) is unique.
type Link struct {
	ID             id.LinkID         `json:"id"`
	TenantID       id.TenantID       `json:"tenant_id"`
	RequestID      id.RequestID      `json:"request_id"`
	EvidenceFileID id.EvidenceFileID `json:"evidence_file_id"`
	LinkedBy       id.UserID         `json:"linked_by"`
	CreatedAt      time.Time         `json:"created_at"`
}

// LinkedEvidence is a link joined with the fields of its file.
type LinkedEvidence struct {
	EvidenceFileID id.EvidenceFileID
	OriginalName   string
	MimeType       string
	SizeBytes      int64
	Status         FileStatus
	LinkedAt       time.Time
	LinkedBy       id.UserID
}

// ViewEndpointRef is the relative path clients use to fetch the rendition.
func (e LinkedEvidence) ViewEndpointRef() string {
	return ViewPath(e.EvidenceFileID)
}

func ViewPath(fileID id.EvidenceFileID) string {
	return "/evidence/" + fileID.String() + "/view"
}

// Freshness summarizes the evidence attached to a request.
// IsFresh is nil when there is no evidence. AgeSeconds is set only when a
// TTL was supplied and evidence exists.
type Freshness struct {
	HasEvidence      bool
	IsFresh          *bool
	AgeSeconds       *int64
	LatestEvidenceAt *time.Time
}

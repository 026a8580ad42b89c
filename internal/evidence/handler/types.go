package handler

import (
	"strings"
	"time"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// LinkEvidenceRequest is the body of POST /requests/{requestId}/evidence.
type LinkEvidenceRequest struct {
	EvidenceFileID string `json:"evidence_file_id"`

	fileID id.EvidenceFileID
}

func (r *LinkEvidenceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	parsed, err := id.ParseEvidenceFileID(strings.TrimSpace(r.EvidenceFileID))
	if err != nil {
		return err
	}
	r.fileID = parsed
	return nil
}

// ConvertedRequest is sent by the conversion worker.
type ConvertedRequest struct {
	TenantID string `json:"tenant_id"`
	ViewKey  string `json:"view_key,omitempty"`

	tenantID id.TenantID
}

func (r *ConvertedRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	parsed, err := id.ParseTenantID(strings.TrimSpace(r.TenantID))
	if err != nil {
		return err
	}
	r.tenantID = parsed
	r.ViewKey = strings.TrimSpace(r.ViewKey)
	if strings.Contains(r.ViewKey, "..") {
		return dErrors.New(dErrors.CodeValidation, "view_key must not contain '..'")
	}
	if r.ViewKey != "" && !strings.HasPrefix(r.ViewKey, "tenants/"+parsed.String()+"/") {
		return dErrors.New(dErrors.CodeValidation, "view_key must belong to the tenant")
	}
	return nil
}

type FileResponse struct {
	ID              string `json:"id"`
	OriginalName    string `json:"original_name"`
	MimeType        string `json:"mime_type"`
	SizeBytes       int64  `json:"size_bytes"`
	Status          string `json:"status"`
	Checksum        string `json:"checksum"`
	UploadedBy      string `json:"uploaded_by"`
	CreatedAt       string `json:"created_at"`
	ViewEndpointRef string `json:"view_endpoint_ref,omitempty"`
}

// UploadResponse carries the conversion job id when one was scheduled.
type UploadResponse struct {
	FileResponse
	JobID string `json:"job_id,omitempty"`
}

type LinkResponse struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	EvidenceFileID string    `json:"evidence_file_id"`
	LinkedBy       string    `json:"linked_by"`
	LinkedAt       time.Time `json:"linked_at"`
}

type LinkedEvidenceItem struct {
	EvidenceFileID  string    `json:"evidence_file_id"`
	OriginalName    string    `json:"original_name"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	Status          string    `json:"status"`
	LinkedAt        time.Time `json:"linked_at"`
	LinkedBy        string    `json:"linked_by"`
	ViewEndpointRef string    `json:"view_endpoint_ref"`
}

type ListEvidenceResponse struct {
	RequestID string               `json:"request_id"`
	Items     []LinkedEvidenceItem `json:"items"`
}

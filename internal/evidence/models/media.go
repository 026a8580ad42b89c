package models

import (
	"fmt"
	"mime"
	"path"
	"strings"

	id "vouch/pkg/domain"
)

// MediaClass decides what ingestion does with a file.
type MediaClass int

const (
	MediaUnsupported MediaClass = iota
	MediaDirect
	MediaConvertible
)

const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeDOC  = "application/msword"
	MimeXLS  = "application/vnd.ms-excel"
	MimePPT  = "application/vnd.ms-powerpoint"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	MimeOctetStream = "application/octet-stream"
)

var mediaClasses = map[string]MediaClass{
	MimePDF:  MediaDirect,
	MimePNG:  MediaDirect,
	MimeJPEG: MediaDirect,
	MimeDOC:  MediaConvertible,
	MimeXLS:  MediaConvertible,
	MimePPT:  MediaConvertible,
	MimeDOCX: MediaConvertible,
	MimeXLSX: MediaConvertible,
	MimePPTX: MediaConvertible,
}

// AcceptedMimeTypes is the allow-list reported back on rejection.
var AcceptedMimeTypes = []string{
	MimePDF, MimePNG, MimeJPEG,
	MimeDOC, MimeXLS, MimePPT,
	MimeDOCX, MimeXLSX, MimePPTX,
}

var extensionTypes = map[string]string{
	".pdf":  MimePDF,
	".png":  MimePNG,
	".jpg":  MimeJPEG,
	".jpeg": MimeJPEG,
	".docx": MimeDOCX,
	".xlsx": MimeXLSX,
	".pptx": MimePPTX,
}

// EffectiveMimeType picks the declared content type when present, otherwise
// infers one from the filename extension.
func EffectiveMimeType(declared, filename string) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return strings.ToLower(mediaType)
		}
		base, _, _ := strings.Cut(declared, ";")
		if base = strings.ToLower(strings.TrimSpace(base)); base != "" {
			return base
		}
	}
	if t, ok := extensionTypes[strings.ToLower(path.Ext(filename))]; ok {
		return t
	}
	return MimeOctetStream
}

func Classify(mimeType string) MediaClass {
	return mediaClasses[mimeType]
}

const maxSafeNameLength = 128

// SanitizeFilename keeps [A-Za-z0-9._-], truncates to 128 characters and
// falls back to "file".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
		if b.Len() == maxSafeNameLength {
			break
		}
	}
	safe := b.String()
	if safe == "" || strings.Trim(safe, ".") == "" {
		return "file"
	}
	return safe
}

// ViewObjectKey is where a directly viewable file is stored.
func ViewObjectKey(tenantID id.TenantID, fileID id.EvidenceFileID, safeName string) string {
	return fmt.Sprintf("tenants/%s/evidence/%s/%s", tenantID, fileID, safeName)
}

// SourceObjectKey is where a file awaiting conversion is stored.
func SourceObjectKey(tenantID id.TenantID, fileID id.EvidenceFileID, safeName string) string {
	return fmt.Sprintf("tenants/%s/evidence/%s/source/%s", tenantID, fileID, safeName)
}

// ConvertedObjectKey is the conventional key for a conversion's PDF output.
func ConvertedObjectKey(tenantID id.TenantID, fileID id.EvidenceFileID) string {
	return fmt.Sprintf("tenants/%s/evidence/%s/view.pdf", tenantID, fileID)
}

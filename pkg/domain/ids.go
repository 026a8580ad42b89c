// Package domain holds typed identifiers shared across modules.
//
// Every identifier is a distinct named type over uuid.UUID so that a tenant id
// can never be passed where a request id is expected. Parsing happens once at
// the trust boundary (HTTP handlers, JWT claims); services receive typed values.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "vouch/pkg/domain-errors"
)

type (
	TenantID       uuid.UUID
	UserID         uuid.UUID
	RequestID      uuid.UUID
	EvidenceFileID uuid.UUID
	LinkID         uuid.UUID
)

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id RequestID) String() string      { return uuid.UUID(id).String() }
func (id EvidenceFileID) String() string { return uuid.UUID(id).String() }
func (id LinkID) String() string         { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceFileID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LinkID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

func NewRequestID() RequestID           { return RequestID(uuid.New()) }
func NewEvidenceFileID() EvidenceFileID { return EvidenceFileID(uuid.New()) }
func NewLinkID() LinkID                 { return LinkID(uuid.New()) }

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(raw) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID("tenant_id", raw)
	return TenantID(u), err
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID("user_id", raw)
	return UserID(u), err
}

func ParseRequestID(raw string) (RequestID, error) {
	u, err := parseUUID("request_id", raw)
	return RequestID(u), err
}

func ParseEvidenceFileID(raw string) (EvidenceFileID, error) {
	u, err := parseUUID("evidence_file_id", raw)
	return EvidenceFileID(u), err
}

func ParseLinkID(raw string) (LinkID, error) {
	u, err := parseUUID("link_id", raw)
	return LinkID(u), err
}

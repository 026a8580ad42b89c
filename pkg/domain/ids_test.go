package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vouch/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRequestID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRequestID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseRequestID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		parsed, err := ParseRequestID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, RequestID(validUUID), parsed)
	})
}

// TestParseID_SecurityInvariants validates parsing rules at trust boundaries.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE requests;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400\u200B-e29b-41d4-a716-446655440000", true},

		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvidenceFileID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types share parsing behavior.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	parsers := map[string]func(string) error{
		"tenant":   func(s string) error { _, err := ParseTenantID(s); return err },
		"user":     func(s string) error { _, err := ParseUserID(s); return err },
		"request":  func(s string) error { _, err := ParseRequestID(s); return err },
		"evidence": func(s string) error { _, err := ParseEvidenceFileID(s); return err },
		"link":     func(s string) error { _, err := ParseLinkID(s); return err },
	}

	t.Run("all accept valid UUID", func(t *testing.T) {
		for name, parse := range parsers {
			require.NoError(t, parse(validUUID), name)
		}
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			for name, parse := range parsers {
				require.Error(t, parse(input), name)
			}
		})
	}
}

func TestTypeDistinction(t *testing.T) {
	requestID := NewRequestID()
	tenantID := TenantID(uuid.New())

	// var _ RequestID = tenantID // compile error
	assert.NotEqual(t, uuid.UUID(requestID), uuid.UUID(tenantID))
	assert.False(t, requestID.IsNil())
	assert.True(t, RequestID{}.IsNil())
}

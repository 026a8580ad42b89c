package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusSubmitted.CanTransitionTo(StatusApproved))
	assert.True(t, StatusSubmitted.CanTransitionTo(StatusRejected))
	assert.False(t, StatusDraft.CanTransitionTo(StatusApproved))
	assert.False(t, StatusApproved.CanTransitionTo(StatusRejected))
	assert.False(t, StatusRejected.CanTransitionTo(StatusApproved))
	assert.False(t, StatusSubmitted.CanTransitionTo(StatusDraft))

	assert.True(t, StatusDraft.IsValid())
	assert.False(t, Status("ARCHIVED").IsValid())
}

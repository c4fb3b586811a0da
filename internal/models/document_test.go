package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidStatusTransition(t *testing.T) {
	// Forward path
	assert.True(t, ValidStatusTransition(StatusPending, StatusProcessing))
	assert.True(t, ValidStatusTransition(StatusProcessing, StatusCompleted))
	assert.True(t, ValidStatusTransition(StatusProcessing, StatusFailed))

	// Reprocess returns any state to pending
	for _, from := range []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		assert.True(t, ValidStatusTransition(from, StatusPending), from)
	}

	// No skipping or reversing
	assert.False(t, ValidStatusTransition(StatusPending, StatusCompleted))
	assert.False(t, ValidStatusTransition(StatusPending, StatusFailed))
	assert.False(t, ValidStatusTransition(StatusCompleted, StatusProcessing))
	assert.False(t, ValidStatusTransition(StatusFailed, StatusProcessing))
	assert.False(t, ValidStatusTransition(StatusCompleted, StatusFailed))
}

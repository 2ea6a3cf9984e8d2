package entities

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocationError_Is(t *testing.T) {
	err := fmt.Errorf("allocating: %w", NewAllocationError(Conflict, "already processed", "press_run_id", "pr-1"))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, Conflict, KindOf(err))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}

func TestAllocationError_Error(t *testing.T) {
	cause := errors.New("unique violation")
	err := NewAllocationError(Validation, "assignment volume exceeds vessel capacity",
		"vessel_id", "v1", "capacity", "900", "requested", "1000").Wrap(cause)

	assert.EqualError(t, err, "validation: assignment volume exceeds vessel capacity (capacity=900, requested=1000, vessel_id=v1): unique violation")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "1000", err.Details["requested"])
}

func TestErrorKind_String(t *testing.T) {
	testCases := map[ErrorKind]string{
		NotFound:     "not_found",
		Validation:   "validation",
		Conflict:     "conflict",
		Invariant:    "invariant",
		ErrorKind(0): "unknown",
	}
	for kind, expected := range testCases {
		assert.Equal(t, expected, kind.String())
	}
}

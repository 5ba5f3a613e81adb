package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	ve := NewValidationError()
	require.NoError(t, ve.OrNil())

	ve.Add("amount", "must be positive")
	ve.Add("method", "unknown method")
	ve.WithRemaining(2200000).WithCause(ErrInvalidPaymentAmount)

	err := fmt.Errorf("record payment: %w", ve.OrNil())

	got := IsValidationError(err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"must be positive"}, got.Fields()["amount"])
	assert.Equal(t, "validation failed: amount: must be positive; method: unknown method", got.Error())

	remaining, ok := got.Remaining()
	assert.True(t, ok)
	assert.EqualValues(t, 2200000, remaining)
	assert.ErrorIs(t, err, ErrInvalidPaymentAmount)
}

func TestTypedErrorsAreDistinct(t *testing.T) {
	conflict := fmt.Errorf("wrap: %w", NewStateConflictError("b-1", "confirmed", "confirm checkout"))
	stale := NewStaleDataError("promotion", "no longer overlaps the stay")
	transient := NewTransientIOError("fetch server price", errors.New("connection refused"))

	assert.NotNil(t, IsStateConflictError(conflict))
	assert.Nil(t, IsValidationError(conflict))
	assert.Equal(t, "booking 'b-1' is confirmed: cannot confirm checkout", IsStateConflictError(conflict).Error())

	assert.NotNil(t, IsStaleDataError(stale))
	assert.Nil(t, IsTransientIOError(stale))

	assert.NotNil(t, IsTransientIOError(transient))
	assert.EqualError(t, errors.Unwrap(transient), "connection refused")

	assert.Nil(t, IsStateConflictError(nil))
}

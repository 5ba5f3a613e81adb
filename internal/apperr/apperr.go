package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")
	ErrIdempotencyKey       = errors.New("idempotency key not found")
	ErrDuplicate            = errors.New("record already exists")
)

type ValidationError struct {
	fields    map[string][]string
	remaining *int64
	cause     error
}

func NewValidationError() *ValidationError {
	//nolint:exhaustruct
	return &ValidationError{
		fields: make(map[string][]string),
	}
}

func IsValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var validationError *ValidationError

	if errors.As(err, &validationError) {
		return validationError
	}

	return nil
}

func (ve *ValidationError) Add(field, msg string) {
	ve.fields[field] = append(ve.fields[field], msg)
}

func (ve *ValidationError) FieldsCount() int {
	return len(ve.fields)
}

// OrNil returns nil when no field has been reported.
func (ve *ValidationError) OrNil() error {
	if ve.FieldsCount() == 0 {
		return nil
	}

	return ve
}

// WithRemaining attaches the authoritative balance the caller has to see before another attempt.
func (ve *ValidationError) WithRemaining(remaining int64) *ValidationError {
	ve.remaining = &remaining

	return ve
}

func (ve *ValidationError) WithCause(err error) *ValidationError {
	ve.cause = err

	return ve
}

func (ve *ValidationError) Remaining() (int64, bool) {
	if ve.remaining == nil {
		return 0, false
	}

	return *ve.remaining, true
}

func (ve *ValidationError) Fields() map[string][]string {
	return ve.fields
}

func (ve *ValidationError) Error() string {
	keys := make([]string, 0, len(ve.fields))
	for k := range ve.fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(ve.fields[k], ", ")))
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (ve *ValidationError) Unwrap() error {
	return ve.cause
}

type StateConflictError struct {
	BookingID string
	State     string
	Action    string
}

func NewStateConflictError(bookingID, state, action string) *StateConflictError {
	return &StateConflictError{
		BookingID: bookingID,
		State:     state,
		Action:    action,
	}
}

func IsStateConflictError(err error) *StateConflictError {
	if err == nil {
		return nil
	}

	var conflictError *StateConflictError

	if errors.As(err, &conflictError) {
		return conflictError
	}

	return nil
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("booking '%v' is %v: cannot %v", e.BookingID, e.State, e.Action)
}

type StaleDataError struct {
	Subject string
	Reason  string
}

func NewStaleDataError(subject, reason string) *StaleDataError {
	return &StaleDataError{Subject: subject, Reason: reason}
}

func IsStaleDataError(err error) *StaleDataError {
	if err == nil {
		return nil
	}

	var staleError *StaleDataError

	if errors.As(err, &staleError) {
		return staleError
	}

	return nil
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("%v is stale: %v", e.Subject, e.Reason)
}

type TransientIOError struct {
	Op  string
	err error
}

func NewTransientIOError(op string, err error) *TransientIOError {
	return &TransientIOError{Op: op, err: err}
}

func IsTransientIOError(err error) *TransientIOError {
	if err == nil {
		return nil
	}

	var transientError *TransientIOError

	if errors.As(err, &transientError) {
		return transientError
	}

	return nil
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.err)
}

func (e *TransientIOError) Unwrap() error {
	return e.err
}

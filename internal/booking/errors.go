package booking

import (
	"errors"
	"fmt"
)

// Kind classifies allocator failures.  Handlers map each kind to exactly
// one HTTP status.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidSlot       Kind = "INVALID_SLOT"
	KindCapacityExceeded  Kind = "CAPACITY_EXCEEDED"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// CapacityDetail is attached to CapacityExceeded errors.  The JSON names
// are part of the public API and are kept in Spanish.
type CapacityDetail struct {
	MaxUsers          int `json:"maxUsers"`
	PlazasDisponibles int `json:"plazasDisponibles"`
	PlazasSolicitadas int `json:"plazasSolicitadas"`
	PlazasReservadas  int `json:"plazasReservadas"`
}

// Error is the typed error returned by the allocator.
type Error struct {
	Kind     Kind
	Message  string
	Err      error
	Capacity *CapacityDetail
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func InvalidSlot(msg string) *Error { return &Error{Kind: KindInvalidSlot, Message: msg} }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// ResourceExhausted reports that no database connection became available
// within the acquisition deadline.
func ResourceExhausted(err error) *Error {
	return &Error{Kind: KindResourceExhausted, Message: "no database connection available", Err: err}
}

// Internal wraps an unexpected storage failure.  Internal errors are never
// retried by the allocator.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// CapacityExceeded builds the rejection for a change of delta places on a
// slot that already holds occupied places.
func CapacityExceeded(capacity, occupied, delta int) *Error {
	avail := capacity - occupied
	if avail < 0 {
		avail = 0
	}
	return &Error{
		Kind:    KindCapacityExceeded,
		Message: fmt.Sprintf("capacity exceeded: %d requested, %d available", delta, avail),
		Capacity: &CapacityDetail{
			MaxUsers:          capacity,
			PlazasDisponibles: avail,
			PlazasSolicitadas: delta,
			PlazasReservadas:  occupied,
		},
	}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal server error", err)
}

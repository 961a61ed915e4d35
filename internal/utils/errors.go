package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/poofware/backoffice-service/internal/models"
)

/*
Sentinel errors for the backoffice domain.
The controller can do: if errors.Is(err, ErrXYZ) { ... }
*/
var (
	// Validation
	ErrInvalidInput = errors.New("invalid_input")
	ErrOutOfRange   = errors.New("out_of_range")

	// Not found
	ErrWorkOrderNotFound    = errors.New("work_order_not_found")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrCrewNotFound         = errors.New("crew_not_found")
	ErrCustomerNotFound     = errors.New("customer_not_found")
	ErrPropertyNotFound     = errors.New("property_not_found")
	ErrInvalidPlan          = errors.New("invalid_plan")

	// Conflict
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrTerminalState       = errors.New("terminal_state")
	ErrAlreadyCanceled     = errors.New("already_canceled")
	ErrConflict            = errors.New("conflict")
	ErrCrewRequired        = errors.New("crew_required")
	ErrChargeInProgress    = errors.New("charge_in_progress")
	ErrCrewHasActiveOrders = errors.New("crew_has_active_orders")

	// Unavailable
	ErrCrewUnavailable = errors.New("crew_unavailable")

	// For concurrency conflicts at the repository level
	ErrRowVersionConflict = errors.New("row_version_conflict")

	// For external service failures (e.g. payment gateway transport errors)
	ErrExternalServiceFailure = errors.New("external_service_failure")
)

// ErrorKind groups domain errors by how a caller recovers from them.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindUnavailable ErrorKind = "unavailable"
)

var errorKinds = map[error]ErrorKind{
	ErrInvalidInput:         KindValidation,
	ErrOutOfRange:           KindValidation,
	ErrWorkOrderNotFound:    KindNotFound,
	ErrSubscriptionNotFound: KindNotFound,
	ErrCrewNotFound:         KindNotFound,
	ErrCustomerNotFound:     KindNotFound,
	ErrPropertyNotFound:     KindNotFound,
	ErrInvalidPlan:          KindNotFound,
	ErrInvalidTransition:    KindConflict,
	ErrTerminalState:        KindConflict,
	ErrAlreadyCanceled:      KindConflict,
	ErrConflict:             KindConflict,
	ErrCrewRequired:         KindConflict,
	ErrChargeInProgress:     KindConflict,
	ErrCrewHasActiveOrders:  KindConflict,
	ErrRowVersionConflict:   KindConflict,
	ErrCrewUnavailable:      KindUnavailable,
}

// KindOf classifies err. Errors outside the domain taxonomy are KindNone
// and must be treated as internal faults.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindNone
}

// codeOf returns the snake_case code of the sentinel err wraps.
func codeOf(err error) string {
	for sentinel := range errorKinds {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ErrCodeInternal
}

/*
TransitionError names the current and requested state of a rejected
work order transition.
*/
type TransitionError struct {
	From models.WorkOrderState
	To   models.WorkOrderState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: cannot move work order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

/*
RowVersionConflictError is returned when the caller's expected row version
is stale. It carries the latest entity so the controller can return it.
*/
type RowVersionConflictError struct {
	Current any
}

func (e *RowVersionConflictError) Error() string {
	return "conflict: row_version_conflict"
}

func (e *RowVersionConflictError) Unwrap() error { return ErrConflict }

func NewRowVersionConflictError(current any) error {
	return &RowVersionConflictError{Current: current}
}

// ValidationError points at the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid_input: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HandleAppError centralizes responding to service errors. Domain errors are
// expected failures and answer 400 with their message; anything else is a 500.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
		return
	}

	if KindOf(err) != KindNone {
		var details any
		var conflict *RowVersionConflictError
		if errors.As(err, &conflict) {
			details = conflict.Current
		}
		RespondErrorWithCode(w, http.StatusBadRequest, codeOf(err), err.Error(), details)
		return
	}

	// Fallback for unexpected error types
	RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
}

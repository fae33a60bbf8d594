package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/labring/devbox-console/pkg/common"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation_error"
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	ErrorTypeTargetNotFound  ErrorType = "target_not_found"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeInternal        ErrorType = "internal_error"
	ErrorTypeProcessError    ErrorType = "process_error"
	ErrorTypePrecondition    ErrorType = "precondition"
)

// Sentinels for errors.Is. Any *APIError of the same type matches.
var (
	ErrUnauthenticated = &APIError{Type: ErrorTypeUnauthenticated, Message: "unauthenticated", Code: http.StatusUnauthorized}
	ErrTargetNotFound  = &APIError{Type: ErrorTypeTargetNotFound, Message: "server does not exist", Code: http.StatusNotFound}
	ErrInvalidRequest  = &APIError{Type: ErrorTypeInvalidRequest, Message: "invalid request", Code: http.StatusBadRequest}
	ErrPrecondition    = &APIError{Type: ErrorTypePrecondition, Message: "precondition failed", Code: http.StatusBadRequest}
)

// APIError represents a structured API error
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is reports whether target is an APIError of the same type
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Status maps the error onto the response envelope status
func (e *APIError) Status() common.Status {
	switch e.Type {
	case ErrorTypeUnauthenticated:
		return common.StatusUnauthorized
	case ErrorTypeTargetNotFound:
		return common.StatusNotFound
	case ErrorTypeInvalidRequest, ErrorTypePrecondition:
		return common.StatusInvalidRequest
	case ErrorTypeValidation:
		return common.StatusValidationError
	case ErrorTypeConflict:
		return common.StatusConflict
	case ErrorTypeProcessError:
		return common.StatusOperationError
	default:
		return common.StatusInternalError
	}
}

// NewAPIError creates a new API error
func NewAPIError(errorType ErrorType, message string, code int, details ...string) *APIError {
	err := &APIError{
		Type:    errorType,
		Message: message,
		Code:    code,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func NewInternalError(message string, details ...string) *APIError {
	return NewAPIError(ErrorTypeInternal, message, http.StatusInternalServerError, details...)
}

func NewInvalidRequestError(message string, details ...string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message, http.StatusBadRequest, details...)
}

func NewUnauthenticatedError(details ...string) *APIError {
	return NewAPIError(ErrorTypeUnauthenticated, "unauthenticated", http.StatusUnauthorized, details...)
}

// NewTargetNotFoundError creates a target not found error. The message is
// the one operators and older consoles already match on.
func NewTargetNotFoundError(name string) *APIError {
	return NewAPIError(ErrorTypeTargetNotFound, "server does not exist", http.StatusNotFound, name)
}

func NewProcessError(message string, details ...string) *APIError {
	return NewAPIError(ErrorTypeProcessError, message, http.StatusInternalServerError, details...)
}

func NewPreconditionError(message string) *APIError {
	return NewAPIError(ErrorTypePrecondition, message, http.StatusBadRequest)
}

// FromStatus converts a non-success envelope into an APIError
func FromStatus(status common.Status, message string) *APIError {
	switch status {
	case common.StatusSuccess:
		return nil
	case common.StatusUnauthorized:
		return NewAPIError(ErrorTypeUnauthenticated, message, http.StatusUnauthorized)
	case common.StatusNotFound:
		return NewAPIError(ErrorTypeTargetNotFound, message, http.StatusNotFound)
	case common.StatusInvalidRequest:
		return NewAPIError(ErrorTypeInvalidRequest, message, http.StatusBadRequest)
	case common.StatusValidationError:
		return NewAPIError(ErrorTypeValidation, message, http.StatusBadRequest)
	case common.StatusConflict:
		return NewAPIError(ErrorTypeConflict, message, http.StatusConflict)
	case common.StatusOperationError:
		return NewAPIError(ErrorTypeProcessError, message, http.StatusInternalServerError)
	default:
		return NewAPIError(ErrorTypeInternal, message, http.StatusInternalServerError)
	}
}

// Kind is the handling class of an error as seen by the console
type Kind int

const (
	// KindTransient errors are reported and the operation is retried on the next cycle.
	KindTransient Kind = iota
	// KindPrecondition errors are detected locally before any network call.
	KindPrecondition
	// KindAuth errors end the current view and send the operator to login.
	KindAuth
	// KindNotFound errors end the current stream and send the operator to the listing.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// Classify sorts err into one of the handling classes
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindTransient
	case stderrors.Is(err, ErrUnauthenticated):
		return KindAuth
	case stderrors.Is(err, ErrTargetNotFound):
		return KindNotFound
	case stderrors.Is(err, ErrPrecondition):
		return KindPrecondition
	default:
		return KindTransient
	}
}

// IsTerminal reports whether err ends a console view
func IsTerminal(err error) bool {
	k := Classify(err)
	return err != nil && (k == KindAuth || k == KindNotFound)
}

// WriteErrorResponse writes err as a response envelope
func WriteErrorResponse(w http.ResponseWriter, err *APIError) {
	common.WriteErrorResponse(w, err.Status(), "%s", err.Message)
}

// AsAPIError returns err as an APIError, wrapping foreign errors as internal
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError(err.Error())
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Code is the stable, machine readable kind of an APIError.
type Code string

const (
	CodeValidation        Code = "validation_error"
	CodePermissionDenied  Code = "permission_denied"
	CodeInvalidTransition Code = "invalid_transition"
	CodeConflict          Code = "conflict"
	CodeNotFound          Code = "not_found"
	CodeUnauthorized      Code = "unauthorized"
	CodeInternal          Code = "internal_error"
)

// APIError is the error type returned by services and rendered by the error middleware.
type APIError struct {
	Status   int            `json:"-"`
	Code     Code           `json:"code"`
	Message  string         `json:"error"`
	Details  map[string]any `json:"details,omitempty"`
	Internal error          `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

// Retryable reports whether the caller may retry after re-fetching the document.
func (e *APIError) Retryable() bool {
	return e.Code == CodeConflict
}

// WithDetail returns a copy of the error carrying one more detail entry.
func (e *APIError) WithDetail(key string, value any) *APIError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &APIError{
		Status:   e.Status,
		Code:     e.Code,
		Message:  e.Message,
		Details:  details,
		Internal: e.Internal,
	}
}

func New(status int, code Code, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

func Validation(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, CodeValidation, message, err)
}

func Forbidden(message string, err error) *APIError {
	return New(http.StatusForbidden, CodePermissionDenied, message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, CodeNotFound, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return New(http.StatusUnauthorized, CodeUnauthorized, message, err)
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, CodeValidation, message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, CodeInternal, "Internal server error", err)
}

// InvalidTransition reports an action that is not legal from the current state.
func InvalidTransition(variant, current, action string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("Cannot %s a %s document in state %s", action, strings.ToLower(variant), current),
		Details: map[string]any{
			"variant":       variant,
			"current_state": current,
			"action":        action,
		},
	}
}

// Conflict reports a lost compare-and-set race.
func Conflict(expected, current string, err error) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: "Document was changed by another request, reload and try again",
		Details: map[string]any{
			"expected_state": expected,
			"current_state":  current,
		},
		Internal: err,
	}
}

// NewValidationError converts binding and validator failures into a 422 with per-field messages.
func NewValidationError(err error) *APIError {
	apiErr := Validation("Invalid input", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[toSnake(fe.Field())] = validationMessage(fe)
		}
		apiErr.Details = map[string]any{"fields": fields}
	}
	return apiErr
}

// HasCode reports whether err is an APIError of the given code.
func HasCode(err error, code Code) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "failed on " + fe.Tag()
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

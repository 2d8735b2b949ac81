package courses

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-elearning-portal/internal/apiclient"
)

// FieldError is a validation failure on one input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned before any request is made when input is incomplete.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid course: " + strings.Join(msgs, "; ")
}

// Field returns the message for field, or "".
func (e *ValidationError) Field(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// AuthorizationError is returned when the backend answers 403.
type AuthorizationError struct {
	Op  string
	Err error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized to %s", e.Op)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// ResourceError is any other failure talking to the backend. StatusCode is 0
// for transport failures; Message carries the server's explanation when it sent one.
type ResourceError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ResourceError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("failed to %s: %s", e.Op, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("failed to %s: HTTP %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
}

func (e *ResourceError) Unwrap() error { return e.Err }

// classify turns a transport or status error into the package taxonomy.
func classify(op string, err error) error {
	var statusErr *apiclient.StatusError
	if !apiclient.IsStatus(err, &statusErr) {
		return &ResourceError{Op: op, Err: err}
	}
	if statusErr.StatusCode == 403 {
		return &AuthorizationError{Op: op, Err: err}
	}
	return &ResourceError{
		Op:         op,
		StatusCode: statusErr.StatusCode,
		Message:    statusErr.Message,
		Err:        err,
	}
}

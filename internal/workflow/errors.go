package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a report does not exist or was soft-deleted.
var ErrNotFound = errors.New("report not found")

// ValidationError carries field-keyed messages for malformed input.
// The caller can fix the input and resubmit.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Message: "Validation failed", Fields: map[string]string{field: msg}}
}

// Validation wraps a field map; it returns nil when fields is empty so it can
// be used directly on the result of a Validate method.
func Validation(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Message: "Validation failed", Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// AuthorizationError means the actor's role lacks the capability for the action.
// Retrying without a role change will not help.
type AuthorizationError struct {
	Action Action
	Role   Role
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("role %q may not %s reports", e.Role, e.Action)
}

// StateConflictError means the action is illegal for the report's current
// status. Current lets the client refresh and decide what to do.
type StateConflictError struct {
	Action  Action
	Current Status
}

func (e *StateConflictError) Error() string {
	switch e.Action {
	case ActionEdit:
		return "Only pending reports can be updated"
	case ActionDelete:
		return "Only pending reports can be deleted"
	case ActionVet:
		return "Only pending reports can be vetted"
	case ActionApprove:
		return "Only vetted reports can be approved"
	case ActionReject:
		return fmt.Sprintf("%s reports cannot be rejected", e.Current.Label())
	}
	return fmt.Sprintf("cannot %s a report in status %q", e.Action, e.Current)
}

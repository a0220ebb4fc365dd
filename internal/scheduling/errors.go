package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"tutoring-scheduler/internal/data/entity"
)

// Error categories. Typed errors below match one of these through errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrConcurrency     = errors.New("concurrent modification")
	ErrIntegrity       = errors.New("integrity violation")
	ErrEmptyCollection = errors.New("empty collection")
)

// ValidationError lists offending fields with a human-readable message each.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateError is returned when a trigger is not allowed from the current status.
type InvalidStateError struct {
	Current entity.SessionStatus
	Trigger Trigger
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s session in status %s", e.Trigger, e.Current)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrConflict }

// ConflictError carries the active sessions that overlap the requested window.
type ConflictError struct {
	Conflicts []*entity.Session
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "conflicting session exists for the selected time slot"
	}
	return fmt.Sprintf("conflicting session exists for the selected time slot (%d overlapping)", len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

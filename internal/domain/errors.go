package domain

import "fmt"

// ValidationError reports bad or missing input. No state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scheduled message %s not found", e.ID)
}

func NewNotFoundError(id string) error {
	return &NotFoundError{ID: id}
}

// InvalidStateError is returned when a transition is attempted from a status
// that does not allow it.
type InvalidStateError struct {
	ID        string
	Status    MessageStatus
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s message %s in status %s", e.Operation, e.ID, e.Status)
}

func NewInvalidStateError(id string, status MessageStatus, op string) error {
	return &InvalidStateError{ID: id, Status: status, Operation: op}
}

// PersistenceError means the write-back of the collection failed and the
// mutation was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist messages on %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// SyncError means mirroring a message into host fields failed or timed out.
// Local state is already committed when this is reported.
type SyncError struct {
	EntityType EntityType
	EntityID   int64
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to sync fields for %s %d: %v", e.EntityType, e.EntityID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func NewSyncError(ref EntityRef, err error) error {
	return &SyncError{EntityType: ref.Type, EntityID: ref.ID, Err: err}
}

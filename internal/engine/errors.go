package engine

import (
	"errors"
	"fmt"
)

// Domain-specific errors for engine state.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a named document, object or attribute is absent.
	ErrNotFound = errors.New("engine: not found")

	// ErrUnknownType is returned when creating an object of an uncatalogued type.
	// Like NotFoundError its text reaches remote callers unprefixed.
	ErrUnknownType = errors.New("unknown object type")

	// ErrNoActiveDocument is returned when an operation needs an active document
	// and none is open.
	ErrNoActiveDocument = errors.New("engine: no active document")
)

// NotFoundError names the missing entity. It matches ErrNotFound under errors.Is.
//
// Its message is deliberately bare ("Box not found") because it is returned to
// remote callers verbatim inside the failure envelope.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Name)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// notFound builds a NotFoundError for name.
func notFound(name string) error {
	return &NotFoundError{Name: name}
}

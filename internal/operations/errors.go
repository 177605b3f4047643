package operations

import (
	"errors"
	"fmt"
)

// Domain-specific errors for method dispatch.
var (
	// ErrMethodNotFound is returned by Call for an unregistered method name.
	ErrMethodNotFound = errors.New("method not found")

	// ErrInvalidParams is returned by Call when the positional parameters do
	// not fit the method.
	ErrInvalidParams = errors.New("invalid params")

	// ErrJournalDisabled is reported by get_task_history when no journal is
	// configured.
	ErrJournalDisabled = errors.New("task journal is disabled")
)

func invalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

package coerce

import (
	"errors"
	"fmt"
)

// ErrTypeMismatch is returned when input cannot be coerced into the declared
// kind of its destination attribute.
var ErrTypeMismatch = errors.New("type mismatch")

func mismatch(attr, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", attr, ErrTypeMismatch, fmt.Sprintf(format, args...))
}

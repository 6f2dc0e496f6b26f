package volume

import (
	"errors"
	"fmt"
)

// Error taxonomy for phantom construction. Every error returned by this
// module wraps exactly one of these; test with errors.Is.
var (
	// ErrConfiguration reports invalid or missing grid parameters,
	// double initialization, or a label the grid cannot store.
	ErrConfiguration = errors.New("configuration error")

	// ErrIncompleteShape reports a shape initialized or drawn without all
	// required geometry fields.
	ErrIncompleteShape = errors.New("incomplete shape")

	// ErrOutOfBounds reports an index outside the grid. Rasterization
	// clamps its scan to the grid, so seeing this from a draw is a bug.
	ErrOutOfBounds = errors.New("index out of bounds")

	// ErrIO reports an unwritable or unreadable output path.
	ErrIO = errors.New("i/o error")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ioError wraps err so that it matches both ErrIO and the underlying cause.
func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

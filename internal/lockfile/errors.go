package lockfile

import (
	"errors"
	"fmt"
)

var (
	// ErrLockfileNotFound indicates the lockfile does not exist. Callers
	// usually respond by resolving.
	ErrLockfileNotFound = errors.New("lockfile not found")

	// ErrCorruptedLockfile indicates lockfile content that cannot be trusted.
	ErrCorruptedLockfile = errors.New("corrupted lockfile")
)

// CorruptedError names the lockfile field that failed to parse.
type CorruptedError struct {
	Field string
	Msg   string
}

func (e *CorruptedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("corrupted lockfile: %s", e.Msg)
	}
	return fmt.Sprintf("corrupted lockfile: %s: %s", e.Field, e.Msg)
}

func (e *CorruptedError) Unwrap() error {
	return ErrCorruptedLockfile
}

func corrupted(field, format string, args ...any) error {
	return &CorruptedError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

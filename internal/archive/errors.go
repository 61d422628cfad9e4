package archive

import "errors"

var (
	// ErrSourceNotFound indicates the directory to pack does not exist.
	ErrSourceNotFound = errors.New("source directory not found")

	// ErrCorruptArchive indicates an artifact that cannot be read or contains unsafe entries.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrInvalidPattern indicates an exclude glob that does not compile.
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)

package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestNotFound indicates the manifest file does not exist.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrInvalidManifest indicates a manifest that fails validation.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrInvalidAssetName indicates an asset name that could address a path
	// outside the directories gda manages.
	ErrInvalidAssetName = errors.New("invalid asset name")
)

// ValidationError names the manifest field that failed validation.
type ValidationError struct {
	// Field is the dotted path of the offending field, e.g. "assets.data.destination".
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid manifest: %s", e.Msg)
	}
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidManifest
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

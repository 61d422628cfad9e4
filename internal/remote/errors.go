package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrReleaseNotFound is returned when the requested release tag does not
	// exist in the repository.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrAssetNotFound is returned when a download URL does not resolve to
	// an object.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInvalidRepository is returned when a repository identifier cannot
	// be understood by the selected backend.
	ErrInvalidRepository = errors.New("invalid repository")
)

// Error is a transport or API failure from a remote store.
type Error struct {
	// Op names the store operation, e.g. "get release".
	Op string

	// StatusCode is the backend's status indicator, 0 when the request never
	// produced a response.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the status carried by a *Error in err's chain, or 0.
func StatusCode(err error) int {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.StatusCode
	}
	return 0
}

package staging

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/intake/types"
)

// ErrNoProvider is returned when no provider is registered for an address scheme.
var ErrNoProvider = errors.New("no content provider for scheme")

// ErrNotIndirect is returned when Stage is called with a Direct address.
var ErrNotIndirect = errors.New("address is not indirect")

// StagingErrorKind classifies staging failures.
type StagingErrorKind int

const (
	// StagingErrorOpen indicates the source stream could not be opened.
	StagingErrorOpen StagingErrorKind = iota
	// StagingErrorCopy indicates the copy into scratch storage was interrupted.
	StagingErrorCopy
	// StagingErrorCommit indicates the completed copy could not be made visible.
	StagingErrorCommit
)

// String returns the log label for the kind.
func (k StagingErrorKind) String() string {
	switch k {
	case StagingErrorOpen:
		return "open"
	case StagingErrorCopy:
		return "copy"
	case StagingErrorCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// StagingError is returned by Stager.Stage. No scratch file is left behind
// when a StagingError is returned.
type StagingError struct {
	Kind StagingErrorKind
	Addr types.FileAddress
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s failed for %q: %v", e.Kind, e.Addr.Raw, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// IsStagingError reports whether err is (or wraps) a *StagingError.
func IsStagingError(err error) bool {
	var stagingErr *StagingError
	return errors.As(err, &stagingErr)
}

// StatusError is returned by HTTPProvider for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

package msi

import (
	"errors"
	"fmt"
)

var (
	// ErrReleaseTimeout is logged, never returned, when the package file stays
	// locked after the database was closed.
	ErrReleaseTimeout = errors.New("msi: database handle not released in time")
	// ErrUnsupported is returned by the COM opener outside Windows.
	ErrUnsupported = errors.New("msi: Windows Installer automation is not available on this platform")
)

// InvalidMsiError means path could not be opened or read as an installer database.
type InvalidMsiError struct {
	Path string
	Err  error
}

func (e *InvalidMsiError) Error() string {
	return fmt.Sprintf("%s is not a valid MSI package: %v", e.Path, e.Err)
}

func (e *InvalidMsiError) Unwrap() error { return e.Err }

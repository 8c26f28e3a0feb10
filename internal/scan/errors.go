package scan

import (
	"errors"
	"fmt"
)

var (
	ErrNothingToScan  = errors.New("all pages have been processed")
	ErrNoSource       = errors.New("no enabled AI source with a credential")
	ErrScanInProgress = errors.New("a scan is already running")
)

// ModelNotConfiguredError names a chain source without a model
type ModelNotConfiguredError struct {
	Source string
}

func (e *ModelNotConfiguredError) Error() string {
	return fmt.Sprintf("AI source %q has no model configured", e.Source)
}

// UnsupportedTypeError is returned when no source in the chain accepts a
// page's MIME type
type UnsupportedTypeError struct {
	MimeType string
	Item     string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no enabled AI source supports %s (%s)", e.MimeType, e.Item)
}

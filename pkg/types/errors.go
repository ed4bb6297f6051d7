package types

import "errors"

// Error kinds surfaced by the resolution path. Callers wrap them with
// fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrValidation reports a source URL that does not have the accepted prefix.
	ErrValidation = errors.New("invalid source url")
	// ErrNotConfigured reports that no source URL has been set.
	ErrNotConfigured = errors.New("source url not configured")
	// ErrExtraction reports that the browser backend could not produce an iframe URL.
	ErrExtraction = errors.New("extraction failed")
	// ErrStorage reports that the document store could not be read or written.
	ErrStorage = errors.New("storage unavailable")
)

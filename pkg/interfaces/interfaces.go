// Package interfaces defines the core abstractions of the resolver.
// Storage backends and extraction backends implement these interfaces,
// so the resolution logic never depends on a concrete browser or medium.
package interfaces

import (
	"context"
	"net/http"
)

// DocumentStore persists whole JSON documents under a name.
//
// Read decodes the named document into dst. A document that was never
// written is not an error: dst is left untouched and nil is returned.
// Write replaces the whole document; readers never observe a partial write.
// Failures of the underlying medium are reported wrapped in types.ErrStorage.
type DocumentStore interface {
	Read(ctx context.Context, key string, dst any) error
	Write(ctx context.Context, key string, doc any) error
}

// Extractor turns a source page URL into the embeddable iframe URL found in it.
//
// To add a new backend:
// 1. Create a new file in pkg/extractors/
// 2. Implement this interface
// 3. Register it in the ExtractorRegistry (see internal/app)
type Extractor interface {
	// Name returns a unique identifier for this backend.
	Name() string

	// Extract loads pageURL and returns the src of the first matching iframe.
	// Every failure is wrapped in types.ErrExtraction. Any browser resources
	// acquired for the call are released before it returns.
	Extract(ctx context.Context, pageURL string) (string, error)

	// Close releases resources held for the lifetime of the backend.
	Close() error
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Package types defines core domain types used throughout the application.
package types

// Document names understood by the store.
const (
	ConfigDocumentKey = "config"
	CacheDocumentKey  = "cache"
)

// ConfigDocument is the persisted service configuration.
// An empty DefaultVideoURL means no source page has been configured yet.
type ConfigDocument struct {
	DefaultVideoURL string `json:"defaultVideoUrl"`
}

// CacheEntry is a previously resolved iframe URL for one source page.
type CacheEntry struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"` // epoch millis of the extraction
}

// CacheDocument maps a source page URL to its last resolution.
type CacheDocument map[string]CacheEntry

// UpdateURLRequest is the body of POST /update-url.
type UpdateURLRequest struct {
	NewURL string `json:"newUrl"`
}

// UpdateURLResponse is returned after the source URL was stored.
type UpdateURLResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// CurrentURLResponse is returned by GET /current-url.
type CurrentURLResponse struct {
	IframeURL string `json:"iframeUrl"`
}

// InfoResponse describes the running service.
type InfoResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Backend       string `json:"backend"`
	ConfiguredURL string `json:"configuredUrl"`
	SourcePrefix  string `json:"sourcePrefix"`
}

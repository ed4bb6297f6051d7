package extractors

import (
	"context"

	"embed-resolver/pkg/httpclient"
	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
)

// pageFetcher is the part of httpclient.Client the HTTP backend needs.
type pageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// HTTPExtractor fetches the source page without a browser and reads the
// iframe from the served HTML. It only works for pages that render the player
// iframe server-side, but needs no browser at all.
type HTTPExtractor struct {
	*BaseExtractor
	client pageFetcher
}

// NewHTTPExtractor creates an extractor backed by the utls HTTP client.
func NewHTTPExtractor(client *httpclient.Client, marker string, log *logging.Logger) *HTTPExtractor {
	return newHTTPExtractor(client, marker, log)
}

func newHTTPExtractor(client pageFetcher, marker string, log *logging.Logger) *HTTPExtractor {
	return &HTTPExtractor{
		BaseExtractor: NewBaseExtractor("http", marker, log),
		client:        client,
	}
}

// Extract fetches pageURL and returns the matching iframe src.
func (e *HTTPExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	e.log.Debug("fetching page", "url", pageURL)

	html, err := e.client.FetchPage(ctx, pageURL)
	if err != nil {
		return "", extractionError(e.name, err)
	}

	src, err := FindIframe(html, pageURL, e.marker)
	if err != nil {
		return "", extractionError(e.name, err)
	}
	return src, nil
}

// Close releases resources.
func (e *HTTPExtractor) Close() error {
	return nil
}

var _ interfaces.Extractor = (*HTTPExtractor)(nil)

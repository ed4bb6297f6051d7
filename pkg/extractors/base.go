// Package extractors provides the extraction backends that turn a source page
// into the embeddable iframe URL it contains.
//
// To add a new backend:
// 1. Create a new file (e.g., mybackend.go)
// 2. Implement the Extractor interface
// 3. Register it in the registry (see setup in internal/app)
package extractors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/types"
	"embed-resolver/pkg/urlutil"
)

// ErrNoIframe reports that the page held no iframe matching the marker.
var ErrNoIframe = errors.New("no matching iframe found")

// BaseExtractor holds what every backend shares: the marker that identifies
// the video host and a component logger.
type BaseExtractor struct {
	name   string
	marker string
	log    *logging.Logger
}

// NewBaseExtractor creates a new base extractor.
func NewBaseExtractor(name, marker string, log *logging.Logger) *BaseExtractor {
	return &BaseExtractor{
		name:   name,
		marker: marker,
		log:    log.WithComponent(name + "-extractor"),
	}
}

// Name returns the backend name.
func (b *BaseExtractor) Name() string {
	return b.name
}

// Selector returns the CSS selector for matching iframes.
func (b *BaseExtractor) Selector() string {
	return IframeSelector(b.marker)
}

// IframeSelector builds the CSS selector for iframes whose src contains marker.
func IframeSelector(marker string) string {
	return "iframe[src*=" + strconv.Quote(marker) + "]"
}

// FindIframe parses html and returns the absolute src of the first iframe
// whose src contains marker. Relative sources are resolved against pageURL.
func FindIframe(html, pageURL, marker string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	src, ok := doc.Find(IframeSelector(marker)).First().Attr("src")
	if !ok {
		return "", ErrNoIframe
	}

	resolved := urlutil.ResolveIframeSrc(src, pageURL)
	if resolved == "" {
		return "", ErrNoIframe
	}
	return resolved, nil
}

// extractionError wraps a backend failure as types.ErrExtraction.
func extractionError(backend string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrExtraction, backend, err)
}

package services

import (
	"context"
	"time"

	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/types"
)

// CacheTTL is how long a resolved iframe URL stays valid.
const CacheTTL = time.Hour

// ResolutionCache maps source URLs to resolved iframe URLs with the time
// they were resolved. Every call re-reads the backing document; there is no
// in-process copy.
type ResolutionCache struct {
	store interfaces.DocumentStore
	log   *logging.Logger
}

// NewResolutionCache creates a cache over store.
func NewResolutionCache(store interfaces.DocumentStore, log *logging.Logger) *ResolutionCache {
	return &ResolutionCache{
		store: store,
		log:   log.WithComponent("resolution-cache"),
	}
}

// Lookup returns the cached URL for sourceURL if it was resolved less than
// ttl before now. Missing and expired entries both report false.
func (c *ResolutionCache) Lookup(ctx context.Context, sourceURL string, ttl time.Duration, now time.Time) (string, bool, error) {
	doc, err := c.Entries(ctx)
	if err != nil {
		return "", false, err
	}

	entry, ok := doc[sourceURL]
	if !ok {
		return "", false, nil
	}

	age := now.UnixMilli() - entry.Timestamp
	if age >= ttl.Milliseconds() {
		c.log.Debug("cache entry expired", "url", sourceURL, "age_ms", age)
		return "", false, nil
	}
	return entry.URL, true, nil
}

// Upsert records resolvedURL for sourceURL at now, replacing any previous
// entry. The read-modify-write is not guarded: concurrent writers race and
// the last write wins.
func (c *ResolutionCache) Upsert(ctx context.Context, sourceURL, resolvedURL string, now time.Time) error {
	doc, err := c.Entries(ctx)
	if err != nil {
		return err
	}

	doc[sourceURL] = types.CacheEntry{
		URL:       resolvedURL,
		Timestamp: now.UnixMilli(),
	}
	return c.store.Write(ctx, types.CacheDocumentKey, doc)
}

// Entries returns the whole cache document, including expired entries.
func (c *ResolutionCache) Entries(ctx context.Context) (types.CacheDocument, error) {
	doc := types.CacheDocument{}
	if err := c.store.Read(ctx, types.CacheDocumentKey, &doc); err != nil {
		return nil, err
	}
	// A file holding JSON null decodes to a nil map.
	if doc == nil {
		doc = types.CacheDocument{}
	}
	return doc, nil
}

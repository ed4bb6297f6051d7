package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/types"
)

// Resolver turns the configured source URL into an iframe URL, serving from
// the cache when it can and extracting otherwise.
type Resolver struct {
	configs   *ConfigStore
	cache     *ResolutionCache
	extractor interfaces.Extractor
	log       *logging.Logger

	dedupe bool
	group  singleflight.Group
}

// NewResolver creates a resolver. With dedupe set, concurrent cache misses
// for the same source URL share a single extraction.
func NewResolver(
	configs *ConfigStore,
	cache *ResolutionCache,
	extractor interfaces.Extractor,
	log *logging.Logger,
	dedupe bool,
) *Resolver {
	return &Resolver{
		configs:   configs,
		cache:     cache,
		extractor: extractor,
		log:       log.WithComponent("resolver"),
		dedupe:    dedupe,
	}
}

// Backend returns the name of the extraction backend in use.
func (r *Resolver) Backend() string {
	return r.extractor.Name()
}

// ResolveCurrent resolves the configured source URL. It fails with
// types.ErrNotConfigured, without touching the cache, when none is set.
func (r *Resolver) ResolveCurrent(ctx context.Context, now time.Time) (string, error) {
	sourceURL, err := r.configs.GetConfiguredURL(ctx)
	if err != nil {
		return "", err
	}
	if sourceURL == "" {
		return "", types.ErrNotConfigured
	}
	return r.Resolve(ctx, sourceURL, now)
}

// Resolve returns the iframe URL for sourceURL. A cache entry younger than
// CacheTTL is returned without extraction. On a miss the extractor runs and
// its result is written to the cache; a failed extraction writes nothing.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string, now time.Time) (string, error) {
	log := logging.FromContextOr(ctx, r.log).WithURL(sourceURL)

	cached, ok, err := r.cache.Lookup(ctx, sourceURL, CacheTTL, now)
	if err != nil {
		return "", err
	}
	if ok {
		log.Debug("cache hit", "iframe_url", cached)
		return cached, nil
	}
	log.Debug("cache miss")

	// The extraction outlives the caller: a client that disconnects does not
	// abort a browser that is already loading the page.
	extractCtx := context.WithoutCancel(ctx)

	if !r.dedupe {
		return r.extractAndStore(extractCtx, sourceURL, now, log)
	}

	v, err, shared := r.group.Do(sourceURL, func() (any, error) {
		return r.extractAndStore(extractCtx, sourceURL, now, log)
	})
	if shared {
		log.Debug("joined in-flight extraction")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) extractAndStore(ctx context.Context, sourceURL string, now time.Time, log *logging.Logger) (string, error) {
	start := time.Now()
	iframeURL, err := r.extractor.Extract(ctx, sourceURL)
	elapsed := time.Since(start)
	if err != nil {
		log.WithDuration(elapsed).WithError(err).Warn("extraction failed", "backend", r.extractor.Name())
		if !errors.Is(err, types.ErrExtraction) {
			err = fmt.Errorf("%w: %w", types.ErrExtraction, err)
		}
		return "", err
	}

	log.WithDuration(elapsed).Info("extracted iframe url", "backend", r.extractor.Name(), "iframe_url", iframeURL)

	if err := r.cache.Upsert(ctx, sourceURL, iframeURL, now); err != nil {
		return "", err
	}
	return iframeURL, nil
}

// Package services provides the resolve-cache-configure logic: the config
// store, the resolution cache and the resolver that ties them to an extractor.
package services

import (
	"context"
	"fmt"

	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/types"
	"embed-resolver/pkg/urlutil"
)

// ConfigStore holds the currently configured source URL.
type ConfigStore struct {
	store  interfaces.DocumentStore
	prefix string
	log    *logging.Logger
}

// NewConfigStore creates a config store accepting URLs that start with prefix.
func NewConfigStore(store interfaces.DocumentStore, prefix string, log *logging.Logger) *ConfigStore {
	return &ConfigStore{
		store:  store,
		prefix: prefix,
		log:    log.WithComponent("config-store"),
	}
}

// Prefix returns the accepted source URL prefix.
func (c *ConfigStore) Prefix() string {
	return c.prefix
}

// GetConfiguredURL returns the configured source URL, or "" if none is set.
func (c *ConfigStore) GetConfiguredURL(ctx context.Context) (string, error) {
	var doc types.ConfigDocument
	if err := c.store.Read(ctx, types.ConfigDocumentKey, &doc); err != nil {
		return "", err
	}
	return doc.DefaultVideoURL, nil
}

// SetConfiguredURL replaces the configured source URL. Nothing is written
// when the URL does not start with the accepted prefix.
func (c *ConfigStore) SetConfiguredURL(ctx context.Context, rawURL string) error {
	if !urlutil.HasSourcePrefix(rawURL, c.prefix) {
		return fmt.Errorf("%w: url must start with %s", types.ErrValidation, c.prefix)
	}

	if err := c.store.Write(ctx, types.ConfigDocumentKey, types.ConfigDocument{DefaultVideoURL: rawURL}); err != nil {
		return err
	}

	c.log.Info("source url configured", "url", rawURL)
	return nil
}

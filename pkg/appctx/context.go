// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"embed-resolver/pkg/config"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/services"
)

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config   *config.Config
	Log      *logging.Logger
	Version  string
	Configs  *services.ConfigStore
	Cache    *services.ResolutionCache
	Resolver *services.Resolver
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger, version string) *Context {
	return &Context{
		Config:  cfg,
		Log:     log,
		Version: version,
	}
}

// WithConfigStore sets the config store.
func (c *Context) WithConfigStore(cs *services.ConfigStore) *Context {
	c.Configs = cs
	return c
}

// WithCache sets the resolution cache.
func (c *Context) WithCache(rc *services.ResolutionCache) *Context {
	c.Cache = rc
	return c
}

// WithResolver sets the resolver.
func (c *Context) WithResolver(r *services.Resolver) *Context {
	c.Resolver = r
	return c
}

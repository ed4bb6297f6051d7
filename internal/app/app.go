// Package app provides the main application setup and dependency injection.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"embed-resolver/pkg/appctx"
	"embed-resolver/pkg/config"
	"embed-resolver/pkg/extractors"
	"embed-resolver/pkg/flaresolverr"
	"embed-resolver/pkg/handlers/api"
	"embed-resolver/pkg/httpclient"
	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/registry"
	"embed-resolver/pkg/server"
	"embed-resolver/pkg/services"
	"embed-resolver/pkg/store"
)

// App is the main application container.
type App struct {
	Ctx          *appctx.Context
	Server       *server.Server
	Store        interfaces.DocumentStore
	ExtractorReg *registry.ExtractorRegistry

	closers []io.Closer
}

// New creates and initializes the application from a loaded configuration.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger, version string) (*App, error) {
	log.Info("initializing embed-resolver",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"backend", cfg.BrowserBackend,
		"log_level", cfg.LogLevel,
	)

	a := &App{}

	st, err := a.openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Store = st

	a.ExtractorReg = registry.NewExtractorRegistry()
	if err := registerExtractors(a.ExtractorReg, cfg, log); err != nil {
		a.Close()
		return nil, err
	}

	extractor, err := a.ExtractorReg.Get(cfg.BrowserBackend)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("selecting extraction backend: %w (available: %v)", err, a.ExtractorReg.Names())
	}

	configs := services.NewConfigStore(st, cfg.SourceURLPrefix, log)
	cache := services.NewResolutionCache(st, log)
	resolver := services.NewResolver(configs, cache, extractor, log, cfg.DedupeExtractions)

	a.Ctx = appctx.New(cfg, log, version).
		WithConfigStore(configs).
		WithCache(cache).
		WithResolver(resolver)

	a.Server = server.New(cfg, log)
	handlers := api.NewHandlers(a.Ctx)
	handlers.RegisterRoutes(a.Server.Router())

	return a, nil
}

// Run starts the HTTP server and blocks until it stops.
func (a *App) Run(ctx context.Context) error {
	a.Ctx.Log.Info("starting embed-resolver server", "port", a.Ctx.Config.Port)
	return a.Server.Start(ctx)
}

// Close releases the extraction backends and the store.
func (a *App) Close() error {
	var errs []error
	if a.ExtractorReg != nil {
		if err := a.ExtractorReg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openStore builds the configured document store.
func (a *App) openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (interfaces.DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		s, err := store.NewSQLiteStore(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		log.Info("using sqlite store", "path", cfg.SQLitePath)
		return s, nil
	default:
		s, err := store.NewFileStore(cfg.DataDir, log)
		if err != nil {
			return nil, err
		}
		log.Info("using file store", "dir", cfg.DataDir)
		return s, nil
	}
}

// registerExtractors registers all extraction backends.
// Add new backends here by:
// 1. Creating a new extractor in pkg/extractors/
// 2. Registering it below
func registerExtractors(reg *registry.ExtractorRegistry, cfg *config.Config, log *logging.Logger) error {
	reg.Register(extractors.NewRodExtractor(cfg, log))

	client, err := httpclient.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating http client: %w", err)
	}
	reg.Register(extractors.NewHTTPExtractor(client, cfg.IframeMarker, log))

	if cfg.FlareSolverrURL != "" {
		flareClient := flaresolverr.NewClient(cfg.FlareSolverrURL, cfg.FlareSolverrTimeout, log)
		reg.Register(extractors.NewFlareSolverrExtractor(flareClient, cfg.IframeMarker, log))
		log.Info("FlareSolverr backend enabled", "url", cfg.FlareSolverrURL)
	}

	log.Info("registered extraction backends", "backends", reg.Names())
	return nil
}

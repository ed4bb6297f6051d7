package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"embed-resolver/internal/app"
)

var flagExtractCache bool

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE:  serveRun,
	}

	setURLCmd = &cobra.Command{
		Use:   "set-url <url>",
		Short: "Store a new source page URL",
		Args:  cobra.ExactArgs(1),
		RunE:  setURLRun,
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the configured source page and print the player URL",
		Args:  cobra.NoArgs,
		RunE:  resolveRun,
	}

	extractCmd = &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract the player URL from a page with the configured backend",
		Args:  cobra.ExactArgs(1),
		RunE:  extractRun,
	}

	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipConfig,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "embed-resolver %s\n", Version)
		},
	}
)

func init() {
	extractCmd.Flags().BoolVar(&flagExtractCache, "cache", false, "Go through the resolution cache and store the result")
}

// skipConfig replaces loadConfig for commands that need no configuration.
func skipConfig(cmd *cobra.Command, args []string) error { return nil }

func serveRun(cmd *cobra.Command, args []string) error {
	log := newLogger(os.Stdout)

	a, err := app.New(cmd.Context(), cfg, log, Version)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		return err
	}
	defer a.Close()

	if err := a.Run(cmd.Context()); err != nil {
		log.Error("server error", "error", err)
		return err
	}
	return nil
}

// openApp wires the application for a one-shot command.
func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, newLogger(os.Stderr), Version)
}

func setURLRun(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Ctx.Configs.SetConfiguredURL(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), args[0])
	return nil
}

func resolveRun(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	resolved, err := a.Ctx.Resolver.ResolveCurrent(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resolved)
	return nil
}

func extractRun(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var resolved string
	if flagExtractCache {
		resolved, err = a.Ctx.Resolver.Resolve(cmd.Context(), args[0], time.Now())
	} else {
		extractor, getErr := a.ExtractorReg.Get(cfg.BrowserBackend)
		if getErr != nil {
			return getErr
		}
		resolved, err = extractor.Extract(cmd.Context(), args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resolved)
	return nil
}

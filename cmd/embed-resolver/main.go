// Package main is the entry point for embed-resolver.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"embed-resolver/pkg/config"
	"embed-resolver/pkg/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig   string
	flagPort     int
	flagDataDir  string
	flagStore    string
	flagBackend  string
	flagLogLevel string
	flagLogJSON  bool
)

// cfg holds the loaded configuration (defaults < config file < env < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "embed-resolver",
	Short: "Resolve video preview pages into embeddable player URLs",
	Long: `embed-resolver loads a configured preview page in a headless browser,
extracts the embedded player iframe and serves its URL over HTTP,
caching each result for an hour.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              serveRun,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Path to a TOML config file (default: $RESOLVER_CONFIG_FILE)")
	pf.IntVarP(&flagPort, "port", "p", 0, "HTTP port (default: $PORT or 3000)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory holding config.json and video_cache.json")
	pf.StringVar(&flagStore, "store", "", "Document store: file | sqlite")
	pf.StringVarP(&flagBackend, "backend", "b", "", "Extraction backend: rod | flaresolverr | http")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug | info | warn | error")
	pf.BoolVar(&flagLogJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(setURLCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration, then applies CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagDataDir != "" {
		// Keep a derived database path next to the new data dir
		if cfg.SQLitePath == filepath.Join(cfg.DataDir, "embed-resolver.db") {
			cfg.SQLitePath = filepath.Join(flagDataDir, "embed-resolver.db")
		}
		cfg.DataDir = flagDataDir
	}
	if flagStore != "" {
		cfg.StoreBackend = flagStore
	}
	if flagBackend != "" {
		cfg.BrowserBackend = flagBackend
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogJSON {
		cfg.LogJSON = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// newLogger builds the process logger. One-shot commands log to stderr so
// their stdout carries only the result.
func newLogger(w io.Writer) *logging.Logger {
	log := logging.New(cfg.LogLevel, cfg.LogJSON, w)
	logging.SetDefault(log)
	return log
}

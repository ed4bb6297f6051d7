// Package config handles application configuration.
// Values come from defaults, then an optional TOML file, then environment
// variables, with later sources overriding earlier ones.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Browser backends.
const (
	BackendRod          = "rod"
	BackendFlareSolverr = "flaresolverr"
	BackendHTTP         = "http"
)

// DefaultSourcePrefix is the only accepted form of a source page URL.
const DefaultSourcePrefix = "https://yandex.ru/video/preview/"

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Storage
	DataDir      string
	StoreBackend string
	SQLitePath   string

	// Extraction
	BrowserBackend    string
	BrowserBin        string
	BrowserControlURL string
	BrowserNavTimeout time.Duration
	IframeMarker      string
	SourceURLPrefix   string
	DedupeExtractions bool

	// FlareSolverr settings (remote headless browser)
	FlareSolverrURL     string
	FlareSolverrTimeout time.Duration

	// Outbound proxy for page fetches and launched browsers
	GlobalProxy string

	// Logging
	LogLevel string
	LogJSON  bool
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:                3000,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        0, // responses wait for extraction to finish
		IdleTimeout:         60 * time.Second,
		DataDir:             ".",
		StoreBackend:        StoreFile,
		BrowserBackend:      BackendRod,
		IframeMarker:        "rutube",
		SourceURLPrefix:     DefaultSourcePrefix,
		FlareSolverrTimeout: 60 * time.Second,
		LogLevel:            "info",
	}
}

// Load builds the configuration. path may be empty; when it is,
// RESOLVER_CONFIG_FILE is consulted. A missing file is not an error.
// The result is not validated: callers apply their own overrides first
// and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("RESOLVER_CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "embed-resolver.db")
	}
	return cfg, nil
}

// loadFile merges a TOML file over the current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return raw.apply(c)
}

// applyEnv overrides values with environment variables.
func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.ReadTimeout = getEnvDuration("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", c.WriteTimeout)
	c.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", c.IdleTimeout)
	c.DataDir = getEnvString("DATA_DIR", c.DataDir)
	c.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", c.StoreBackend))
	c.SQLitePath = getEnvString("SQLITE_PATH", c.SQLitePath)
	c.BrowserBackend = strings.ToLower(getEnvString("BROWSER_BACKEND", c.BrowserBackend))
	c.BrowserBin = getEnvString("BROWSER_BIN", c.BrowserBin)
	c.BrowserControlURL = getEnvString("BROWSER_CONTROL_URL", c.BrowserControlURL)
	c.BrowserNavTimeout = getEnvDuration("BROWSER_NAV_TIMEOUT", c.BrowserNavTimeout)
	c.IframeMarker = getEnvString("IFRAME_MARKER", c.IframeMarker)
	c.SourceURLPrefix = getEnvString("SOURCE_URL_PREFIX", c.SourceURLPrefix)
	c.DedupeExtractions = getEnvBool("DEDUPE_EXTRACTIONS", c.DedupeExtractions)
	c.FlareSolverrURL = getEnvString("FLARESOLVERR_URL", c.FlareSolverrURL)
	c.FlareSolverrTimeout = getEnvDuration("FLARESOLVERR_TIMEOUT", c.FlareSolverrTimeout)
	c.GlobalProxy = getEnvString("GLOBAL_PROXY", c.GlobalProxy)
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvBool("LOG_JSON", c.LogJSON)
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	switch c.StoreBackend {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("unsupported store backend %q (valid: file, sqlite)", c.StoreBackend)
	}

	switch c.BrowserBackend {
	case BackendRod, BackendHTTP:
	case BackendFlareSolverr:
		if c.FlareSolverrURL == "" {
			return fmt.Errorf("browser backend %q requires FLARESOLVERR_URL", c.BrowserBackend)
		}
	default:
		return fmt.Errorf("unsupported browser backend %q (valid: rod, flaresolverr, http)", c.BrowserBackend)
	}

	if c.IframeMarker == "" {
		return fmt.Errorf("iframe marker cannot be empty")
	}
	if !strings.HasPrefix(c.SourceURLPrefix, "http://") && !strings.HasPrefix(c.SourceURLPrefix, "https://") {
		return fmt.Errorf("source url prefix %q must be an http(s) URL", c.SourceURLPrefix)
	}
	return nil
}

// fileConfig mirrors Config with durations as strings, so the TOML file can
// say read_timeout = "30s". Zero values leave the current setting alone.
type fileConfig struct {
	Port                int    `toml:"port"`
	ReadTimeout         string `toml:"read_timeout"`
	WriteTimeout        string `toml:"write_timeout"`
	IdleTimeout         string `toml:"idle_timeout"`
	DataDir             string `toml:"data_dir"`
	StoreBackend        string `toml:"store_backend"`
	SQLitePath          string `toml:"sqlite_path"`
	BrowserBackend      string `toml:"browser_backend"`
	BrowserBin          string `toml:"browser_bin"`
	BrowserControlURL   string `toml:"browser_control_url"`
	BrowserNavTimeout   string `toml:"browser_nav_timeout"`
	IframeMarker        string `toml:"iframe_marker"`
	SourceURLPrefix     string `toml:"source_url_prefix"`
	DedupeExtractions   *bool  `toml:"dedupe_extractions"`
	FlareSolverrURL     string `toml:"flaresolverr_url"`
	FlareSolverrTimeout string `toml:"flaresolverr_timeout"`
	GlobalProxy         string `toml:"global_proxy"`
	LogLevel            string `toml:"log_level"`
	LogJSON             *bool  `toml:"log_json"`
}

func (f *fileConfig) apply(c *Config) error {
	if f.Port != 0 {
		c.Port = f.Port
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"read_timeout", f.ReadTimeout, &c.ReadTimeout},
		{"write_timeout", f.WriteTimeout, &c.WriteTimeout},
		{"idle_timeout", f.IdleTimeout, &c.IdleTimeout},
		{"browser_nav_timeout", f.BrowserNavTimeout, &c.BrowserNavTimeout},
		{"flaresolverr_timeout", f.FlareSolverrTimeout, &c.FlareSolverrTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	strs := []struct {
		raw string
		dst *string
	}{
		{f.DataDir, &c.DataDir},
		{strings.ToLower(f.StoreBackend), &c.StoreBackend},
		{f.SQLitePath, &c.SQLitePath},
		{strings.ToLower(f.BrowserBackend), &c.BrowserBackend},
		{f.BrowserBin, &c.BrowserBin},
		{f.BrowserControlURL, &c.BrowserControlURL},
		{f.IframeMarker, &c.IframeMarker},
		{f.SourceURLPrefix, &c.SourceURLPrefix},
		{f.FlareSolverrURL, &c.FlareSolverrURL},
		{f.GlobalProxy, &c.GlobalProxy},
		{f.LogLevel, &c.LogLevel},
	}
	for _, s := range strs {
		if s.raw != "" {
			*s.dst = s.raw
		}
	}

	if f.DedupeExtractions != nil {
		c.DedupeExtractions = *f.DedupeExtractions
	}
	if f.LogJSON != nil {
		c.LogJSON = *f.LogJSON
	}
	return nil
}

// parseDuration accepts either whole seconds ("30") or a Go duration ("30s").
func parseDuration(val string) (time.Duration, error) {
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(val)
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := parseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

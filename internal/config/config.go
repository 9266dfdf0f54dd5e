// Package config loads the kitebridge YAML configuration and applies
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the kitebridge gateway.
type Config struct {
	Kite    Kite    `yaml:"kite"`
	Auth    Auth    `yaml:"auth"`
	Trading Trading `yaml:"trading"`
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Kite holds the broker application credentials. The redirect URI must
// match the one registered with the Kite Connect app.
type Kite struct {
	APIKey      string `yaml:"api_key"`
	APISecret   string `yaml:"api_secret"`
	RedirectURI string `yaml:"redirect_uri"`
}

// Auth controls the authorization flow.
type Auth struct {
	// CodeSource selects how the request token is delivered:
	// "listener" (local redirect capture) or "prompt" (manual paste).
	CodeSource string `yaml:"code_source"`

	// TimeoutSeconds bounds the wait for the login callback.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// OpenBrowser hands the login URL to the platform browser in
	// listener mode.
	OpenBrowser bool `yaml:"open_browser"`

	// ClearOnInvalid also deletes the persisted session record when the
	// validity probe rejects it, instead of leaving it for inspection.
	ClearOnInvalid bool `yaml:"clear_on_invalid"`
}

// Trading selects the broker backend.
type Trading struct {
	// Broker is "kite" or "simulator".
	Broker string `yaml:"broker"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir      string `yaml:"data_dir"`
	SessionFile  string `yaml:"session_file"`
	OrderLogFile string `yaml:"order_log_file"`
	HistoryDB    string `yaml:"history_db"`
}

// Server holds network listener configuration for the HTTP API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Addr returns the host:port the HTTP server binds.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Kite: Kite{
			RedirectURI: "http://127.0.0.1:5000/callback",
		},
		Auth: Auth{
			CodeSource:     "listener",
			TimeoutSeconds: 300,
			OpenBrowser:    true,
		},
		Trading: Trading{
			Broker: "kite",
		},
		Storage: Storage{
			DataDir:      "./data",
			SessionFile:  "kite_session.json",
			OrderLogFile: "./logs/order.log",
			HistoryDB:    "history.db",
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML configuration at path over the defaults and applies
// environment variable overrides. A missing file is not an error: the
// defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks that the loaded configuration can actually run.
func (c *Config) Validate() error {
	if c.Trading.Broker != "kite" && c.Trading.Broker != "simulator" {
		return fmt.Errorf("trading.broker must be kite or simulator, got %q", c.Trading.Broker)
	}
	if c.Trading.Broker == "kite" {
		if c.Kite.APIKey == "" {
			return fmt.Errorf("kite.api_key is required (or set KITE_API_KEY)")
		}
		if c.Kite.APISecret == "" {
			return fmt.Errorf("kite.api_secret is required (or set KITE_API_SECRET)")
		}
	}
	if c.Auth.CodeSource != "listener" && c.Auth.CodeSource != "prompt" {
		return fmt.Errorf("auth.code_source must be listener or prompt, got %q", c.Auth.CodeSource)
	}
	return nil
}

// SessionPath returns the session file location, anchored under DataDir
// when relative.
func (c *Config) SessionPath() string {
	return anchor(c.Storage.DataDir, c.Storage.SessionFile)
}

// HistoryPath returns the history database location, anchored under
// DataDir when relative.
func (c *Config) HistoryPath() string {
	return anchor(c.Storage.DataDir, c.Storage.HistoryDB)
}

func anchor(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_API_SECRET"); v != "" {
		cfg.Kite.APISecret = v
	}
	if v := os.Getenv("KITE_REDIRECT_URI"); v != "" {
		cfg.Kite.RedirectURI = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SESSION_FILE"); v != "" {
		cfg.Storage.SessionFile = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Storage.OrderLogFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override the configuration file.
const (
	EnvAuthFile = "SPOTLIKE_AUTH_FILE"
	EnvLogLevel = "SPOTLIKE_LOG_LEVEL"
	EnvLogFile  = "SPOTLIKE_LOG_FILE"
	EnvPort     = "SPOTLIKE_CALLBACK_PORT"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	Spotify SpotifyConfig `toml:"spotify"`
	HTTP    HTTPConfig    `toml:"http"`
	Log     LogConfig     `toml:"log"`
}

// AuthConfig contains the auth file location and the local redirect listener settings.
type AuthConfig struct {
	File                   string   `toml:"file"`
	Host                   string   `toml:"host"`
	Port                   int      `toml:"port"`
	CallbackPath           string   `toml:"callback_path"`
	Scopes                 []string `toml:"scopes"`
	CallbackTimeoutSeconds int      `toml:"callback_timeout_seconds"`
	PollIntervalMS         int      `toml:"poll_interval_ms"`
}

// SpotifyConfig contains the Spotify accounts and Web API endpoints.
type SpotifyConfig struct {
	AuthorizeURL string `toml:"authorize_url"`
	TokenURL     string `toml:"token_url"`
	APIBaseURL   string `toml:"api_base_url"`
}

// HTTPConfig contains outbound HTTP settings shared by the token endpoint and API calls.
type HTTPConfig struct {
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ConfigDir returns the directory holding the auth file and config: $XDG_CONFIG_HOME/ags/private.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "ags", "private")
}

// DefaultConfigPath is where the CLI looks for its TOML config when --config is not set.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "spotlike.toml")
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment without overriding existing values.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: failed to load env file %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// ApplyEnv overrides config values with the SPOTLIKE_* environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvAuthFile); ok && strings.TrimSpace(v) != "" {
		c.Auth.File = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok {
		c.Log.File = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s must be a port number, got %q", ErrInvalidConfig, EnvPort, v)
		}
		c.Auth.Port = port
	}
	return nil
}

// AuthFile returns the auth record path, defaulting to spotify-auth.json inside [ConfigDir].
func (c *Config) AuthFile() string {
	if c.Auth.File != "" {
		return c.Auth.File
	}
	return filepath.Join(ConfigDir(), "spotify-auth.json")
}

// CallbackAddr returns the host:port the redirect listener binds.
func (c *Config) CallbackAddr() string {
	return fmt.Sprintf("%s:%d", c.Auth.Host, c.Auth.Port)
}

// CallbackTimeout is the total time a login waits for the provider redirect.
func (c *Config) CallbackTimeout() time.Duration {
	if c.Auth.CallbackTimeoutSeconds <= 0 {
		return 180 * time.Second
	}
	return time.Duration(c.Auth.CallbackTimeoutSeconds) * time.Second
}

// PollInterval is the per-iteration deadline of the callback wait loop.
func (c *Config) PollInterval() time.Duration {
	if c.Auth.PollIntervalMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.Auth.PollIntervalMS) * time.Millisecond
}

// HTTPTimeout is the fixed per-call timeout for token and API requests.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTP.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Validate checks the values the listener and clients cannot work without.
func (c *Config) Validate() error {
	if c.Auth.Host == "" {
		return fmt.Errorf("%w: auth.host is empty", ErrInvalidConfig)
	}
	if c.Auth.Port < 0 || c.Auth.Port > 65535 {
		return fmt.Errorf("%w: auth.port %d out of range", ErrInvalidConfig, c.Auth.Port)
	}
	if !strings.HasPrefix(c.Auth.CallbackPath, "/") {
		return fmt.Errorf("%w: auth.callback_path must start with /", ErrInvalidConfig)
	}
	if c.Spotify.AuthorizeURL == "" || c.Spotify.TokenURL == "" || c.Spotify.APIBaseURL == "" {
		return fmt.Errorf("%w: spotify endpoints must be set", ErrInvalidConfig)
	}
	return nil
}

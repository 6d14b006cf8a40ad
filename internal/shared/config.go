package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// TokenEnvVar overrides [CredentialsConfig.Token] when set.
const TokenEnvVar = "ALBUMDROP_TOKEN"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Credentials CredentialsConfig `toml:"credentials"`
	Upload      UploadConfig      `toml:"upload"`
	Database    DatabaseConfig    `toml:"database"`
	Receiver    ReceiverConfig    `toml:"receiver"`
}

// ServerConfig describes the remote upload endpoints.
type ServerConfig struct {
	BaseURL   string `toml:"base_url"`
	CoverPath string `toml:"cover_path"`
	AudioPath string `toml:"audio_path"`
}

// CredentialsConfig contains the externally supplied bearer credential.
type CredentialsConfig struct {
	Token string `toml:"token"`
}

// UploadConfig contains transfer tuning.
type UploadConfig struct {
	Timeout             string `toml:"timeout"`
	ProgressLogInterval string `toml:"progress_log_interval"`
	RecordHistory       bool   `toml:"record_history"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ReceiverConfig contains settings for the local development receiver.
type ReceiverConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	StorageDir string `toml:"storage_dir"`
	Token      string `toml:"token"`
	MaxBodyMB  int64  `toml:"max_body_mb"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if token, ok := os.LookupEnv(TokenEnvVar); ok {
		c.Credentials.Token = token
	}
}

// Validate checks that endpoints and durations are usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server.base_url %q must be an absolute URL", ErrInvalidConfig, c.Server.BaseURL)
	}
	if c.Server.CoverPath == "" || c.Server.AudioPath == "" {
		return fmt.Errorf("%w: server.cover_path and server.audio_path are required", ErrInvalidConfig)
	}
	if _, err := c.UploadTimeout(); err != nil {
		return err
	}
	if _, err := c.ProgressLogInterval(); err != nil {
		return err
	}
	if c.Receiver.Port < 0 || c.Receiver.Port > 65535 {
		return fmt.Errorf("%w: receiver.port %d out of range", ErrInvalidConfig, c.Receiver.Port)
	}
	return nil
}

// CoverURL returns the absolute cover endpoint.
func (c *Config) CoverURL() (string, error) {
	return joinURL(c.Server.BaseURL, c.Server.CoverPath)
}

// AudioURL returns the absolute audio endpoint.
func (c *Config) AudioURL() (string, error) {
	return joinURL(c.Server.BaseURL, c.Server.AudioPath)
}

// UploadTimeout parses [UploadConfig.Timeout]. An empty value means no timeout.
func (c *Config) UploadTimeout() (time.Duration, error) {
	return parseDuration("upload.timeout", c.Upload.Timeout)
}

// ProgressLogInterval parses [UploadConfig.ProgressLogInterval].
func (c *Config) ProgressLogInterval() (time.Duration, error) {
	return parseDuration("upload.progress_log_interval", c.Upload.ProgressLogInterval)
}

// ReceiverAddr returns the host:port the development receiver listens on.
func (c *Config) ReceiverAddr() string {
	return fmt.Sprintf("%s:%d", c.Receiver.Host, c.Receiver.Port)
}

// ReceiverMaxBody returns the receiver body limit in bytes; zero means unlimited.
func (c *Config) ReceiverMaxBody() int64 {
	if c.Receiver.MaxBodyMB <= 0 {
		return 0
	}
	return c.Receiver.MaxBodyMB << 20
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}

func joinURL(base, path string) (string, error) {
	joined, err := url.JoinPath(base, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return joined, nil
}

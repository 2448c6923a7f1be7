// Package config provides YAML/env-based configuration for the client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults mirror the conventional daemon endpoint.
const (
	DefaultSocketPath = "/var/run/docker.sock"
	DefaultAPIVersion = "1.41"
	DefaultTCPPort    = 2376
	DefaultTimeout    = 30 * time.Second
)

// Config is the root client configuration.
type Config struct {
	// UserAgent sent with every request
	UserAgent string `mapstructure:"user_agent"`

	// APIVersion is the daemon API version prefix (without the leading "v")
	APIVersion string `mapstructure:"api_version"`

	// Endpoint selects and parameterizes the transport
	Endpoint EndpointConfig `mapstructure:"endpoint"`

	// ConnectTimeout bounds connection establishment
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// RequestTimeout bounds a whole non-streaming exchange (0 = none)
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxResponseBytes caps the buffered response size (0 = unbounded)
	MaxResponseBytes int `mapstructure:"max_response_bytes"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`
}

// EndpointConfig describes how to reach the daemon. Exactly one kind is
// active: "unix", "tcp" or "npipe".
type EndpointConfig struct {
	Kind       string    `mapstructure:"kind"`
	SocketPath string    `mapstructure:"socket_path"`
	Host       string    `mapstructure:"host"`
	Port       int       `mapstructure:"port"`
	PipePath   string    `mapstructure:"pipe_path"`
	TLS        TLSConfig `mapstructure:"tls"`
}

// TLSConfig carries certificate material for TCP endpoints.
type TLSConfig struct {
	Enable             bool   `mapstructure:"enable"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	CAFile             string `mapstructure:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults: the local unix
// socket, API version 1.41, 30 second timeouts.
func Default() *Config {
	return &Config{
		UserAgent:      "libdockerexcess/1.0",
		APIVersion:     DefaultAPIVersion,
		ConnectTimeout: DefaultTimeout,
		RequestTimeout: DefaultTimeout,
		Endpoint: EndpointConfig{
			Kind:       "unix",
			SocketPath: DefaultSocketPath,
			Port:       DefaultTCPPort,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/dockerexcess.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from the provided path (if non-empty), otherwise
// it searches common locations and supports environment overrides with the
// prefix DOCKEREXCESS; `.`/`-` are replaced with `_`.
// Example: DOCKEREXCESS_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DOCKEREXCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("api_version", cfg.APIVersion)
	v.SetDefault("connect_timeout", cfg.ConnectTimeout)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("max_response_bytes", cfg.MaxResponseBytes)
	v.SetDefault("endpoint.kind", cfg.Endpoint.Kind)
	v.SetDefault("endpoint.socket_path", cfg.Endpoint.SocketPath)
	v.SetDefault("endpoint.host", cfg.Endpoint.Host)
	v.SetDefault("endpoint.port", cfg.Endpoint.Port)
	v.SetDefault("endpoint.pipe_path", cfg.Endpoint.PipePath)
	v.SetDefault("endpoint.tls.enable", cfg.Endpoint.TLS.Enable)
	v.SetDefault("endpoint.tls.cert_file", cfg.Endpoint.TLS.CertFile)
	v.SetDefault("endpoint.tls.key_file", cfg.Endpoint.TLS.KeyFile)
	v.SetDefault("endpoint.tls.ca_file", cfg.Endpoint.TLS.CAFile)
	v.SetDefault("endpoint.tls.insecure_skip_verify", cfg.Endpoint.TLS.InsecureSkipVerify)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		if envPath := os.Getenv("DOCKEREXCESS_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dockerexcess")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".dockerexcess"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	c.Endpoint.Kind = strings.ToLower(strings.TrimSpace(c.Endpoint.Kind))
	switch c.Endpoint.Kind {
	case "unix":
		if c.Endpoint.SocketPath == "" {
			c.Endpoint.SocketPath = DefaultSocketPath
		}
	case "tcp":
		if c.Endpoint.Host == "" {
			return fmt.Errorf("endpoint.kind=tcp requires endpoint.host")
		}
		if c.Endpoint.Port == 0 {
			c.Endpoint.Port = DefaultTCPPort
		}
	case "npipe":
		if c.Endpoint.PipePath == "" {
			return fmt.Errorf("endpoint.kind=npipe requires endpoint.pipe_path")
		}
	default:
		return fmt.Errorf("invalid endpoint.kind: %q", c.Endpoint.Kind)
	}

	if strings.TrimSpace(c.APIVersion) == "" {
		c.APIVersion = DefaultAPIVersion
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

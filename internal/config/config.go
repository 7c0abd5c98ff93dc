// Package config loads configuration for the ocshare CLI and the ocsd share
// server from a YAML file, OCSHARE_* / OCSD_* environment variables and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var validate = validator.New()

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// ClientConfig holds the CLI settings.
type ClientConfig struct {
	// URL is the instance root, e.g. https://example.com/owncloud/.
	URL      string `mapstructure:"url" validate:"required,url"`
	Username string `mapstructure:"username" validate:"required"`
	// Password may be left empty; the CLI then prompts for it.
	Password string `mapstructure:"password"`
	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string `mapstructure:"ca_file"`
	// OwnCloudDir is the desktop client data directory holding folders/.
	OwnCloudDir string        `mapstructure:"owncloud_dir"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// Validate checks the settings needed to reach the server.
func (c *ClientConfig) Validate() error {
	return formatValidationError(validate.Struct(c))
}

// TLSConfig points at the server certificate and key. Both empty serves plain HTTP.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file" validate:"required_with=KeyFile"`
	KeyFile  string `mapstructure:"key_file" validate:"required_with=CertFile"`
}

// Enabled reports whether TLS is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// CleanerConfig controls the expired-link cleaner. A zero interval disables it.
type CleanerConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
}

// MetricsConfig controls the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServerConfig holds the ocsd settings.
type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
	// PublicURL is the externally visible base URL used in share URLs.
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url"`
	// DatabaseDSN selects Postgres storage. Empty keeps everything in memory.
	DatabaseDSN string    `mapstructure:"database_dsn"`
	TLS         TLSConfig `mapstructure:"tls"`
	// Users seeds accounts as login: password. Logins are lower-cased by the
	// config loader.
	Users   map[string]string `mapstructure:"users"`
	Cleaner CleanerConfig     `mapstructure:"cleaner"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
	Logging LoggingConfig     `mapstructure:"logging"`
}

// Validate checks the server settings.
func (c *ServerConfig) Validate() error {
	return formatValidationError(validate.Struct(c))
}

// DefaultClientConfigPath returns $XDG_CONFIG_HOME/ocshare/config.yaml, or
// ~/.config/ocshare/config.yaml.
func DefaultClientConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ocshare", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "ocshare", "config.yaml")
}

// LoadClient reads the CLI configuration. A missing file is not an error.
// The result is not validated: commands that talk to the server call Validate
// once flag overrides are applied.
func LoadClient(path string) (*ClientConfig, error) {
	v := newViper("OCSHARE", map[string]any{
		"url":           "",
		"username":      "",
		"password":      "",
		"ca_file":       "",
		"owncloud_dir":  "",
		"timeout":       30 * time.Second,
		"logging.level": "warn",
	})
	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	return &cfg, nil
}

// LoadServer reads and validates the server configuration.
func LoadServer(path string) (*ServerConfig, error) {
	v := newViper("OCSD", map[string]any{
		"address":          "localhost:8080",
		"public_url":       "",
		"database_dsn":     "",
		"tls.cert_file":    "",
		"tls.key_file":     "",
		"cleaner.interval": time.Hour,
		"metrics.enabled":  true,
		"logging.level":    "info",
	})
	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ParseServer parses ocsd's command line, loads the file it names and lets
// -a and -d override the address and database DSN.
func ParseServer(args []string) (*ServerConfig, error) {
	fs := flag.NewFlagSet("ocsd", flag.ContinueOnError)
	var path, addr, dsn string
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (shorthand)")
	fs.StringVar(&addr, "a", "", "run on ip:port server")
	fs.StringVar(&dsn, "d", "", "db address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv("CONFIG")
	}

	cfg, err := LoadServer(path)
	if err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.Address = addr
	}
	if dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. Variables already set win. A missing file is ignored.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

func newViper(prefix string, defaults map[string]any) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

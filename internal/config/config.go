package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is absent from the config file.
const (
	DefaultClientType     = "web"
	DefaultRequestTimeout = 15 * time.Second
	DefaultInterval       = 10 * time.Minute
	DefaultDeviceTimeout  = 30 * time.Second
	DefaultConcurrency    = 4
	DefaultListenAddress  = ":3000"
	DefaultHistoryHours   = 24
)

// Config is everything the monitor needs at runtime. It is loaded once and
// handed to constructors explicitly.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// ProviderConfig describes how to reach the remote telemetry API.
type ProviderConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	Password string `yaml:"password,omitempty"`

	// PasswordEnv names an environment variable holding the password. It is
	// consulted when Password is empty.
	PasswordEnv string `yaml:"password_env,omitempty"`

	ClientType     string        `yaml:"client_type"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ResolvedPassword returns the literal password or the value of PasswordEnv.
func (p ProviderConfig) ResolvedPassword() string {
	if p.Password != "" {
		return p.Password
	}
	if p.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(p.PasswordEnv)
}

// Validate checks the fields required to talk to the provider.
func (p ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider.base_url %q is not an absolute URL", p.BaseURL)
	}
	if p.Email == "" {
		return errors.New("provider.email is required")
	}
	if p.ResolvedPassword() == "" {
		return errors.New("provider password is required (provider.password, provider.password_env or API_PASSWORD)")
	}
	return nil
}

type IngestionConfig struct {
	Interval      time.Duration `yaml:"interval"`
	DeviceTimeout time.Duration `yaml:"device_timeout"`
	Concurrency   int           `yaml:"concurrency"`
}

type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

type HTTPConfig struct {
	ListenAddress string `yaml:"listen_address"`
	HistoryHours  int    `yaml:"history_hours"`
}

// DBPath resolves the database file for this config.
func (c *Config) DBPath() string {
	return DBPath(c.Database.Path)
}

func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns a Config populated with default values only.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			ClientType:     DefaultClientType,
			RequestTimeout: DefaultRequestTimeout,
		},
		Ingestion: IngestionConfig{
			Interval:      DefaultInterval,
			DeviceTimeout: DefaultDeviceTimeout,
			Concurrency:   DefaultConcurrency,
		},
		HTTP: HTTPConfig{
			ListenAddress: DefaultListenAddress,
			HistoryHours:  DefaultHistoryHours,
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults (plus
// environment overrides) when the file does not exist. The boolean reports
// whether the defaults were used.
func LoadOrDefault(path string) (bool, *Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return false, cfg, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return false, nil, err
	}

	cfg = Default()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return true, nil, fmt.Errorf("config: %w", err)
	}

	return true, cfg, nil
}

// SaveTo writes the config as YAML, creating the directory when needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("API_BASE_URL")); v != "" {
		c.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("API_EMAIL")); v != "" {
		c.Provider.Email = v
	}
	if v := os.Getenv("API_PASSWORD"); v != "" {
		c.Provider.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.HTTP.ListenAddress = ":" + v
	}
}

func (c *Config) validate() error {
	if c.Provider.RequestTimeout <= 0 {
		return errors.New("provider.request_timeout must be positive")
	}
	if c.Ingestion.Interval <= 0 {
		return errors.New("ingestion.interval must be positive")
	}
	if c.Ingestion.DeviceTimeout <= 0 {
		return errors.New("ingestion.device_timeout must be positive")
	}
	if c.Ingestion.Concurrency <= 0 {
		return errors.New("ingestion.concurrency must be positive")
	}
	if c.HTTP.ListenAddress == "" {
		return errors.New("http.listen_address is required")
	}
	if c.HTTP.HistoryHours <= 0 {
		return errors.New("http.history_hours must be positive")
	}
	return nil
}

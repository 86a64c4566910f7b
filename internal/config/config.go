package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/star/missiontle/internal/mission"
	"github.com/star/missiontle/internal/tle"
)

// Config is the full service configuration. Values are resolved in order:
// built-in defaults, then an optional YAML file, then MISSIONTLE_*
// environment variables.
type Config struct {
	HTTPAddr string `yaml:"http_addr" env:"MISSIONTLE_HTTP_ADDR"`

	MissionBaseURL string `yaml:"mission_base_url" env:"MISSIONTLE_MISSION_BASE_URL"`
	TLEBaseURL     string `yaml:"tle_base_url" env:"MISSIONTLE_TLE_BASE_URL"`
	TLEAPIKey      string `yaml:"tle_api_key" env:"MISSIONTLE_TLE_API_KEY"`

	// TransactionLimit caps upstream calls per lookup, mission query included.
	TransactionLimit int `yaml:"transaction_limit" env:"MISSIONTLE_TRANSACTION_LIMIT"`
	Concurrency      int `yaml:"concurrency" env:"MISSIONTLE_CONCURRENCY"`

	UpstreamTimeout time.Duration `yaml:"upstream_timeout" env:"MISSIONTLE_UPSTREAM_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"MISSIONTLE_REQUEST_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MISSIONTLE_MAX_BODY_BYTES"`

	AuthEnabled bool   `yaml:"auth_enabled" env:"MISSIONTLE_AUTH_ENABLED"`
	AuthToken   string `yaml:"auth_token" env:"MISSIONTLE_AUTH_TOKEN"`
	TrustProxy  bool   `yaml:"trust_proxy" env:"MISSIONTLE_TRUST_PROXY"`

	LogLevel     string `yaml:"log_level" env:"MISSIONTLE_LOG_LEVEL"`
	OTelEndpoint string `yaml:"otel_endpoint" env:"MISSIONTLE_OTEL_ENDPOINT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		MissionBaseURL:   mission.DefaultBaseURL,
		TLEBaseURL:       tle.DefaultBaseURL,
		TransactionLimit: 6,
		Concurrency:      1,
		UpstreamTimeout:  10 * time.Second,
		RequestTimeout:   25 * time.Second,
		MaxBodyBytes:     1 << 20,
		LogLevel:         "info",
	}
}

// Load resolves the configuration. path may be empty to skip the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target. Fields whose
// variable is unset keep their current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TransactionLimit < 1 {
		errs = append(errs, fmt.Errorf("transaction_limit must be at least 1, got %d", c.TransactionLimit))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.TLEAPIKey == "" {
		errs = append(errs, errors.New("tle_api_key is required (MISSIONTLE_TLE_API_KEY)"))
	}
	for name, raw := range map[string]string{"mission_base_url": c.MissionBaseURL, "tle_base_url": c.TLEBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("upstream_timeout must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.AuthEnabled && c.AuthToken == "" {
		errs = append(errs, errors.New("auth_token is required when auth is enabled"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

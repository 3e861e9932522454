// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds server configuration.
type Config struct {
	Port      int    `env:"JOHAP_PORT"       envDefault:"8080"`
	BaseURL   string `env:"JOHAP_BASE_URL"   envDefault:"http://localhost:8080"`
	DevMode   bool   `env:"JOHAP_DEV_MODE"`
	DBPath    string `env:"JOHAP_DB_PATH"`
	VWorldKey string `env:"JOHAP_VWORLD_KEY"`

	// CleanupInterval controls how often expired sessions and tokens are purged.
	CleanupInterval time.Duration `env:"JOHAP_CLEANUP_INTERVAL" envDefault:"1h"`

	Auth  AuthConfig
	SMTP  SMTPConfig
	Kakao ProviderConfig `envPrefix:"JOHAP_KAKAO_"`
	Naver ProviderConfig `envPrefix:"JOHAP_NAVER_"`
}

// AuthConfig holds console login and signing settings.
type AuthConfig struct {
	AdminEmail  string `env:"JOHAP_ADMIN_EMAIL"`
	StateSecret string `env:"JOHAP_STATE_SECRET"`
}

// SMTPConfig holds SMTP connection settings for magic link mail.
type SMTPConfig struct {
	Host string `env:"JOHAP_SMTP_HOST"`
	Port string `env:"JOHAP_SMTP_PORT" envDefault:"587"`
	User string `env:"JOHAP_SMTP_USER"`
	Pass string `env:"JOHAP_SMTP_PASS"`
	From string `env:"JOHAP_SMTP_FROM"`
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// ProviderConfig holds OAuth client credentials for one provider.
type ProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Enabled reports whether the provider has a client id.
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != ""
}

// Load reads the given dotenv files (missing files are skipped) and then
// parses the environment. Values already in the environment win.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("JOHAP_BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	if (c.Kakao.Enabled() || c.Naver.Enabled()) && c.Auth.StateSecret == "" {
		return fmt.Errorf("JOHAP_STATE_SECRET is required when an OAuth provider is configured")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("JOHAP_CLEANUP_INTERVAL must be positive")
	}
	return nil
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

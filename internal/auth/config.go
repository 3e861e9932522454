// Package auth provides sessions, console login links, passkeys, API keys,
// guest access tokens, and per-union access resolution.
package auth

import (
	"strings"

	"github.com/evcraddock/johap/internal/config"
)

// Config holds authentication configuration.
type Config struct {
	AdminEmail string
	SMTP       config.SMTPConfig
	DevMode    bool
	BaseURL    string // e.g. http://localhost:8080
}

// ConfigFrom extracts the auth settings from the server config.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		AdminEmail: strings.ToLower(strings.TrimSpace(cfg.Auth.AdminEmail)),
		SMTP:       cfg.SMTP,
		DevMode:    cfg.DevMode,
		BaseURL:    cfg.BaseURL,
	}
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

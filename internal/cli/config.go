package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerURL = "http://localhost:8080"

	envServerURL = "JOHAP_SERVER_URL"
	envAPIKey    = "JOHAP_API_KEY"
)

// CLIConfig is the CLI config file at ~/.config/johap/config.yaml.
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
}

// settings is the effective CLI configuration: environment first, then the
// config file, then defaults.
type settings struct {
	ServerURL string
	APIKey    string
	// KeySource names where APIKey came from; empty when there is no key.
	KeySource string
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "johap", "config.yaml"), nil
}

// loadConfig reads the config file. A missing file is an empty config.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return cfg, nil
}

// saveConfig writes the config file, readable only by the owner since it
// holds the API key.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// resolveSettings merges the environment over the config file. An unreadable
// config file is treated as empty.
func resolveSettings() settings {
	cfg, _ := loadConfig()
	s := settings{ServerURL: defaultServerURL}

	switch {
	case os.Getenv(envServerURL) != "":
		s.ServerURL = strings.TrimRight(os.Getenv(envServerURL), "/")
	case cfg.ServerURL != "":
		s.ServerURL = cfg.ServerURL
	}

	switch {
	case os.Getenv(envAPIKey) != "":
		s.APIKey = os.Getenv(envAPIKey)
		s.KeySource = envAPIKey
	case cfg.APIKey != "":
		s.APIKey = cfg.APIKey
		if path, err := configPath(); err == nil {
			s.KeySource = path
		}
	}
	return s
}

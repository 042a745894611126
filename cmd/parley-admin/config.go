// ABOUTME: Configuration loading for the parley-admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Relay RelayConfig `toml:"relay"`
}

type RelayConfig struct {
	URL string `toml:"url"`
}

// getAdminConfigPath returns the path to the admin config file.
// Priority: PARLEY_ADMIN_CONFIG env var > XDG_CONFIG_HOME/parley/admin.toml > ~/.config/parley/admin.toml
func getAdminConfigPath() string {
	if envPath := os.Getenv("PARLEY_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "admin.toml")
}

// loadConfig resolves the relay URL. The config file is optional: when it is
// absent, PARLEY_RELAY_URL or the localhost default applies.
func loadConfig() (*Config, error) {
	path := getAdminConfigPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Relay.URL == "" {
		cfg.Relay.URL = defaultConfig().Relay.URL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func defaultConfig() *Config {
	relayURL := os.Getenv("PARLEY_RELAY_URL")
	if relayURL == "" {
		relayURL = "http://localhost:8080"
	}
	return &Config{Relay: RelayConfig{URL: relayURL}}
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required")
	}
	u, err := url.Parse(c.Relay.URL)
	if err != nil {
		return fmt.Errorf("relay.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("relay.url must use http or https scheme")
	}
	return nil
}

// ABOUTME: Configuration loading and parsing for parley-relay
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the policy knobs the relay keeps configurable.
const (
	DefaultModel         = "gpt-4o"
	DefaultContextWindow = 10
	DefaultFallbackReply = "No response from AI"
	DefaultBotID         = "ai_bot"
)

// Config represents the complete parley-relay configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Completion CompletionConfig `yaml:"completion"`
	Channel    ChannelConfig    `yaml:"channel"`
	Relay      RelayConfig      `yaml:"relay"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CompletionConfig holds completion provider configuration
type CompletionConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	FallbackReply string `yaml:"fallback_reply"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// ChannelConfig holds realtime channel provider configuration
type ChannelConfig struct {
	// Provider selects the channel backend: "streamchat" or "matrix"
	Provider string `yaml:"provider"`

	// BotID is the fixed identity that authors published replies
	BotID string `yaml:"bot_id"`

	Stream StreamConfig `yaml:"stream"`
	Matrix MatrixConfig `yaml:"matrix"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// StreamConfig holds Stream Chat credentials
type StreamConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// MatrixConfig holds Matrix homeserver configuration
type MatrixConfig struct {
	Homeserver string `yaml:"homeserver"`
	UserID     string `yaml:"user_id"`
	// AccessToken must belong to an appservice so the relay can register
	// ghost users for registered identities.
	AccessToken string `yaml:"access_token"`
	// Domain is the homeserver name used in ghost MXIDs and room aliases
	Domain string `yaml:"domain"`
	// LocalpartPrefix prefixes ghost user localparts (default "parley_")
	LocalpartPrefix string `yaml:"localpart_prefix"`
}

// RelayConfig holds relay policy configuration
type RelayConfig struct {
	// ContextWindow is the number of recent exchanges sent as model context
	ContextWindow int `yaml:"context_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in the policy knobs that have documented default values
func (c *Config) applyDefaults() {
	if c.Completion.Model == "" {
		c.Completion.Model = DefaultModel
	}
	if c.Completion.FallbackReply == "" {
		c.Completion.FallbackReply = DefaultFallbackReply
	}
	if c.Completion.Timeout <= 0 {
		c.Completion.Timeout = 30 * time.Second
	}
	if c.Channel.Provider == "" {
		c.Channel.Provider = "streamchat"
	}
	if c.Channel.BotID == "" {
		c.Channel.BotID = DefaultBotID
	}
	if c.Channel.Timeout <= 0 {
		c.Channel.Timeout = 10 * time.Second
	}
	if c.Channel.Matrix.LocalpartPrefix == "" {
		c.Channel.Matrix.LocalpartPrefix = "parley_"
	}
	if c.Relay.ContextWindow <= 0 {
		c.Relay.ContextWindow = DefaultContextWindow
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Completion.APIKey == "" {
		return fmt.Errorf("completion.api_key is required")
	}

	switch c.Channel.Provider {
	case "streamchat":
		if c.Channel.Stream.APIKey == "" {
			return fmt.Errorf("channel.stream.api_key is required for the streamchat provider")
		}
		if c.Channel.Stream.APISecret == "" {
			return fmt.Errorf("channel.stream.api_secret is required for the streamchat provider")
		}
	case "matrix":
		if c.Channel.Matrix.Homeserver == "" {
			return fmt.Errorf("channel.matrix.homeserver is required for the matrix provider")
		}
		if c.Channel.Matrix.UserID == "" {
			return fmt.Errorf("channel.matrix.user_id is required for the matrix provider")
		}
		if c.Channel.Matrix.AccessToken == "" {
			return fmt.Errorf("channel.matrix.access_token is required for the matrix provider")
		}
		if c.Channel.Matrix.Domain == "" {
			return fmt.Errorf("channel.matrix.domain is required for the matrix provider")
		}
	default:
		return fmt.Errorf("channel.provider must be \"streamchat\" or \"matrix\", got %q", c.Channel.Provider)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Completion.TimeoutRaw != "" {
		cfg.Completion.Timeout, err = time.ParseDuration(cfg.Completion.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing completion.timeout %q: %w", cfg.Completion.TimeoutRaw, err)
		}
	}

	if cfg.Channel.TimeoutRaw != "" {
		cfg.Channel.Timeout, err = time.ParseDuration(cfg.Channel.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing channel.timeout %q: %w", cfg.Channel.TimeoutRaw, err)
		}
	}

	return nil
}

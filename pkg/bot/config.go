// Copyright 2024-2026 Aiku AI

package bot

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// TokenEnv overrides Config.APIToken when set.
const TokenEnv = "RTMBOT_API_TOKEN"

// Config holds the bot configuration.
type Config struct {
	// Platform selects the messaging backend: "slack" or "mattermost".
	Platform  string `yaml:"platform"`
	APIToken  string `yaml:"api_token"`
	ServerURL string `yaml:"server_url"`
	// Timeout bounds every web API request. Zero keeps the client default.
	Timeout time.Duration `yaml:"timeout"`

	BotIcon  string `yaml:"bot_icon"`
	BotEmoji string `yaml:"bot_emoji"`
	// Aliases are extra prefixes that address the bot in channels, e.g. "!".
	Aliases []string `yaml:"aliases"`
	// ErrorsTo is a channel reference that receives handler tracebacks.
	ErrorsTo string `yaml:"errors_to"`
	// DefaultReply is sent when an addressed message matches nothing. When
	// empty, a list of the addressed patterns is sent instead.
	DefaultReply string `yaml:"default_reply"`

	Workers        int           `yaml:"workers"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`

	// Plugins lists the plugin manifest entries to load, in order.
	Plugins []string `yaml:"plugins"`

	Logging zeroconfig.Config `yaml:"logging"`
}

const (
	DefaultWorkers        = 10
	DefaultPollInterval   = time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultPingInterval   = 30 * time.Minute
)

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	raw := rawConfig{
		Platform:       "slack",
		Workers:        DefaultWorkers,
		PollInterval:   DefaultPollInterval,
		ReconnectDelay: DefaultReconnectDelay,
		PingInterval:   DefaultPingInterval,
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Config(raw)
	return nil
}

// PostProcess applies environment overrides, fills zero values with defaults
// and validates the result.
func (c *Config) PostProcess() error {
	if token := os.Getenv(TokenEnv); token != "" {
		c.APIToken = token
	}
	if c.Platform == "" {
		c.Platform = "slack"
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	switch c.Platform {
	case "slack":
	case "mattermost":
		if c.ServerURL == "" {
			return fmt.Errorf("server_url is required for the mattermost platform")
		}
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	if c.APIToken == "" {
		return fmt.Errorf("api_token is not set (or set %s)", TokenEnv)
	}
	return nil
}

// LoadConfig reads and post-processes a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

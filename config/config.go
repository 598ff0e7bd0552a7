package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	DEFAULT_BASE_URL          = "https://api.openai.com/v1"
	DEFAULT_ASSISTANT_VERSION = "v2"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	BaseURL          string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AssistantVersion string `env:"ASSISTANT_VERSION" envDefault:"v2"`

	// seed values for the settings store, only used when nothing is stored yet
	OpenAIKey   string `env:"OPEN_AI_KEY"`
	AssistantID string `env:"ASSISTANT_ID"`
	ThreadID    string `env:"THREAD_ID"`

	DBPath    string `env:"DB_PATH" envDefault:"threadbot.db"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// 0 means the next poll is sent as soon as the previous response arrives
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"0s"`
	// 0 disables the background refresh
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"0s"`

	MetricsAddr string `env:"METRICS_ADDR"`

	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`
}

// Load reads the given .env files (missing files are ignored) and parses
// the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("POLL_INTERVAL must not be negative: %s", c.PollInterval)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must not be negative: %s", c.RefreshInterval)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	if c.BaseURL == "" {
		c.BaseURL = DEFAULT_BASE_URL
	}
	if c.AssistantVersion == "" {
		c.AssistantVersion = DEFAULT_ASSISTANT_VERSION
	}
	return nil
}

// DiscordEnabled reports whether the Discord front end should be used
// instead of the terminal.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != ""
}

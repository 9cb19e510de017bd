// Package config loads the relay settings file. The whole configuration is
// read once at process start and handed to components explicitly; nothing
// reads it ambiently.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxLength matches the remote message-size limit with headroom for
// formatting growth.
const DefaultMaxLength = 3800

// Duration parses YAML values like "90s" or "2m" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the YAML settings structure.
type Config struct {
	Data struct {
		PathToDump string `yaml:"path_to_dump"` // Local dump directory
		Bucket     string `yaml:"bucket"`       // Cloud Storage bucket holding the dump (alternative)
		Channel    string `yaml:"channel"`
	} `yaml:"data"`
	Telegram struct {
		TokenFile string `yaml:"token_file"`
		ChatID    string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Relay struct {
		AddReplies  bool     `yaml:"add_replies"`
		MinLength   int      `yaml:"min_length"`
		MaxLength   int      `yaml:"max_length"`
		SendAsHTML  *bool    `yaml:"send_as_html"` // Defaults to true when omitted
		Mode        string   `yaml:"mode"`         // "paced" or "concurrent"
		Pace        Duration `yaml:"pace"`
		RetryPause  Duration `yaml:"retry_pause"`
		SendTimeout Duration `yaml:"send_timeout"`
	} `yaml:"relay"`
}

// Load reads and validates the settings file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse settings YAML: %w", err)
	}

	if cfg.Relay.MaxLength <= 0 {
		cfg.Relay.MaxLength = DefaultMaxLength
	}
	if cfg.Relay.Mode == "" {
		cfg.Relay.Mode = "paced"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Data.PathToDump == "" && c.Data.Bucket == "" {
		return errors.New("either data.path_to_dump or data.bucket is required")
	}
	if c.Data.PathToDump != "" && c.Data.Bucket != "" {
		return errors.New("data.path_to_dump and data.bucket are mutually exclusive")
	}
	if c.Data.Channel == "" {
		return errors.New("data.channel is required")
	}
	if c.Telegram.ChatID == "" {
		return errors.New("telegram.chat_id is required")
	}
	if c.Relay.Mode != "paced" && c.Relay.Mode != "concurrent" {
		return fmt.Errorf("relay.mode must be \"paced\" or \"concurrent\", got %q", c.Relay.Mode)
	}
	return nil
}

// SendAsHTML reports whether the formatted send is attempted first.
func (c *Config) SendAsHTML() bool {
	return c.Relay.SendAsHTML == nil || *c.Relay.SendAsHTML
}

// Token reads the bot token from the configured secret file.
func (c *Config) Token() (string, error) {
	if c.Telegram.TokenFile == "" {
		return "", errors.New("telegram.token_file is required")
	}
	data, err := os.ReadFile(c.Telegram.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", c.Telegram.TokenFile)
	}
	return token, nil
}

// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads the pvachat CLI's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of a pvachat YAML configuration file.
type Config struct {
	Bot   BotConfig   `yaml:"bot"`
	Retry RetryConfig `yaml:"retry"`
	Rate  RateConfig  `yaml:"rate,omitempty"`
	Auth  AuthConfig  `yaml:"auth,omitempty"`
	Log   LogConfig   `yaml:"log,omitempty"`
}

// BotConfig addresses the bot endpoint this client talks to.
type BotConfig struct {
	BaseURL          string `yaml:"base_url"`
	Transport        string `yaml:"transport"` // "rest" or "sse"
	TokenEndpointURL string `yaml:"token_endpoint_url,omitempty"`
}

// RetryConfig controls the bounded exponential retry policy (spec §4.2).
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts,omitempty"`
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`
	Multiplier     float64       `yaml:"multiplier,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
}

// RateConfig optionally bounds outbound request rate (spec §5 opt-in state).
type RateConfig struct {
	Enabled           bool    `yaml:"enabled,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// AuthConfig selects how bearer credentials are obtained.
type AuthConfig struct {
	StaticToken   string        `yaml:"static_token,omitempty"`
	RefreshLeeway time.Duration `yaml:"refresh_leeway,omitempty"`
}

// LogConfig controls structured logging verbosity.
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
	JSON  bool   `yaml:"json,omitempty"`
}

// Load reads and parses a YAML configuration file at path and fills in
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bot.Transport == "" {
		c.Bot.Transport = "rest"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = 250 * time.Millisecond
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = 10 * time.Second
	}
	if c.Rate.Enabled && c.Rate.Burst == 0 {
		c.Rate.Burst = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Bot.BaseURL == "" {
		return fmt.Errorf("bot.base_url is required")
	}
	if c.Bot.Transport != "rest" && c.Bot.Transport != "sse" {
		return fmt.Errorf("bot.transport must be %q or %q, got %q", "rest", "sse", c.Bot.Transport)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	return nil
}

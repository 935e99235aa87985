// Package config loads all bot configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":3000"`

	// Discord
	BotToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	GuildID  string `envconfig:"GUILD_ID"`
	RoleID   string `envconfig:"ROLE_ID"`

	// AFK channel is never counted as active time. Optional.
	AFKChannelID string `envconfig:"AFK_CHANNEL_ID"`

	// Activity threshold and reconciliation cadence.
	RequiredSeconds int64         `envconfig:"REQUIRED_SECONDS" default:"72000"` // 20h
	CheckInterval   time.Duration `envconfig:"CHECK_INTERVAL" default:"1h"`

	// Redis
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Stress endpoint guard. Empty leaves the endpoint unauthenticated.
	StressToken string `envconfig:"STRESS_TOKEN"`
}

// ReconcilerConfigured returns true if the role reconciler has everything it
// needs to run. Missing guild or role ID disables it without failing startup.
func (c *Config) ReconcilerConfigured() bool {
	return c.GuildID != "" && c.RoleID != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

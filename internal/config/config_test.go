package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "test-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.BotToken)
	assert.Equal(t, int64(72000), cfg.RequiredSeconds) // 20 hours
	assert.Equal(t, time.Hour, cfg.CheckInterval)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Empty(t, cfg.AFKChannelID)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "test-token")
	t.Setenv("REQUIRED_SECONDS", "3600")
	t.Setenv("CHECK_INTERVAL", "15m")
	t.Setenv("AFK_CHANNEL_ID", "c-afk")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(3600), cfg.RequiredSeconds)
	assert.Equal(t, 15*time.Minute, cfg.CheckInterval)
	assert.Equal(t, "c-afk", cfg.AFKChannelID)
}

func TestReconcilerConfigured(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.ReconcilerConfigured())

	cfg.GuildID = "g1"
	assert.False(t, cfg.ReconcilerConfigured())

	cfg.RoleID = "r1"
	assert.True(t, cfg.ReconcilerConfigured())
}

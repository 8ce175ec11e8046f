package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sample = `
telegram:
  token: yaml-token
  admin_id: 42
database:
  host: localhost
  name: manebot
retreat:
  group_link: https://t.me/+group
  idle_timeout: 45s
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "yaml-token", cfg.CoreConfig().Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 45*time.Second, cfg.Retreat.IdleTimeout)
	assert.Equal(t, DefaultGroupLinkDelay, cfg.Retreat.GroupLinkDelay)
	assert.Equal(t, DefaultInviteDelay, cfg.Retreat.InviteDelay)
	assert.Equal(t, DefaultReminderInterval, cfg.Retreat.ReminderInterval)
	assert.Equal(t, DefaultReminderThreshold, cfg.Retreat.ReminderThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/manebot?sslmode=disable")
	t.Setenv("RETREAT_GROUP_LINK", "https://t.me/+other")
	t.Setenv("RETREAT_REMINDER_THRESHOLD", "2h")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "postgres://u:p@db:5432/manebot?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "https://t.me/+other", cfg.Retreat.GroupLink)
	assert.Equal(t, 2*time.Hour, cfg.Retreat.ReminderThreshold)
}

func TestRetreatNormalize(t *testing.T) {
	r := RetreatConfig{}
	assert.Error(t, r.Normalize(), "group link is required")

	r = RetreatConfig{GroupLink: "https://t.me/+g", BotURL: "not a url"}
	assert.Error(t, r.Normalize())

	r = RetreatConfig{GroupLink: "https://t.me/+g", BotURL: "https://t.me/mane_bot"}
	require.NoError(t, r.Normalize())
	assert.Equal(t, DefaultIdleTimeout, r.IdleTimeout)
}

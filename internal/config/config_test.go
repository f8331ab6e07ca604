package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"TRGOVINA_DB", "RATE_LIMIT_WINDOW", "RATE_LIMIT_BUDGET", "MAX_CART_LINES", "NOTIFY_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "trgovina.sqlite3", cfg.Server.DBPath)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3, cfg.RateLimit.Budget)
	assert.Equal(t, 50, cfg.Orders.MaxLines)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, "https://api.telegram.org", cfg.Notify.APIURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_BUDGET", "10")
	t.Setenv("NOTIFY_TIMEOUT", "5")
	t.Setenv("MAX_CART_LINES", "not-a-number")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.Budget)
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, 50, cfg.Orders.MaxLines, "invalid values fall back to the default")
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "")
	os.Unsetenv("TELEGRAM_CHAT_ID")
	t.Setenv("TRGOVINA_ADDR", ":9999")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TELEGRAM_CHAT_ID=-1001\nTRGOVINA_ADDR=:7000\n"), 0o600))

	cfg := Load(path)
	t.Cleanup(func() { os.Unsetenv("TELEGRAM_CHAT_ID") })

	assert.Equal(t, "-1001", cfg.Notify.ChatID)
	assert.Equal(t, ":9999", cfg.Server.Addr, "process environment wins over .env")
}

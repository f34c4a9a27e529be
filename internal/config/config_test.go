package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "USD", cfg.Currency)
	require.Equal(t, 10*time.Second, cfg.LockTTL)
	require.Equal(t, "@every 1h", cfg.OverdueSchedule)
	require.Equal(t, 2, cfg.WorkerConcurrency)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("LEDGER_CURRENCY", "eur")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("DEV_SEED", "true")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, "EUR", cfg.Currency)
	require.Equal(t, 3*time.Second, cfg.LockTTL)
	require.True(t, cfg.DevSeed)
}

func TestValidate(t *testing.T) {
	ok := Config{Currency: "GBP", LockTTL: time.Second, LogFormat: "text", WorkerConcurrency: 1}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Currency = "XYZW"
	require.Error(t, bad.Validate())

	bad = ok
	bad.LockTTL = 0
	require.Error(t, bad.Validate())

	bad = ok
	bad.LogFormat = "pretty"
	require.Error(t, bad.Validate())

	bad = ok
	bad.WorkerConcurrency = 0
	require.Error(t, bad.Validate())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: "json"}
	l := cfg.Logger(&buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TELEGRAM_BOT_TOKEN", "WEBHOOK_URL", "PORT", "PREDICTION_BASE_URL",
		"PREDICTION_CONSUL_SERVICE", "PREDICTION_TIMEOUT", "CONSUL_ADDRESS",
		"NATS_URL", "NATS_SUBJECT", "DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Prediction.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Prediction.Timeout)
	assert.Equal(t, "agrismart.submissions", cfg.NATS.Subject)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: from-file
prediction:
  base_url: http://ml:8000
  timeout: 5s
log:
  level: debug
`), 0o644))
	t.Setenv("PREDICTION_TIMEOUT", "12s")
	t.Setenv("NATS_URL", "nats://nats:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Telegram.Token)
	assert.Equal(t, "http://ml:8000", cfg.Prediction.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.Prediction.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "8080", cfg.HTTP.Port)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	assert.ErrorContains(t, err, "telegram token")

	t.Setenv("TELEGRAM_BOT_TOKEN", "x")
	t.Setenv("PREDICTION_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "PREDICTION_TIMEOUT")

	t.Setenv("PREDICTION_TIMEOUT", "-1s")
	_, err = Load("")
	assert.ErrorContains(t, err, "timeout must be positive")

	t.Setenv("PREDICTION_TIMEOUT", "")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram: [unclosed"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "unmarshal config")
}

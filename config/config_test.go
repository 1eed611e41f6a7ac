package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/blackedge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv aísla el test de las variables del entorno real.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "BLACKEDGE_API_BASE",
		"BLACKEDGE_PRIVATE_KEY", "BLACKEDGE_RPC_URL", "REDIS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Feeds.APIBase)
	assert.Equal(t, 30*time.Second, cfg.ScanInterval())
	assert.Equal(t, 2*time.Second, cfg.ShortHorizonInterval())
	assert.Equal(t, 5*time.Second, cfg.PrimaryTimeout())
	assert.Equal(t, 10*time.Second, cfg.SecondaryTimeout())
	assert.True(t, cfg.Feeds.HideAvoid)
	assert.Equal(t, 60, cfg.Trial.Seconds)
	assert.Equal(t, int64(137), cfg.Wallet.ChainID)
	assert.Equal(t, "blackedge.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.CanTrade())
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
feeds:
  interval_seconds: 15
  hide_avoid: false
trial:
  seconds: 120
log:
  format: json
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.ScanInterval())
	assert.False(t, cfg.Feeds.HideAvoid)
	assert.Equal(t, 120, cfg.Trial.Seconds)
	assert.Equal(t, "json", cfg.Log.Format)
	// lo no especificado conserva el default
	assert.Equal(t, 25, cfg.Feeds.MaxResults)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BLACKEDGE_API_BASE", "https://api.example.com")
	t.Setenv("BLACKEDGE_PRIVATE_KEY", "0xabc")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := config.Load(writeYAML(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "https://api.example.com", cfg.Feeds.APIBase)
	assert.True(t, cfg.CanTrade())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"log level": "log:\n  level: verbose\n",
		"interval":  "feeds:\n  interval_seconds: 0\n",
		"spender":   "execution:\n  spender: nope\n",
		"slippage":  "execution:\n  slippage_bps: 20000\n",
		"api base":  "feeds:\n  api_base: not a url\n",
		"bad yaml":  "feeds: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := config.Load(writeYAML(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

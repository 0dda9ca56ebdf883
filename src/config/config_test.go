package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quote-observer/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
stream:
  token: secret
  symbols: [AAPL, "BINANCE:BTCUSDT"]
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "quote-observer", cfg.Name)
	assert.Equal(t, []string{"AAPL", "BINANCE:BTCUSDT"}, cfg.Stream.Symbols)
	assert.Equal(t, time.Second, cfg.Stream.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.Stream.BackoffCap)
	assert.InDelta(t, 0.2, cfg.Stream.BackoffJitter, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Stream.StableAfter)
	assert.Equal(t, 1024, cfg.Pipeline.QueueCapacity)
	assert.Equal(t, "drop_oldest", cfg.Pipeline.OverflowPolicy)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.ShutdownGrace)
	assert.Equal(t, 3, cfg.Journal.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Journal.RetryStep)
	assert.Equal(t, map[string]time.Duration{"1m": time.Minute, "15m": 15 * time.Minute}, cfg.WindowDurations())
}

func TestParse_DurationsFromYAML(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
  backoff_base: 500ms
  backoff_cap: 30s
pipeline:
  overflow_policy: block
`))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Stream.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Stream.BackoffCap)
	assert.Equal(t, "block", cfg.Pipeline.OverflowPolicy)
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvToken, "from-env")
	t.Setenv(EnvSymbols, " MSFT, TSLA ,,")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Stream.Token)
	assert.Equal(t, []string{"MSFT", "TSLA"}, cfg.Stream.Symbols)
}

func TestParse_ValidationErrorsAreConfigurationErrors(t *testing.T) {
	cases := map[string]string{
		"missing token":   "stream:\n  symbols: [AAPL]\n",
		"no symbols":      "stream:\n  token: x\n",
		"bad symbol":      "stream:\n  token: x\n  symbols: [\"AA PL\"]\n",
		"duplicate":       "stream:\n  token: x\n  symbols: [AAPL, AAPL]\n",
		"bad policy":      minimalYAML + "pipeline:\n  overflow_policy: drop_newest\n",
		"bad window":      minimalYAML + "analysis:\n  windows: [fortnight]\n",
		"jitter too high": minimalYAML + "  backoff_jitter: 1.5\n",
		"sqlite no path":  minimalYAML + "storage:\n  db_type: sqlite\n",
		"unknown sink":    minimalYAML + "publish:\n  kind: nats\n",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
			var cfgErr *helpers.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
		})
	}
}

func TestSave_OmitsToken(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.Stream.Token)

	// The written file loads back once a token is supplied.
	t.Setenv(EnvToken, "from-env")
	reloaded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "from-env", reloaded.Stream.Token)
	assert.Equal(t, cfg.Stream.Symbols, reloaded.Stream.Symbols)
	assert.Equal(t, cfg.Stream.BackoffCap, reloaded.Stream.BackoffCap)
	assert.Equal(t, 2*time.Second, reloaded.Storage.WriteTimeout)
}

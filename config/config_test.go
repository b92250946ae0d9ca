package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delaybroker/pkg/delay"
	"delaybroker/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, 2, cfg.Broker.Workers)
	assert.Equal(t, "uniform", cfg.Delay.Strategy)
	assert.Equal(t, time.Second, cfg.Delay.Min)
	assert.Equal(t, 5*time.Second, cfg.Delay.Max)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, filepath.Clean("./data/messages.json"), cfg.Storage.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
broker:
  workers: 4
delay:
  strategy: constant
  constant: 250ms
storage:
  backend: bolt
  path: /tmp/delaybroker/messages.db
  retries: 3
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Broker.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay.Constant)
	assert.Equal(t, "json", cfg.Logging.Format)

	do, err := cfg.DelayOptions()
	require.NoError(t, err)
	assert.Equal(t, delay.KindConstant, do.Kind)

	so, err := cfg.StorageOptions()
	require.NoError(t, err)
	assert.Equal(t, storage.BackendBolt, so.Backend)
	assert.Equal(t, "/tmp/delaybroker/messages.db", so.Path)
	assert.Equal(t, 3, so.Retries)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "broker:\n  workers: 4\n")
	t.Setenv("DELAYBROKER_BROKER_WORKERS", "7")
	t.Setenv("DELAYBROKER_STORAGE_BACKEND", "memory")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Broker.Workers)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := map[string]string{
		"no workers":       "broker:\n  workers: 0\n",
		"unknown strategy": "delay:\n  strategy: gaussian\n",
		"inverted range":   "delay:\n  min: 5s\n  max: 1s\n",
		"unknown backend":  "storage:\n  backend: mongo\n",
		"postgres no dsn":  "storage:\n  backend: postgres\n",
		"negative retries": "storage:\n  retries: -1\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "broker: [unclosed"))
	assert.Error(t, err)
}

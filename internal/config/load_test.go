package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "missing config file should fall back to defaults")

	require.Equal(t, []string{"patients", "visits", "products", "sales"}, cfg.Storage.Partitions)
	require.Equal(t, 30*time.Second, cfg.Sync.GetFlushInterval())
	require.Equal(t, 3, cfg.Sync.MaxRetries)
	require.Equal(t, 10*time.Second, cfg.Connectivity.GetProbeInterval())
	require.Equal(t, 8090, cfg.Server.Port)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
storage:
  file_path: /tmp/clinic-test.db
  partitions:
    - patients
remote:
  base_url: https://api.example.test
  auth_token: tok
sync:
  flush_interval: 5s
  max_retries: 5
server:
  port: 9999
  read_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "/tmp/clinic-test.db", cfg.Storage.FilePath)
	require.Equal(t, []string{"patients"}, cfg.Storage.Partitions)
	require.Equal(t, "https://api.example.test", cfg.Remote.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Sync.GetFlushInterval())
	require.Equal(t, 5, cfg.Sync.MaxRetries)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 2*time.Second, cfg.Server.GetReadTimeout())

	// Untouched sections keep their defaults.
	require.Equal(t, "/health", cfg.Remote.HealthPath)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  not yaml ["), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout())
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8501", cfg.Server.Addr)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "atomgo.yaml", `
server:
  addr: ":9000"
  max_upload_mb: 8
log:
  level: debug
pipeline:
  random_state: 42
  n_estimators: 50
`)
	writeFile(t, dir, ".env", "ATOMGO_LOG_FORMAT=console\nATOMGO_N_ESTIMATORS=20\n")
	t.Setenv("ATOMGO_N_ESTIMATORS", "30")
	t.Setenv("ATOMGO_TEST_SIZE", "0.25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.MaxUploadMB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format, "from .env")
	assert.Equal(t, int64(42), cfg.Pipeline.RandomState)
	assert.Equal(t, 30, cfg.Pipeline.NEstimators, "process env wins over .env")
	assert.Equal(t, 0.25, cfg.Pipeline.TestSize)
	assert.Equal(t, "5m", cfg.Server.WriteTimeout, "unset keys keep defaults")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"malformed yaml", "server: [", nil},
		{"bad level", "log:\n  level: trace\n", nil},
		{"bad format", "log:\n  format: xml\n", nil},
		{"bad test size", "pipeline:\n  test_size: 1\n", nil},
		{"bad timeout", "server:\n  read_timeout: soon\n", nil},
		{"bad upload size", "server:\n  max_upload_mb: 0\n", nil},
		{"negative estimators", "pipeline:\n  n_estimators: -1\n", nil},
		{"non numeric env", "", map[string]string{"ATOMGO_RANDOM_STATE": "one"}},
		{"non numeric float env", "", map[string]string{"ATOMGO_TEST_SIZE": "fifth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, dir, "c.yaml", tt.yaml)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

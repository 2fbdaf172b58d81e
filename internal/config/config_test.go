package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "simulate", cfg.Remote.Mode)
	assert.Equal(t, "inline", cfg.Remote.Transport)
	assert.Equal(t, 3, cfg.Remote.RetryAttempts)
	assert.Equal(t, 5, cfg.Remote.DownloadAttempts)
	assert.Equal(t, time.Second, cfg.Remote.RetryBackoff)
	assert.Equal(t, 5, cfg.Batch.Concurrency)
	assert.Equal(t, time.Second, cfg.Batch.StaggerMin)
	assert.Equal(t, 2*time.Second, cfg.Batch.StaggerMax)
	assert.Equal(t, 30*time.Minute, cfg.Batch.Retention)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, int64(256<<20), cfg.HTTP.MaxUploadBytes)
	assert.Empty(t, cfg.Remote.SimFailMarkers)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[app]
log_level = "debug"

[remote]
mode = "real"
transport = "url"
poll_interval = "250ms"
sim_fail_markers = ["broken", "corrupt"]

[batch]
concurrency = 2
stagger_min = "0s"
stagger_max = "500ms"

[store]
backend = "sqlite"
path = "status.db"
`), 0o644)
	require.NoError(t, err)

	t.Setenv("IMGADAPT_BATCH_CONCURRENCY", "7")
	t.Setenv("IMGADAPT_REMOTE_API_KEY", "secret")

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "real", cfg.Remote.Mode)
	assert.Equal(t, "url", cfg.Remote.Transport)
	assert.Equal(t, "secret", cfg.Remote.APIKey)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.PollInterval)
	assert.Equal(t, []string{"broken", "corrupt"}, cfg.Remote.SimFailMarkers)
	assert.Equal(t, 7, cfg.Batch.Concurrency)
	assert.Equal(t, time.Duration(0), cfg.Batch.StaggerMin)
	assert.Equal(t, 500*time.Millisecond, cfg.Batch.StaggerMax)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "status.db", cfg.Store.Path)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "simulate", cfg.Remote.Mode)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "unknown remote mode", key: "remote.mode", val: "mock"},
		{name: "unknown transport", key: "remote.transport", val: "ftp"},
		{name: "zero concurrency", key: "batch.concurrency", val: 0},
		{name: "inverted stagger", key: "batch.stagger_min", val: "10s"},
		{name: "no poll attempts", key: "remote.poll_max_attempts", val: 0},
		{name: "no upload limit", key: "http.max_upload_bytes", val: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)

			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

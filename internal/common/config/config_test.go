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
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 50, cfg.SnapshotInterval)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeoutDuration())
	assert.Equal(t, 250*time.Millisecond, cfg.PersistDebounceDuration())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("SNAPSHOT_INTERVAL", "7")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "4100", cfg.Port)
	assert.Equal(t, 7, cfg.SnapshotInterval)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /tmp/x.db\nwrite_timeout: 30\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WRITE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeoutDuration())
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.toml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestFromViperRejectsBadInterval(t *testing.T) {
	v := viper.New()
	v.Set("snapshot_interval", 0)
	_, err := FromViper(v)
	assert.Error(t, err)
}

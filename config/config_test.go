package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "leveldb", cfg.Storage.Backend)
	require.EqualValues(t, 2, cfg.DAG.EpochValidityPeriod)
	require.Equal(t, 30, cfg.DAG.MaxTipsInEpoch)
	require.Equal(t, 2, cfg.DAG.ReferencesToBeTip)
	require.True(t, cfg.DAG.LoadOnStart)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9001
storage:
  backend: badger
dag:
  epoch_validity_period: 4
  epoch_interval: 5s
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, "badger", cfg.Storage.Backend)
	require.EqualValues(t, 4, cfg.DAG.EpochValidityPeriod)
	require.Equal(t, 5*time.Second, cfg.DAG.EpochInterval)
	// untouched keys keep defaults
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DAGLEDGER_SERVER_PORT", "7000")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

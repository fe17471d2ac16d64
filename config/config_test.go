package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadConfig(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.Moniker = "bridge-node"
	cfg.Consensus.TimeoutCommit = 2 * time.Second
	cfg.App.IndexerEnable = true
	cfg.App.IndexerListenAddr = "127.0.0.1:9999"
	require.NoError(t, WriteConfigFile(ConfigFilePath(home), cfg))

	loaded, err := LoadConfig(home)
	require.NoError(t, err)
	require.Equal(t, "bridge-node", loaded.Moniker)
	require.Equal(t, 2*time.Second, loaded.Consensus.TimeoutCommit)
	require.True(t, loaded.App.IndexerEnable)
	require.Equal(t, "127.0.0.1:9999", loaded.App.IndexerListenAddr)
	require.Equal(t, home, loaded.App.Home)
	require.Equal(t, home, loaded.RootDir)
	require.Equal(t, filepath.Join(home, "data", "indexer.db"), loaded.App.IndexerDBPath())
	require.Equal(t, filepath.Join(home, "data"), loaded.App.DataDir())
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
}

func TestAppConfigValidate(t *testing.T) {
	cfg := DefaultAppConfig("/tmp/x")
	require.NoError(t, cfg.ValidateBasic())
	cfg.IndexerEnable = true
	cfg.IndexerListenAddr = ""
	require.Error(t, cfg.ValidateBasic())

	cfg.IndexerDB = "/var/lib/indexer.db"
	require.Equal(t, "/var/lib/indexer.db", cfg.IndexerDBPath())
}

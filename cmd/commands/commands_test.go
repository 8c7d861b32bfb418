package commands

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	cfg "branchlog/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/p2p"
)

func tempDir(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "branchlog-cmd")
	require.NoError(t, err)
	return dir, func() { os.RemoveAll(dir) }
}

func TestInitFiles(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()

	conf := cfg.DefaultConfig().SetRoot(dir)
	require.NoError(t, initFilesWithConfig(conf))
	assert.FileExists(t, conf.ConfigFile())
	assert.FileExists(t, conf.NodeKeyFile())

	// 重复执行不会覆盖已有的key
	key, err := p2p.LoadNodeKey(conf.NodeKeyFile())
	require.NoError(t, err)
	require.NoError(t, initFilesWithConfig(conf))
	again, err := p2p.LoadNodeKey(conf.NodeKeyFile())
	require.NoError(t, err)
	assert.Equal(t, key.ID(), again.ID())
}

func TestGenCluster(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()

	nProcesses, outputDir, hostname, startingPort = 3, dir, "127.0.0.1", 30000
	blockQuorumSize, storeQuorumSize = 0, 0
	require.NoError(t, genCluster(GenClusterCmd, nil))

	ids := make(map[int64]p2p.ID)
	for i := int64(1); i <= 3; i++ {
		home := filepath.Join(dir, "process"+strconv.FormatInt(i, 10))
		key, err := p2p.LoadNodeKey(filepath.Join(home, "config", "node_key.json"))
		require.NoError(t, err)
		ids[i] = key.ID()

		v := viper.New()
		v.SetConfigFile(filepath.Join(home, "config", "config.toml"))
		require.NoError(t, v.ReadInConfig())
		conf := cfg.DefaultConfig()
		require.NoError(t, v.Unmarshal(conf))
		conf.SetRoot(home)
		require.NoError(t, conf.ValidateBasic())

		assert.Equal(t, i, conf.Cluster.ProcessID)
		assert.Equal(t, 2, conf.Cluster.BlockQuorumSize)
		assert.Equal(t, 2, conf.Cluster.StoreQuorumSize)
		assert.Len(t, conf.Cluster.Members, 3)
		assert.Len(t, conf.Cluster.PeerAddresses(), 2)
	}

	// every process lists the same node ids
	conf := cfg.DefaultConfig()
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "process1", "config", "config.toml"))
	require.NoError(t, v.ReadInConfig())
	require.NoError(t, v.Unmarshal(conf))
	for _, m := range conf.Cluster.Members {
		assert.Equal(t, ids[m.ID], p2p.ID(m.NodeID))
	}
	assert.Equal(t, "127.0.0.1:30010", conf.Cluster.Members[1].Address)
}

func TestGenClusterRejectsEmpty(t *testing.T) {
	nProcesses = 0
	defer func() { nProcesses = 3 }()
	assert.Error(t, genCluster(GenClusterCmd, nil))
}

package commands

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	cfg "branchlog/config"

	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/p2p"
)

var (
	nProcesses      int
	outputDir       string
	hostname        string
	startingPort    int
	blockQuorumSize int
	storeQuorumSize int
)

// GenClusterCmd 为本地多进程集群生成每个进程的home目录：node key和包含完整成员表的config.toml
var GenClusterCmd = &cobra.Command{
	Use:     "gen-cluster",
	Aliases: []string{"gen_cluster"},
	Short:   "Generate home directories for a local cluster",
	PreRun:  deprecateSnakeCase,
	RunE:    genCluster,
}

func init() {
	GenClusterCmd.Flags().IntVar(&nProcesses, "n", 3, "进程数量")
	GenClusterCmd.Flags().StringVar(&outputDir, "o", "./cluster", "输出目录，每个进程一个子目录 process{id}")
	GenClusterCmd.Flags().StringVar(&hostname, "hostname", "127.0.0.1", "所有进程监听的主机名")
	GenClusterCmd.Flags().IntVar(&startingPort, "starting-port", 26656, "第一个进程的p2p端口，rpc端口为p2p端口+1，之后每个进程+10")
	GenClusterCmd.Flags().IntVar(&blockQuorumSize, "block-quorum", 0, "block quorum大小，0表示多数派")
	GenClusterCmd.Flags().IntVar(&storeQuorumSize, "store-quorum", 0, "store quorum大小，0表示多数派")
}

func genCluster(cmd *cobra.Command, args []string) error {
	if nProcesses <= 0 {
		return fmt.Errorf("need at least one process, got %d", nProcesses)
	}
	majority := nProcesses/2 + 1
	if blockQuorumSize == 0 {
		blockQuorumSize = majority
	}
	if storeQuorumSize == 0 {
		storeQuorumSize = majority
	}

	members := make([]cfg.MemberConfig, nProcesses)
	homes := make([]string, nProcesses)
	for i := 0; i < nProcesses; i++ {
		pid := int64(i + 1)
		homes[i] = filepath.Join(outputDir, "process"+strconv.FormatInt(pid, 10))

		conf := cfg.DefaultConfig().SetRoot(homes[i])
		if err := cfg.EnsureRoot(homes[i], conf); err != nil {
			return err
		}
		nodeKey, err := p2p.LoadOrGenNodeKey(conf.NodeKeyFile())
		if err != nil {
			return err
		}
		members[i] = cfg.MemberConfig{
			ID:      pid,
			NodeID:  string(nodeKey.ID()),
			Address: net.JoinHostPort(hostname, strconv.Itoa(startingPort+10*i)),
		}
	}

	for i := range homes {
		conf := cfg.DefaultConfig().SetRoot(homes[i])
		conf.Moniker = "process" + strconv.Itoa(i+1)
		conf.P2P.ListenAddress = "tcp://" + members[i].Address
		conf.P2P.AllowDuplicateIP = true
		conf.P2P.AddrBookStrict = false
		conf.RPC.ListenAddress = "tcp://" + net.JoinHostPort(hostname, strconv.Itoa(startingPort+10*i+1))
		conf.Cluster = &cfg.ClusterConfig{
			ProcessID:       members[i].ID,
			BlockQuorumSize: blockQuorumSize,
			StoreQuorumSize: storeQuorumSize,
			Members:         members,
		}
		if err := conf.Cluster.ValidateBasic(); err != nil {
			return err
		}
		if err := cfg.WriteConfigFile(conf.ConfigFile(), conf); err != nil {
			return err
		}
	}

	fmt.Printf("Successfully initialized %v process directories in %s\n", nProcesses, outputDir)
	return nil
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	nm "branchlog/node"

	tmos "github.com/tendermint/tendermint/libs/os"
)

// AddNodeFlags exposes some common configuration options on the command-line
// These are exposed for convenience of commands embedding a branchlog node
func AddNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("moniker", config.Moniker, "node name")

	// cluster flags
	cmd.Flags().Int64("cluster.process_id", config.Cluster.ProcessID, "process id of this node within the cluster")
	cmd.Flags().Int("cluster.block_quorum_size", config.Cluster.BlockQuorumSize, "promises needed to start a branch")
	cmd.Flags().Int("cluster.store_quorum_size", config.Cluster.StoreQuorumSize, "store acks needed to commit a node")

	// rpc flags
	cmd.Flags().String("rpc.laddr", config.RPC.ListenAddress, "RPC listen address. Port required")

	// p2p flags
	cmd.Flags().String("p2p.laddr", config.P2P.ListenAddress, "node listen address. (0.0.0.0:0 means any interface, any port)")
	cmd.Flags().Bool("p2p.allow_duplicate_ip", config.P2P.AllowDuplicateIP, "allow several peers on one IP")

	// instrumentation flags
	cmd.Flags().Bool("instrumentation.prometheus", config.Instrumentation.Prometheus, "serve Prometheus metrics")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node.
func NewRunNodeCmd(nodeProvider nm.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the branchlog node",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}

			logger.Info("Started node", "nodeInfo", n.NodeInfo(), "process", config.Cluster.ProcessID)

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop the node", "error", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}

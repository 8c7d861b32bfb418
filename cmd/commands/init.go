package commands

import (
	"github.com/spf13/cobra"

	cfg "branchlog/config"

	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"
)

// InitFilesCmd initialises a fresh branchlog process home: config file and
// node key.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a branchlog process",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	if err := cfg.EnsureRoot(config.RootDir, config); err != nil {
		return err
	}
	logger.Info("Found or generated config file", "path", config.ConfigFile())

	nodeKeyFile := config.NodeKeyFile()
	if tmos.FileExists(nodeKeyFile) {
		logger.Info("Found node key", "path", nodeKeyFile)
	} else {
		if _, err := p2p.LoadOrGenNodeKey(nodeKeyFile); err != nil {
			return err
		}
		logger.Info("Generated node key", "path", nodeKeyFile)
	}

	return nil
}

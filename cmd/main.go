package main

import (
	"os"
	"path/filepath"

	cmd "branchlog/cmd/commands"
	cfg "branchlog/config"
	nm "branchlog/node"

	"github.com/tendermint/tendermint/libs/cli"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.GenNodeKeyCmd,
		cmd.ShowNodeIDCmd,
		cmd.GenClusterCmd,
		cli.NewCompletionCmd(rootCmd, true),
	)

	// NOTE:
	// Users wishing to provide their own node store or transport can copy
	// this file and use something other than the DefaultNewNode function
	nodeFunc := nm.DefaultNewNode

	// Create & start node
	rootCmd.AddCommand(cmd.NewRunNodeCmd(nodeFunc))

	cmd := cli.PrepareBaseCmd(rootCmd, "BL", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultHomeDir)))
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}

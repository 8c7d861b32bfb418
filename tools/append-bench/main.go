package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	rpchttp "github.com/tendermint/tendermint/rpc/jsonrpc/client"
)

func main() {
	var durationInt, rate, connections int
	var verbose, startBranch bool

	flagSet := flag.NewFlagSet("append-bench", flag.ExitOnError)
	flagSet.IntVar(&connections, "c", 1, "Connections to keep open to the target")
	flagSet.IntVar(&durationInt, "T", 10, "Exit after the specified amount of time in seconds")
	flagSet.IntVar(&rate, "r", 100, "Appends per second to send in a connection")
	flagSet.BoolVar(&startBranch, "start-branch", true, "Call start_branch on the target before appending")
	flagSet.BoolVar(&verbose, "v", false, "Verbose output")

	flagSet.Usage = func() {
		fmt.Println(`Append load generator for a branchlog node.

Usage:
	append-bench [-c 1] [-T 10] [-r 100] [-v] [endpoint]

Examples:
	append-bench localhost:26657`)
		fmt.Println("Flags:")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		os.Exit(1)
	}
	endpoint := flagSet.Arg(0)

	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	if !verbose {
		logger = log.NewFilter(logger, log.AllowInfo())
	}

	if startBranch {
		client, err := rpchttp.New("tcp://" + endpoint)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		var res map[string]interface{}
		if _, err := client.Call(context.Background(), "start_branch", map[string]interface{}{}, &res); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logger.Info("started branch", "result", res)
		// leadership needs a block quorum round trip
		time.Sleep(time.Second)
	}

	a := newAppender(endpoint, connections, rate)
	a.SetLogger(logger.With("module", "appender"))
	if err := a.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tmos.TrapSignal(logger, func() {
		a.Stop()
	})

	time.Sleep(time.Duration(durationInt) * time.Second)
	a.Stop()

	sent, accepted, rejected := a.Stats()
	fmt.Printf("sent %d, accepted %d, rejected %d in %ds\n", sent, accepted, rejected, durationInt)
}

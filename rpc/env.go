package rpc

import (
	"branchlog/consensus"
	"branchlog/libs/metric"

	"github.com/tendermint/tendermint/libs/log"
)

var (
	env *Environment
)

func SetEnvironment(e *Environment) {
	env = e
}

// Environment contains objects and interfaces used by the RPC.
type Environment struct {
	Consensus *consensus.ConsensusState
	MetricSet *metric.MetricSet

	Logger log.Logger
}

package rpc

import (
	"testing"

	"branchlog/consensus"
	"branchlog/libs/metric"
	"branchlog/state"
	"branchlog/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

// 单节点集群，rpc调用不需要网络
func setupEnv(t *testing.T) {
	membership, err := types.NewMembership(1, []types.ProcessID{1}, 1, 1)
	require.NoError(t, err)
	st, err := state.NewMemState(membership, nil)
	require.NoError(t, err)
	cs := consensus.NewConsensusState(st, nil)
	cs.SetLogger(log.TestingLogger())

	ms := metric.NewMetricSet()
	require.NoError(t, ms.SetMetrics("consensus", cs.Metric()))

	SetEnvironment(&Environment{
		Consensus: cs,
		MetricSet: ms,
		Logger:    log.TestingLogger(),
	})
}

func TestAppendAndRead(t *testing.T) {
	setupEnv(t)
	ctx := &rpctypes.Context{}

	_, err := Append(ctx, 1)
	assert.Equal(t, consensus.ErrNotLeading, errors.Cause(err))
	_, err = Tentative(ctx)
	assert.Equal(t, consensus.ErrNotLeading, err)

	res, err := StartBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.NewBranchID(1, 1), res.Branch)

	for _, e := range []int64{4, 5, 6} {
		_, err := Append(ctx, e)
		require.NoError(t, err)
	}

	tentative, err := Tentative(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ResultLog{Size: 3, Entries: []int64{4, 5, 6}}, tentative)

	committed, err := Committed(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ResultLog{Size: 3, Entries: []int64{4, 5, 6}}, committed)

	status, err := Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Status.IsLeading)
	assert.Equal(t, types.NewNodeID(types.NewBranchID(1, 1), 3), status.Status.MaxKnownCommitted)
}

func TestJSONMetrics(t *testing.T) {
	setupEnv(t)
	ctx := &rpctypes.Context{}

	res, err := JSONMetrics(ctx, "")
	require.NoError(t, err)
	require.Contains(t, res.Metrics, "consensus")
	assert.Contains(t, res.Metrics["consensus"], `"process_id":1`)

	_, err = JSONMetrics(ctx, "nope")
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	for _, name := range []string{"status", "start_branch", "append", "tentative", "committed", "metrics"} {
		assert.Contains(t, Routes, name)
	}
}

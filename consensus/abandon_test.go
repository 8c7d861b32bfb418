package consensus

import (
	"testing"

	"branchlog/types"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 两个进程同时发起分支，(1,2) 胜出
func TestConcurrentStartBranch(t *testing.T) {
	net := newTestNetwork(t, 3, 2, 2)
	p1, p2 := net.node(1), net.node(2)

	assert.Equal(t, b11, p1.StartBranch())
	assert.Equal(t, b12, p2.StartBranch())
	net.deliverAll()

	for _, pid := range net.pids {
		assert.Equal(t, b12, net.nodes[pid].Status().CurrentBranch, "pid %d", pid)
	}
	assert.True(t, p2.IsLeading())
	assert.False(t, p1.IsLeading())
	assert.Contains(t, net.events[1].abandoned, b11)
	assert.Empty(t, net.events[2].abandoned)
	assert.Equal(t, []types.BranchID{b12}, net.events[2].started)

	_, err := p1.Append(1)
	assert.Equal(t, ErrNotLeading, errors.Cause(err))
	assert.Panics(t, func() { p1.GetTentative(0) })

	_, err = p2.Append(9)
	require.NoError(t, err)
	net.deliverAll()
	for _, pid := range net.pids {
		assert.Equal(t, []int64{9}, net.nodes[pid].CommittedLog(), "pid %d", pid)
	}
}

// 被抢占后，旧分支上已提交的节点id仍保留在knownCommitted里
func TestAbandonRetainsCommitted(t *testing.T) {
	net := newTestNetwork(t, 3, 2, 2)
	p1, p2 := net.node(1), net.node(2)

	p1.StartBranch()
	net.deliverAll()
	committed, err := p1.Append(5)
	require.NoError(t, err)
	net.deliverAll()

	// tentative entry that never reaches a store quorum
	net.isolated[1] = true
	_, err = p1.Append(6)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, mustTentative(t, p1))
	net.deliverAll()
	net.isolated[1] = false

	b22 := p2.StartBranch()
	assert.Equal(t, types.NewBranchID(2, 2), b22)
	net.deliverAll()

	assert.False(t, p1.IsLeading())
	assert.Panics(t, func() { p1.GetTentative(1) })
	assert.Equal(t, []types.BranchID{b11}, net.events[1].abandoned)
	for _, pid := range net.pids {
		st := net.nodes[pid].Status()
		assert.Equal(t, b22, st.CurrentBranch)
		assert.True(t, net.nodes[pid].state.KnownCommitted.Has(committed), "pid %d", pid)
	}

	// genesis of (2,2) copies the highest promised node, here p1's
	assert.True(t, p2.IsLeading())
	assert.Equal(t, []int64{5, 6}, mustTentative(t, p2))
	// nothing is pruned from the store either
	has, err := p1.state.Nodes.HasNode(types.NewNodeID(b11, 2))
	require.NoError(t, err)
	assert.True(t, has)
}

// 旧leader在发送StoreReq时才发现更高的分支
func TestAbandonOnStoreRes(t *testing.T) {
	net := newTestNetwork(t, 3, 2, 2)
	p1, p3 := net.node(1), net.node(3)

	p1.StartBranch()
	net.deliverAll()

	// p3 moves to (2,3) without p1 hearing about it
	net.isolated[1] = true
	p3.StartBranch()
	net.deliverAll()
	net.isolated[1] = false
	assert.True(t, p3.IsLeading())
	assert.True(t, p1.IsLeading())

	_, err := p1.Append(7)
	require.NoError(t, err)
	net.deliverAll()

	b23 := types.NewBranchID(2, 3)
	assert.Equal(t, b23, p1.Status().CurrentBranch)
	assert.False(t, p1.IsLeading())
	assert.Equal(t, []types.BranchID{b11}, net.events[1].abandoned)
	assert.Equal(t, int64(0), p1.SizeCommitted(), "(1,1) entry 7 never commits")
}

func TestCurrentBranchNeverDecreases(t *testing.T) {
	net := newTestNetwork(t, 3, 2, 2)
	p1 := net.node(1)

	p1.Receive(&BlockReqMessage{Branch: types.NewBranchID(4, 2)}, 2)
	p1.Receive(&BlockReqMessage{Branch: types.NewBranchID(3, 3)}, 3)
	p1.Receive(&BlockResMessage{Branch: types.NewBranchID(4, 2), Current: types.NewBranchID(1, 3), MaxStored: types.MakeRootNode()}, 3)
	assert.Equal(t, types.NewBranchID(4, 2), p1.Status().CurrentBranch)

	assert.Equal(t, types.NewBranchID(5, 1), p1.StartBranch())
}

func mustTentative(t *testing.T, cs *ConsensusState) []int64 {
	log, err := cs.TentativeLog()
	require.NoError(t, err)
	return log
}

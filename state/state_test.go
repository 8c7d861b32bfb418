package state

import (
	"testing"

	"branchlog/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

func newTestState(t *testing.T, self types.ProcessID) *State {
	m, err := types.NewMembership(self, []types.ProcessID{1, 2, 3}, 2, 2)
	require.NoError(t, err)
	s, err := NewMemState(m, log.TestingLogger())
	require.NoError(t, err)
	return s
}

func TestGenesisState(t *testing.T) {
	s := newTestState(t, 1)

	assert.Equal(t, types.RootBranchID, s.CurrentBranch())
	assert.Equal(t, types.MakeRootNode(), s.MaxStoredNode())
	assert.Equal(t, types.RootNodeID, s.MaxKnownCommitted())
	assert.Equal(t, Sizes{1, 1, 1}, s.Sizes())
	assert.False(t, s.IsLeading(), "root branch is owned by pid 0")
}

func TestIsLeading(t *testing.T) {
	s := newTestState(t, 1)
	b := types.RootBranchID.Next(1)

	s.AddBranch(b)
	assert.False(t, s.IsLeading(), "genesis of the branch not stored yet")

	s.StoreNode(s.MaxStoredNode().Rebranch(b))
	assert.True(t, s.IsLeading())

	// 更高的分支出现后不再是leader
	s.AddBranch(b.Next(2))
	assert.False(t, s.IsLeading())
	assert.Equal(t, types.NewBranchID(2, 2), s.CurrentBranch())
}

func TestMakeGenesisStateRequiresMembership(t *testing.T) {
	_, err := NewMemState(nil, log.TestingLogger())
	assert.Error(t, err)
}

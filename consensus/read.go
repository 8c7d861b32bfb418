package consensus

import (
	"fmt"

	"branchlog/types"
)

// SizeTentative is the length of the leader's tentative log.
// Panics unless this process is leading.
func (cs *ConsensusState) SizeTentative() int64 {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	return cs.tentativeNode().ID.Length
}

// GetTentative panics unless this process is leading and index is in range.
func (cs *ConsensusState) GetTentative(index int64) int64 {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	n := cs.tentativeNode()
	if index < 0 || index >= n.ID.Length {
		panic(fmt.Sprintf("tentative index %d out of range [0,%d)", index, n.ID.Length))
	}
	return n.Payload[index]
}

func (cs *ConsensusState) tentativeNode() types.Node {
	if !cs.state.IsLeading() {
		panic(fmt.Sprintf("tentative read while not leading: %v", cs.state))
	}
	return cs.state.MaxStoredNode()
}

// SizeCommitted is the length of the maximal known committed node.
func (cs *ConsensusState) SizeCommitted() int64 {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	return cs.state.MaxKnownCommitted().Length
}

// GetCommitted bounds index by the committed length but reads the entry from
// the maximal stored node. When that node is shorter than the committed
// length the read panics.
func (cs *ConsensusState) GetCommitted(index int64) int64 {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	size := cs.state.MaxKnownCommitted().Length
	if index < 0 || index >= size {
		panic(fmt.Sprintf("committed index %d out of range [0,%d)", index, size))
	}
	msn := cs.state.MaxStoredNode()
	if index >= msn.ID.Length {
		panic(fmt.Sprintf("committed index %d not stored locally, max stored node %v", index, msn.ID))
	}
	return msn.Payload[index]
}

func (cs *ConsensusState) IsLeading() bool {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	return cs.state.IsLeading()
}

// TentativeLog is the non-panicking form of the tentative reads.
func (cs *ConsensusState) TentativeLog() ([]int64, error) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	if !cs.state.IsLeading() {
		return nil, ErrNotLeading
	}
	return cs.state.MaxStoredNode().Copy().Payload, nil
}

// CommittedLog returns the committed prefix as far as it is stored locally,
// read the same way as GetCommitted.
func (cs *ConsensusState) CommittedLog() []int64 {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	size := cs.state.MaxKnownCommitted().Length
	payload := cs.state.MaxStoredNode().Payload
	if int64(len(payload)) < size {
		size = int64(len(payload))
	}
	res := make([]int64, size)
	copy(res, payload)
	return res
}

// Status is a point-in-time view of one process.
type Status struct {
	Self              types.ProcessID `json:"self"`
	CurrentBranch     types.BranchID  `json:"current_branch"`
	MaxStoredNode     types.NodeID    `json:"max_stored_node"`
	MaxKnownCommitted types.NodeID    `json:"max_known_committed"`
	IsLeading         bool            `json:"is_leading"`
	KnownBranches     int             `json:"known_branches"`
	StoredNodes       int             `json:"stored_nodes"`
	KnownCommitted    int             `json:"known_committed"`
}

func (cs *ConsensusState) Status() Status {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	sizes := cs.state.Sizes()
	return Status{
		Self:              cs.state.Self(),
		CurrentBranch:     cs.state.CurrentBranch(),
		MaxStoredNode:     cs.state.MaxStoredNode().ID,
		MaxKnownCommitted: cs.state.MaxKnownCommitted(),
		IsLeading:         cs.state.IsLeading(),
		KnownBranches:     sizes.KnownBranches,
		StoredNodes:       sizes.StoredNodes,
		KnownCommitted:    sizes.KnownCommitted,
	}
}

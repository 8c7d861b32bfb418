package types

import (
	"sort"

	"branchlog/types"
)

func MakeNodeStoreAckSet() *NodeStoreAckSet {
	return &NodeStoreAckSet{
		nodeAckSet: make(map[types.NodeID]map[types.ProcessID]struct{}),
	}
}

// NodeStoreAckSet records, per node id, which processes confirmed storing it.
// Grow-only.
type NodeStoreAckSet struct {
	nodeAckSet map[types.NodeID]map[types.ProcessID]struct{}
}

// AddAck returns true if pid was not yet recorded for nid.
func (nas *NodeStoreAckSet) AddAck(nid types.NodeID, pid types.ProcessID) bool {
	acks, exist := nas.nodeAckSet[nid]
	if !exist {
		acks = make(map[types.ProcessID]struct{})
		nas.nodeAckSet[nid] = acks
	}
	if _, ok := acks[pid]; ok {
		return false
	}
	acks[pid] = struct{}{}
	return true
}

// Tracks reports whether nid has an accumulator, i.e. was seeded by its
// creator or acknowledged at least once.
func (nas *NodeStoreAckSet) Tracks(nid types.NodeID) bool {
	_, exist := nas.nodeAckSet[nid]
	return exist
}

func (nas *NodeStoreAckSet) Size(nid types.NodeID) int {
	return len(nas.nodeAckSet[nid])
}

func (nas *NodeStoreAckSet) Quorum(nid types.NodeID, threshold int) types.Quorum {
	return types.NewQuorum(nas.Size(nid), threshold)
}

// Ackers lists the processes that stored nid, ascending.
func (nas *NodeStoreAckSet) Ackers(nid types.NodeID) []types.ProcessID {
	acks := nas.nodeAckSet[nid]
	res := make([]types.ProcessID, 0, len(acks))
	for pid := range acks {
		res = append(res, pid)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Nodes is the number of node ids with at least one ack.
func (nas *NodeStoreAckSet) Nodes() int {
	return len(nas.nodeAckSet)
}

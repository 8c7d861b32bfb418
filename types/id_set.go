package types

import "github.com/google/btree"

const setDegree = 16

type branchItem BranchID

func (b branchItem) Less(than btree.Item) bool {
	return BranchID(b).Less(BranchID(than.(branchItem)))
}

type nodeIDItem NodeID

func (n nodeIDItem) Less(than btree.Item) bool {
	return NodeID(n).Less(NodeID(than.(nodeIDItem)))
}

// BranchSet is an ordered, grow-only set of branch ids.
// NOTE: not goroutine-safe, the owner serialises access.
type BranchSet struct {
	tree *btree.BTree
}

func NewBranchSet(ids ...BranchID) *BranchSet {
	bs := &BranchSet{tree: btree.New(setDegree)}
	for _, id := range ids {
		bs.Add(id)
	}
	return bs
}

// Add returns true if id was not yet in the set.
func (bs *BranchSet) Add(id BranchID) bool {
	return bs.tree.ReplaceOrInsert(branchItem(id)) == nil
}

func (bs *BranchSet) Has(id BranchID) bool {
	return bs.tree.Has(branchItem(id))
}

// Max returns the greatest branch, or the root branch if the set is empty.
func (bs *BranchSet) Max() BranchID {
	item := bs.tree.Max()
	if item == nil {
		return RootBranchID
	}
	return BranchID(item.(branchItem))
}

func (bs *BranchSet) Size() int {
	return bs.tree.Len()
}

// Branches lists the set in ascending order.
func (bs *BranchSet) Branches() []BranchID {
	res := make([]BranchID, 0, bs.tree.Len())
	bs.tree.Ascend(func(item btree.Item) bool {
		res = append(res, BranchID(item.(branchItem)))
		return true
	})
	return res
}

// NodeIDSet is an ordered, grow-only set of node ids.
// NOTE: not goroutine-safe, the owner serialises access.
type NodeIDSet struct {
	tree *btree.BTree
}

func NewNodeIDSet(ids ...NodeID) *NodeIDSet {
	ns := &NodeIDSet{tree: btree.New(setDegree)}
	for _, id := range ids {
		ns.Add(id)
	}
	return ns
}

// Add returns true if id was not yet in the set.
func (ns *NodeIDSet) Add(id NodeID) bool {
	return ns.tree.ReplaceOrInsert(nodeIDItem(id)) == nil
}

func (ns *NodeIDSet) Has(id NodeID) bool {
	return ns.tree.Has(nodeIDItem(id))
}

// Max returns the greatest node id, or the root node id if the set is empty.
func (ns *NodeIDSet) Max() NodeID {
	item := ns.tree.Max()
	if item == nil {
		return RootNodeID
	}
	return NodeID(item.(nodeIDItem))
}

func (ns *NodeIDSet) Size() int {
	return ns.tree.Len()
}

// NodeIDs lists the set in ascending order.
func (ns *NodeIDSet) NodeIDs() []NodeID {
	res := make([]NodeID, 0, ns.tree.Len())
	ns.tree.Ascend(func(item btree.Item) bool {
		res = append(res, NodeID(item.(nodeIDItem)))
		return true
	})
	return res
}

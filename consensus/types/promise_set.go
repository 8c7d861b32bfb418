package types

import (
	"branchlog/types"
)

func MakeBranchPromiseSet() *BranchPromiseSet {
	return &BranchPromiseSet{
		branchPromiseSet: make(map[types.BranchID]*promiseSet),
	}
}

// BranchPromiseSet accumulates, per branch, the maximal stored node each
// process reported when it was blocked into that branch. Sets of different
// branches are never merged.
type BranchPromiseSet struct {
	branchPromiseSet map[types.BranchID]*promiseSet
}

// Open starts the promise set of branch seeded with the starter's own node.
// An already open set is kept as is.
func (bps *BranchPromiseSet) Open(branch types.BranchID, self types.ProcessID, maxStored types.Node) {
	if _, exist := bps.branchPromiseSet[branch]; exist {
		return
	}
	ps := newPromiseSet()
	ps.AddPromise(self, maxStored)
	bps.branchPromiseSet[branch] = ps
}

// AddPromise records pid's report under branch, opening the set if needed.
// A later report from the same pid replaces the earlier one.
func (bps *BranchPromiseSet) AddPromise(branch types.BranchID, pid types.ProcessID, maxStored types.Node) {
	ps, exist := bps.branchPromiseSet[branch]
	if !exist {
		ps = newPromiseSet()
		bps.branchPromiseSet[branch] = ps
	}
	ps.AddPromise(pid, maxStored)
}

// GetPromisesByBranch returns nil if branch was never opened.
func (bps *BranchPromiseSet) GetPromisesByBranch(branch types.BranchID) *promiseSet {
	ps, exist := bps.branchPromiseSet[branch]
	if !exist {
		return nil
	}
	return ps
}

// Size is the number of branches with an open promise set.
func (bps *BranchPromiseSet) Size() int {
	return len(bps.branchPromiseSet)
}

func newPromiseSet() *promiseSet {
	return &promiseSet{
		promises: make(map[types.ProcessID]types.Node),
	}
}

type promiseSet struct {
	promises map[types.ProcessID]types.Node
}

func (ps *promiseSet) AddPromise(pid types.ProcessID, maxStored types.Node) {
	ps.promises[pid] = maxStored.Copy()
}

func (ps *promiseSet) Has(pid types.ProcessID) bool {
	_, ok := ps.promises[pid]
	return ok
}

func (ps *promiseSet) Size() int {
	return len(ps.promises)
}

func (ps *promiseSet) Quorum(threshold int) types.Quorum {
	return types.NewQuorum(len(ps.promises), threshold)
}

// BranchingPoint is the greatest reported node under node order: the
// content a new branch must carry forward.
func (ps *promiseSet) BranchingPoint() types.Node {
	nodes := make([]types.Node, 0, len(ps.promises))
	for _, n := range ps.promises {
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		return types.MakeRootNode()
	}
	return types.MaxNode(nodes...).Copy()
}

package state

import (
	"fmt"

	cstypes "branchlog/consensus/types"
	"branchlog/store"
	"branchlog/types"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// MakeGenesisState builds the state every process starts from: the root
// branch, the root node and the root node id as committed.
func MakeGenesisState(membership *types.Membership, nodes *store.NodeStore) (*State, error) {
	if membership == nil {
		return nil, errors.Wrap(types.ErrInvalidMembership, "nil membership")
	}
	if _, err := nodes.SaveNode(types.MakeRootNode()); err != nil {
		return nil, errors.Wrap(err, "store root node")
	}
	return &State{
		Membership:     membership,
		KnownBranches:  types.NewBranchSet(types.RootBranchID),
		Nodes:          nodes,
		KnownCommitted: types.NewNodeIDSet(types.RootNodeID),
		Promises:       cstypes.MakeBranchPromiseSet(),
		StoreAcks:      cstypes.MakeNodeStoreAckSet(),
	}, nil
}

// NewMemState is MakeGenesisState on an in-memory node store.
func NewMemState(membership *types.Membership, logger log.Logger) (*State, error) {
	return MakeGenesisState(membership, store.NewMemNodeStore(logger))
}

// State is everything one process knows. It is exclusively owned by that
// process and every collection in it only grows.
// NOTE: not goroutine-safe, consensus serialises access.
type State struct {
	Membership *types.Membership

	KnownBranches  *types.BranchSet
	Nodes          *store.NodeStore
	KnownCommitted *types.NodeIDSet

	// quorum accumulators
	Promises  *cstypes.BranchPromiseSet
	StoreAcks *cstypes.NodeStoreAckSet
}

func (s *State) Self() types.ProcessID {
	return s.Membership.Self()
}

func (s *State) CurrentBranch() types.BranchID {
	return s.KnownBranches.Max()
}

// MaxStoredNode panics if the node store fails: the root node is stored at
// genesis, so the store is never empty.
func (s *State) MaxStoredNode() types.Node {
	n, err := s.Nodes.MaxNode()
	if err != nil {
		panic(fmt.Sprintf("node store failure: %v", err))
	}
	return n
}

func (s *State) MaxKnownCommitted() types.NodeID {
	return s.KnownCommitted.Max()
}

// IsLeading reports whether this process owns the current branch and has
// already stored its genesis node or a successor.
func (s *State) IsLeading() bool {
	cb := s.CurrentBranch()
	return cb.PID == s.Self() && s.MaxStoredNode().ID.Branch == cb
}

func (s *State) AddBranch(branch types.BranchID) bool {
	return s.KnownBranches.Add(branch)
}

// StoreNode panics on node store failure, see MaxStoredNode.
func (s *State) StoreNode(n types.Node) bool {
	added, err := s.Nodes.SaveNode(n)
	if err != nil {
		panic(fmt.Sprintf("node store failure: %v", err))
	}
	return added
}

func (s *State) AddCommitted(nid types.NodeID) bool {
	return s.KnownCommitted.Add(nid)
}

// Sizes of the grow-only collections.
type Sizes struct {
	KnownBranches  int `json:"known_branches"`
	StoredNodes    int `json:"stored_nodes"`
	KnownCommitted int `json:"known_committed"`
}

func (s *State) Sizes() Sizes {
	return Sizes{
		KnownBranches:  s.KnownBranches.Size(),
		StoredNodes:    s.Nodes.Size(),
		KnownCommitted: s.KnownCommitted.Size(),
	}
}

func (s *State) String() string {
	return fmt.Sprintf("State{self:%d cb:%v msn:%v mkc:%v}",
		s.Self(), s.CurrentBranch(), s.MaxStoredNode().ID, s.MaxKnownCommitted())
}

package consensus

import (
	"branchlog/types"

	"github.com/pkg/errors"
)

var (
	ErrNotLeading = errors.New("process is not leading its current branch")
)

// Append extends the leader's tentative log by entry and replicates the new
// node. It fails without side effects unless this process is leading.
func (cs *ConsensusState) Append(entry int64) (types.NodeID, error) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	if !cs.state.IsLeading() {
		return types.NodeID{}, errors.Wrapf(ErrNotLeading, "cb %v, msn %v",
			cs.state.CurrentBranch(), cs.state.MaxStoredNode().ID)
	}
	defer cs.updateMetrics()

	node := cs.state.MaxStoredNode().Extend(entry)
	cs.state.StoreNode(node)
	cs.Logger.Debug("append", "node", node.ID, "entry", entry)

	cs.replicate(cs.state.CurrentBranch(), node)
	return node.ID, nil
}

// replicate seeds the store acks of node with self and asks every neighbor
// to store it.
func (cs *ConsensusState) replicate(branch types.BranchID, node types.Node) {
	cs.state.StoreAcks.AddAck(node.ID, cs.state.Self())
	cs.broadcast(&StoreReqMessage{Branch: branch, Node: node})
	cs.tryCommit(node.ID)
}

// handleStoreReq stores the node only when it belongs to the current branch.
// The response reports the true position either way, which is how a stale
// leader learns it was overtaken.
func (cs *ConsensusState) handleStoreReq(msg *StoreReqMessage, src types.ProcessID) {
	cb := cs.state.CurrentBranch()
	if msg.Branch.Equal(cb) {
		cs.state.StoreNode(msg.Node)
	} else {
		cs.Logger.Debug("refuse to store node of non-current branch", "msg", msg, "cb", cb)
	}

	cs.send(&StoreResMessage{
		Branch:  msg.Branch,
		Current: cs.state.CurrentBranch(),
		NodeID:  cs.state.MaxStoredNode().ID,
	}, src)
}

func (cs *ConsensusState) handleStoreRes(msg *StoreResMessage, src types.ProcessID) {
	cb := cs.state.CurrentBranch()
	if !msg.Branch.Equal(cb) {
		cs.Logger.Debug("ignore StoreRes for non-current branch", "msg", msg, "cb", cb, "src", src)
		return
	}
	if cb.Less(msg.Current) {
		cs.abandon(cb)
		cs.state.AddBranch(msg.Current)
		return
	}

	// acks only count for nodes this process created
	if !cs.state.StoreAcks.Tracks(msg.NodeID) {
		cs.Logger.Debug("ignore StoreRes for untracked node", "msg", msg, "src", src)
		return
	}
	cs.state.StoreAcks.AddAck(msg.NodeID, src)
	cs.tryCommit(msg.NodeID)
}

// tryCommit advances the commit point to nid once a store quorum holds it.
func (cs *ConsensusState) tryCommit(nid types.NodeID) {
	quorum := cs.state.StoreAcks.Quorum(nid, cs.state.Membership.StoreQuorumSize())
	if !quorum.IsReached() {
		return
	}
	if !cs.state.MaxKnownCommitted().Less(nid) {
		return
	}

	cs.state.AddCommitted(nid)
	cs.commitAdvanced(nid)
	cs.broadcast(&KnownCommittedReqMessage{Branch: cs.state.CurrentBranch(), NodeID: nid})
}

func (cs *ConsensusState) handleKnownCommittedReq(msg *KnownCommittedReqMessage) {
	cb := cs.state.CurrentBranch()
	if !msg.Branch.Equal(cb) {
		cs.Logger.Debug("ignore KnownCommittedReq for non-current branch", "msg", msg, "cb", cb)
		return
	}
	if cs.state.AddCommitted(msg.NodeID) {
		cs.commitAdvanced(msg.NodeID)
	}
}

func (cs *ConsensusState) commitAdvanced(nid types.NodeID) {
	cs.metrics.CommitsAdvanced.Add(1)
	cs.metric.MarkCommitAdvanced()
	cs.notify(EventCommitAdvanced, nid)
}

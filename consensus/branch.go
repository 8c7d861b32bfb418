package consensus

import (
	"branchlog/types"
)

// StartBranch mints a branch above every branch this process knows, makes
// it current and asks all neighbors to block into it. Leadership follows
// once a block quorum has promised.
func (cs *ConsensusState) StartBranch() types.BranchID {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	defer cs.updateMetrics()

	self := cs.state.Self()
	branch := cs.state.CurrentBranch().Next(self)
	cs.state.AddBranch(branch)

	// 自己的promise先记上
	cs.state.Promises.Open(branch, self, cs.state.MaxStoredNode())
	cs.metrics.BranchesStarted.Add(1)
	cs.metric.MarkBranchStarted()
	cs.Logger.Info("start branch", "branch", branch)

	cs.broadcast(&BlockReqMessage{Branch: branch})
	cs.tryCreateGenesis(branch)
	return branch
}

// handleBlockReq moves to the requested branch if it is higher and answers
// with the position this process is at after that.
func (cs *ConsensusState) handleBlockReq(msg *BlockReqMessage, src types.ProcessID) {
	cb := cs.state.CurrentBranch()
	if cb.Less(msg.Branch) && cb.PID == cs.state.Self() {
		cs.abandon(cb)
	}
	cs.state.AddBranch(msg.Branch)

	cs.send(&BlockResMessage{
		Branch:    msg.Branch,
		Current:   cs.state.CurrentBranch(),
		MaxStored: cs.state.MaxStoredNode(),
	}, src)
}

func (cs *ConsensusState) handleBlockRes(msg *BlockResMessage, src types.ProcessID) {
	cb := cs.state.CurrentBranch()
	if !msg.Branch.Equal(cb) {
		cs.Logger.Debug("ignore BlockRes for non-current branch", "msg", msg, "cb", cb, "src", src)
		return
	}
	if cb.Less(msg.Current) {
		cs.abandon(cb)
		cs.state.AddBranch(msg.Current)
		return
	}

	// only the process that started cb collects promises for it
	if cs.state.Promises.GetPromisesByBranch(cb) == nil {
		cs.Logger.Error("BlockRes for a branch this process did not start", "msg", msg, "src", src)
		return
	}
	cs.state.Promises.AddPromise(cb, src, msg.MaxStored)
	cs.tryCreateGenesis(cb)
}

// tryCreateGenesis copies the branching point into branch once a block
// quorum has promised, stores it and replicates it like any appended node.
func (cs *ConsensusState) tryCreateGenesis(branch types.BranchID) {
	if cs.state.MaxStoredNode().ID.Branch.Equal(branch) {
		return
	}
	promises := cs.state.Promises.GetPromisesByBranch(branch)
	if promises == nil {
		return
	}
	quorum := promises.Quorum(cs.state.Membership.BlockQuorumSize())
	if !quorum.IsReached() {
		return
	}

	genesis := promises.BranchingPoint().Rebranch(branch)
	cs.state.StoreNode(genesis)
	cs.Logger.Info("branch started", "branch", branch, "genesis", genesis.ID, "quorum", quorum)
	cs.notify(EventBranchStarted, branch)

	cs.replicate(branch, genesis)
}

// abandon reports that cb, owned by this process, was overtaken.
func (cs *ConsensusState) abandon(cb types.BranchID) {
	cs.metrics.Abandonments.Add(1)
	cs.metric.MarkAbandoned()
	cs.notify(EventAbandonBranch, cb)
}

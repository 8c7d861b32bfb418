package consensus

import (
	"sync"

	"branchlog/types"

	jsoniter "github.com/json-iterator/go"
)

func newConsensusMetric(self types.ProcessID) *consensusMetric {
	return &consensusMetric{
		ProcessID: self.Int64(),
	}
}

// consensusMetric is the JSON view registered in the node's MetricSet.
type consensusMetric struct {
	mtx sync.RWMutex

	ProcessID         int64  `json:"process_id"`
	CurrentBranch     string `json:"current_branch"`
	MaxStoredNode     string `json:"max_stored_node"`
	MaxKnownCommitted string `json:"max_known_committed"`
	CommittedLength   int64  `json:"committed_length"`
	IsLeading         bool   `json:"is_leading"`

	BranchesStarted   int64 `json:"branches_started"`
	BranchesAbandoned int64 `json:"branches_abandoned"`
	CommitsAdvanced   int64 `json:"commits_advanced"`
	DroppedMessages   int64 `json:"dropped_messages"`
}

func (cm *consensusMetric) JSONString() string {
	cm.mtx.RLock()
	defer cm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(cm)
	return s
}

func (cm *consensusMetric) MarkPosition(cb types.BranchID, msn, mkc types.NodeID, leading bool) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.CurrentBranch = cb.String()
	cm.MaxStoredNode = msn.String()
	cm.MaxKnownCommitted = mkc.String()
	cm.CommittedLength = mkc.Length
	cm.IsLeading = leading
}

func (cm *consensusMetric) MarkBranchStarted() {
	cm.mtx.Lock()
	cm.BranchesStarted++
	cm.mtx.Unlock()
}

func (cm *consensusMetric) MarkAbandoned() {
	cm.mtx.Lock()
	cm.BranchesAbandoned++
	cm.mtx.Unlock()
}

func (cm *consensusMetric) MarkCommitAdvanced() {
	cm.mtx.Lock()
	cm.CommitsAdvanced++
	cm.mtx.Unlock()
}

func (cm *consensusMetric) MarkDropped() {
	cm.mtx.Lock()
	cm.DroppedMessages++
	cm.mtx.Unlock()
}

package consensus

// ------ Event ------
// 对外广播的状态事件，数据分别是 types.BranchID / types.BranchID / types.NodeID
const (
	// the process learned that a branch it started was overtaken
	EventAbandonBranch = "AbandonBranch"
	// the genesis node of a branch started by this process was stored
	EventBranchStarted = "BranchStarted"
	// a node id was added to the known committed set
	EventCommitAdvanced = "CommitAdvanced"
)

package consensus

import (
	"math/rand"
	"testing"

	"branchlog/state"
	"branchlog/types"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
)

// envelope is one message in flight inside testNetwork.
type envelope struct {
	from, to types.ProcessID
	bz       []byte
}

// testNetwork delivers encoded messages between ConsensusStates on demand.
// Depending on its knobs it drops, duplicates and reorders them.
type testNetwork struct {
	t   *testing.T
	rnd *rand.Rand

	nodes map[types.ProcessID]*ConsensusState
	pids  []types.ProcessID
	queue []envelope

	dropRate float64
	dupRate  float64
	reorder  bool
	isolated map[types.ProcessID]bool

	events map[types.ProcessID]*eventRecorder
}

type netTransport struct {
	net  *testNetwork
	from types.ProcessID
}

func (tr *netTransport) Send(msg Message, to types.ProcessID) bool {
	bz, err := EncodeMsg(msg)
	require.NoError(tr.net.t, err)
	tr.net.queue = append(tr.net.queue, envelope{from: tr.from, to: to, bz: bz})
	return true
}

type eventRecorder struct {
	abandoned []types.BranchID
	started   []types.BranchID
	committed []types.NodeID
}

func (er *eventRecorder) listen(evsw events.EventSwitch) {
	const subscriber = "test"
	evsw.AddListenerForEvent(subscriber, EventAbandonBranch, func(data events.EventData) {
		er.abandoned = append(er.abandoned, data.(types.BranchID))
	})
	evsw.AddListenerForEvent(subscriber, EventBranchStarted, func(data events.EventData) {
		er.started = append(er.started, data.(types.BranchID))
	})
	evsw.AddListenerForEvent(subscriber, EventCommitAdvanced, func(data events.EventData) {
		er.committed = append(er.committed, data.(types.NodeID))
	})
}

// newTestNetwork builds n processes with ids 1..n.
func newTestNetwork(t *testing.T, n, blockQuorumSize, storeQuorumSize int) *testNetwork {
	net := &testNetwork{
		t:        t,
		rnd:      rand.New(rand.NewSource(1)),
		nodes:    make(map[types.ProcessID]*ConsensusState, n),
		isolated: make(map[types.ProcessID]bool),
		events:   make(map[types.ProcessID]*eventRecorder, n),
	}
	for i := 1; i <= n; i++ {
		net.pids = append(net.pids, types.ProcessID(i))
	}
	for _, pid := range net.pids {
		membership, err := types.NewMembership(pid, net.pids, blockQuorumSize, storeQuorumSize)
		require.NoError(t, err)
		st, err := state.NewMemState(membership, nil)
		require.NoError(t, err)

		cs := NewConsensusState(st, &netTransport{net: net, from: pid})
		cs.SetLogger(log.TestingLogger().With("pid", pid))
		net.nodes[pid] = cs

		er := &eventRecorder{}
		er.listen(cs.EventSwitch())
		net.events[pid] = er
	}
	return net
}

func (net *testNetwork) node(pid int) *ConsensusState {
	return net.nodes[types.ProcessID(pid)]
}

// step delivers one queued message. It returns false when the queue is empty.
func (net *testNetwork) step() bool {
	if len(net.queue) == 0 {
		return false
	}
	i := 0
	if net.reorder {
		i = net.rnd.Intn(len(net.queue))
	}
	env := net.queue[i]
	net.queue = append(net.queue[:i], net.queue[i+1:]...)

	if net.isolated[env.from] || net.isolated[env.to] {
		return true
	}
	if net.dropRate > 0 && net.rnd.Float64() < net.dropRate {
		return true
	}
	if net.dupRate > 0 && net.rnd.Float64() < net.dupRate {
		net.queue = append(net.queue, env)
	}

	msg, err := DecodeMsg(env.bz)
	require.NoError(net.t, err)
	net.nodes[env.to].Receive(msg, env.from)
	return true
}

// deliverAll runs until the network is quiet.
func (net *testNetwork) deliverAll() {
	for i := 0; net.step(); i++ {
		require.Less(net.t, i, 100000, "network did not quiesce")
	}
}

// storedPayload finds nid in any process's store.
func (net *testNetwork) storedPayload(nid types.NodeID) ([]int64, bool) {
	for _, pid := range net.pids {
		n, err := net.nodes[pid].state.Nodes.GetNode(nid)
		if err == nil {
			return n.Payload, true
		}
	}
	return nil, false
}

func isPrefix(prefix, full []int64) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			return false
		}
	}
	return true
}

package consensus

import (
	"math/rand"
	"testing"

	"branchlog/state"
	"branchlog/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

// 随机丢包、重复、乱序，多个进程随机抢占分支并追加
func TestSafetyUnderUnreliableDelivery(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		net := newTestNetwork(t, 3, 2, 2)
		net.rnd = rand.New(rand.NewSource(seed))
		net.dropRate = 0.2
		net.dupRate = 0.1
		net.reorder = true

		entry := int64(0)
		for round := 0; round < 60; round++ {
			pid := net.pids[net.rnd.Intn(len(net.pids))]
			cs := net.nodes[pid]
			switch {
			case net.rnd.Intn(8) == 0:
				cs.StartBranch()
			case cs.IsLeading():
				entry++
				_, err := cs.Append(entry)
				require.NoError(t, err)
			}
			for i := net.rnd.Intn(10); i > 0 && net.step(); i-- {
			}
		}
		net.deliverAll()

		checkCommittedChains(t, net, seed)
	}
}

// checkCommittedChains verifies that committed node ids of one branch form a
// prefix chain and that every copy of a node carries the same payload.
func checkCommittedChains(t *testing.T, net *testNetwork, seed int64) {
	byBranch := make(map[types.BranchID][]types.NodeID)
	seen := make(map[types.NodeID]bool)
	for _, pid := range net.pids {
		for _, nid := range net.nodes[pid].state.KnownCommitted.NodeIDs() {
			if !seen[nid] {
				seen[nid] = true
				byBranch[nid.Branch] = append(byBranch[nid.Branch], nid)
			}
		}
	}

	for branch, nids := range byBranch {
		for i := range nids {
			pi, ok := net.storedPayload(nids[i])
			if !ok {
				continue
			}
			for j := range nids {
				pj, ok := net.storedPayload(nids[j])
				if !ok || nids[i].Length > nids[j].Length {
					continue
				}
				assert.Truef(t, isPrefix(pi, pj), "seed %d branch %v: %v=%v is not a prefix of %v=%v",
					seed, branch, nids[i], pi, nids[j], pj)
			}
		}
	}

	for nid := range seen {
		var first []int64
		for _, pid := range net.pids {
			n, err := net.nodes[pid].state.Nodes.GetNode(nid)
			if err != nil {
				continue
			}
			if first == nil {
				first = n.Payload
				continue
			}
			assert.Equalf(t, first, n.Payload, "seed %d: diverging copies of %v", seed, nid)
		}
	}
}

// randomMessage draws a well-formed message over a small id space.
func randomMessage(r *rand.Rand) Message {
	branch := func() types.BranchID {
		return types.NewBranchID(types.LTime(r.Intn(6)), types.ProcessID(1+r.Intn(3)))
	}
	node := func(b types.BranchID) types.Node {
		length := r.Intn(4)
		payload := make([]int64, length)
		for i := range payload {
			payload[i] = int64(r.Intn(3))
		}
		return types.NewNode(types.NewNodeID(b, int64(length)), payload)
	}

	b := branch()
	switch r.Intn(5) {
	case 0:
		return &BlockReqMessage{Branch: b}
	case 1:
		return &BlockResMessage{Branch: b, Current: branch(), MaxStored: node(branch())}
	case 2:
		return &StoreReqMessage{Branch: b, Node: node(b)}
	case 3:
		return &StoreResMessage{Branch: b, Current: branch(), NodeID: node(branch()).ID}
	default:
		return &KnownCommittedReqMessage{Branch: b, NodeID: node(branch()).ID}
	}
}

// 任意重放的消息序列下，currentBranch不减，各集合只增不减
func TestMonotonicUnderReplay(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	members := []types.ProcessID{1, 2, 3}
	membership, err := types.NewMembership(1, members, 2, 2)
	require.NoError(t, err)
	st, err := state.NewMemState(membership, nil)
	require.NoError(t, err)

	recorder := &recordingTransport{}
	cs := NewConsensusState(st, recorder)
	cs.SetLogger(log.TestingLogger())

	history := make([]Message, 0, 2000)
	prev := cs.Status()
	for i := 0; i < 2000; i++ {
		var msg Message
		if len(history) > 0 && r.Intn(4) == 0 {
			msg = history[r.Intn(len(history))]
		} else {
			msg = randomMessage(r)
			history = append(history, msg)
		}
		if r.Intn(50) == 0 {
			cs.StartBranch()
		}
		if r.Intn(10) == 0 && cs.IsLeading() {
			_, err := cs.Append(int64(i))
			require.NoError(t, err)
		}
		cs.Receive(msg, members[r.Intn(len(members))])

		cur := cs.Status()
		require.False(t, cur.CurrentBranch.Less(prev.CurrentBranch), "current branch went from %v to %v", prev.CurrentBranch, cur.CurrentBranch)
		require.False(t, cur.MaxKnownCommitted.Less(prev.MaxKnownCommitted))
		require.GreaterOrEqual(t, cur.KnownBranches, prev.KnownBranches)
		require.GreaterOrEqual(t, cur.StoredNodes, prev.StoredNodes)
		require.GreaterOrEqual(t, cur.KnownCommitted, prev.KnownCommitted)
		prev = cur
	}
	assert.NotEmpty(t, recorder.sent)
}

type recordingTransport struct {
	sent []Message
}

func (rt *recordingTransport) Send(msg Message, to types.ProcessID) bool {
	rt.sent = append(rt.sent, msg)
	return true
}

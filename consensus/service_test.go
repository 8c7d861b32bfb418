package consensus

import (
	"testing"
	"time"

	"branchlog/state"
	"branchlog/types"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/mock"
)

func TestDeliverThroughReceiveRoutine(t *testing.T) {
	defer leaktest.Check(t)()

	net := newTestNetwork(t, 3, 2, 2)
	p3 := net.node(3)

	// 未启动时直接丢弃
	p3.Deliver(&BlockReqMessage{Branch: b12}, 2)
	assert.Equal(t, types.RootBranchID, p3.Status().CurrentBranch)

	require.NoError(t, p3.Start())
	p3.Deliver(&BlockReqMessage{Branch: b11}, 1)
	assert.Eventually(t, func() bool {
		return p3.Status().CurrentBranch == b11
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p3.Stop())
}

func TestMsgQueueSizeOption(t *testing.T) {
	defer leaktest.Check(t)()

	cs := NewConsensusState(newReactorTestState(t), nil, SetMsgQueueSize(4))
	cs.SetLogger(log.TestingLogger())
	assert.Equal(t, 4, cap(cs.peerMsgQueue))

	require.NoError(t, cs.Start())
	for i := 0; i < 8; i++ {
		cs.Deliver(&BlockReqMessage{Branch: types.NewBranchID(types.LTime(i+1), 2)}, 2)
	}
	assert.Eventually(t, func() bool {
		return cs.Status().CurrentBranch == types.NewBranchID(8, 2)
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, cs.Stop())
}

func TestConsensusMetric(t *testing.T) {
	net := newTestNetwork(t, 3, 2, 2)
	p1 := net.node(1)
	p1.StartBranch()
	net.deliverAll()
	p1.Receive(&BlockReqMessage{Branch: b11}, 7)

	m := p1.Metric()
	assert.Equal(t, int64(1), m.BranchesStarted)
	assert.Equal(t, int64(1), m.CommitsAdvanced)
	assert.Equal(t, int64(1), m.DroppedMessages)
	assert.True(t, m.IsLeading)
	assert.Equal(t, b11.String(), m.CurrentBranch)
	assert.Contains(t, m.JSONString(), `"is_leading":true`)
}

func newReactorTestState(t *testing.T) *state.State {
	membership, err := types.NewMembership(1, []types.ProcessID{1, 2}, 2, 2)
	require.NoError(t, err)
	st, err := state.NewMemState(membership, nil)
	require.NoError(t, err)
	return st
}

func TestReactorSendAndReceive(t *testing.T) {
	defer leaktest.Check(t)()

	cs := NewConsensusState(newReactorTestState(t), nil)
	cs.SetLogger(log.TestingLogger())
	peer := mock.NewPeer(nil)
	conR := NewReactor(cs, map[types.ProcessID]p2p.ID{2: peer.ID()})
	conR.SetLogger(log.TestingLogger())
	cs.SetTransport(conR)

	assert.False(t, conR.Send(&BlockReqMessage{Branch: b11}, 2), "peer not connected")
	assert.False(t, conR.Send(&BlockReqMessage{Branch: b11}, 5), "not in peer book")

	conR.AddPeer(peer)
	assert.True(t, conR.Send(&BlockReqMessage{Branch: b11}, 2))
	assert.Equal(t, int64(1), conR.Traffic().Count("send.BlockReq"))
	assert.Equal(t, int64(2), conR.Traffic().Count("send_failed"))

	require.NoError(t, conR.Start())
	assert.True(t, cs.IsRunning())

	b32 := types.NewBranchID(3, 2)
	bz, err := EncodeMsg(&BlockReqMessage{Branch: b32})
	require.NoError(t, err)
	conR.Receive(BranchLogChannel, peer, bz)
	assert.Eventually(t, func() bool {
		return cs.Status().CurrentBranch == b32 && conR.Traffic().Count("send.BlockRes") == 1
	}, time.Second, 5*time.Millisecond)

	conR.Receive(BranchLogChannel, mock.NewPeer(nil), bz)
	assert.Equal(t, int64(1), conR.Traffic().Count("recv_unknown_peer"))
	conR.Receive(BranchLogChannel, peer, []byte("not a message"))
	assert.Equal(t, int64(1), conR.Traffic().Count("recv_undecodable"))
	assert.Equal(t, int64(1), conR.Traffic().Count("recv.BlockReq"))

	conR.RemovePeer(peer, "test")
	assert.False(t, conR.Send(&BlockReqMessage{Branch: b11}, 2))

	require.NoError(t, conR.Stop())
	assert.False(t, cs.IsRunning())
	assert.Contains(t, conR.Traffic().JSONString(), `"send.BlockReq":1`)
}

func TestReactorIgnoresNonMemberPeer(t *testing.T) {
	cs := NewConsensusState(newReactorTestState(t), nil)
	conR := NewReactor(cs, nil)
	conR.AddPeer(mock.NewPeer(nil))
	assert.Equal(t, 0, conR.peers.Size())
}

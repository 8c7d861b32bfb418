package consensus

import (
	"fmt"

	"branchlog/types"

	jsoniter "github.com/json-iterator/go"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/tendermint/tendermint/libs/cmap"
	"github.com/tendermint/tendermint/p2p"
)

const (
	BranchLogChannel = byte(0x40)

	maxMsgSize = 1048576 // 1MB
)

// ------- Reactor ------
// Reactor carries consensus messages over the tendermint p2p switch and is
// the Transport of its ConsensusState. Process ids are mapped to p2p node
// ids through a static peer book.
type Reactor struct {
	p2p.BaseReactor

	consensus *ConsensusState

	// p2p.ID -> p2p.Peer
	peers *cmap.CMap

	pidToPeer map[types.ProcessID]p2p.ID
	peerToPid map[p2p.ID]types.ProcessID

	traffic *trafficMetric
}

type ReactorOption func(*Reactor)

func NewReactor(consensus *ConsensusState, peerBook map[types.ProcessID]p2p.ID, options ...ReactorOption) *Reactor {
	conR := &Reactor{
		consensus: consensus,
		peers:     cmap.NewCMap(),
		pidToPeer: make(map[types.ProcessID]p2p.ID, len(peerBook)),
		peerToPid: make(map[p2p.ID]types.ProcessID, len(peerBook)),
		traffic:   newTrafficMetric(),
	}
	for pid, id := range peerBook {
		conR.pidToPeer[pid] = id
		conR.peerToPid[id] = pid
	}
	conR.BaseReactor = *p2p.NewBaseReactor("Consensus", conR)

	for _, option := range options {
		option(conR)
	}

	return conR
}

// OnStart starts the consensus state unless it is already running.
func (conR *Reactor) OnStart() error {
	conR.Logger.Info("Consensus Reactor started.", "peers", len(conR.pidToPeer))
	if !conR.consensus.IsRunning() {
		return conR.consensus.Start()
	}
	return nil
}

func (conR *Reactor) OnStop() {
	if err := conR.consensus.Stop(); err != nil {
		conR.Logger.Error("failed trying to stop consensus", "error", err)
	}
}

func (conR *Reactor) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{
			ID:                  BranchLogChannel,
			Priority:            10,
			SendQueueCapacity:   100,
			RecvBufferCapacity:  maxMsgSize,
			RecvMessageCapacity: maxMsgSize,
		},
	}
}

func (conR *Reactor) InitPeer(peer p2p.Peer) p2p.Peer {
	return peer
}

func (conR *Reactor) AddPeer(peer p2p.Peer) {
	if _, ok := conR.peerToPid[peer.ID()]; !ok {
		conR.Logger.Info("peer is not a member, ignore", "peer", peer.ID())
		return
	}
	conR.peers.Set(string(peer.ID()), peer)
	conR.Logger.Info("add peer", "peer", peer.ID(), "pid", conR.peerToPid[peer.ID()])
}

func (conR *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {
	conR.peers.Delete(string(peer.ID()))
	conR.Logger.Info("remove peer", "peer", peer.ID(), "reason", reason)
}

func (conR *Reactor) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	if chID != BranchLogChannel {
		conR.Logger.Error(fmt.Sprintf("Unknown chID %X", chID))
		return
	}
	pid, ok := conR.peerToPid[src.ID()]
	if !ok {
		conR.traffic.Mark("recv_unknown_peer", 1)
		conR.Logger.Debug("message from unknown peer", "peer", src.ID())
		return
	}
	msg, err := DecodeMsg(msgBytes)
	if err != nil {
		conR.traffic.Mark("recv_undecodable", 1)
		conR.Logger.Error("try to decode message failed", "err", err, "src", src.ID())
		return
	}

	conR.traffic.Mark("recv."+msgTypeName(msg), 1)
	conR.traffic.Mark("recv_bytes", int64(len(msgBytes)))
	conR.Logger.Debug("Receive", "src", pid, "msg", msg)
	conR.consensus.Deliver(msg, pid)
}

// Send implements Transport. It never blocks: a full send queue or an
// absent peer loses the message.
func (conR *Reactor) Send(msg Message, to types.ProcessID) bool {
	id, ok := conR.pidToPeer[to]
	if !ok {
		conR.traffic.Mark("send_failed", 1)
		return false
	}
	peer, ok := conR.peers.Get(string(id)).(p2p.Peer)
	if !ok {
		conR.traffic.Mark("send_failed", 1)
		return false
	}
	bz, err := EncodeMsg(msg)
	if err != nil {
		conR.Logger.Error("Marshal message failed.", "err", err, "msg", msg)
		return false
	}
	if !peer.TrySend(BranchLogChannel, bz) {
		conR.traffic.Mark("send_failed", 1)
		return false
	}
	conR.traffic.Mark("send."+msgTypeName(msg), 1)
	conR.traffic.Mark("send_bytes", int64(len(bz)))
	return true
}

// Traffic is the JSON view of per-message-type counters.
func (conR *Reactor) Traffic() *trafficMetric {
	return conR.traffic
}

// trafficMetric counts reactor traffic in a private go-metrics registry.
type trafficMetric struct {
	registry gometrics.Registry
}

func newTrafficMetric() *trafficMetric {
	return &trafficMetric{registry: gometrics.NewRegistry()}
}

func (tm *trafficMetric) Mark(name string, n int64) {
	gometrics.GetOrRegisterCounter(name, tm.registry).Inc(n)
}

func (tm *trafficMetric) Count(name string) int64 {
	c, ok := tm.registry.Get(name).(gometrics.Counter)
	if !ok {
		return 0
	}
	return c.Count()
}

func (tm *trafficMetric) JSONString() string {
	snapshot := make(map[string]int64)
	tm.registry.Each(func(name string, i interface{}) {
		if c, ok := i.(gometrics.Counter); ok {
			snapshot[name] = c.Count()
		}
	})
	s, _ := jsoniter.MarshalToString(snapshot)
	return s
}

package consensus

import (
	"fmt"
	"sync"

	"branchlog/state"
	"branchlog/types"

	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
)

const (
	defaultMsgQueueSize = 1000
)

// 共识状态机实现
// ConsensusState drives one process of the replicated log. Local triggers
// (StartBranch, Append, reads) and inbound messages are serialised on mtx,
// every handler runs to completion before the next one starts.
type ConsensusState struct {
	service.BaseService

	mtx   sync.Mutex
	state *state.State

	transport Transport

	// 处理来自其他节点的消息
	peerMsgQueue chan msgInfo
	eventSwitch  events.EventSwitch

	metrics *Metrics
	metric  *consensusMetric
}

type ConsensusOption func(*ConsensusState)

func NewConsensusState(st *state.State, transport Transport, options ...ConsensusOption) *ConsensusState {
	if transport == nil {
		transport = nopTransport{}
	}
	cs := &ConsensusState{
		state:        st,
		transport:    transport,
		peerMsgQueue: make(chan msgInfo, defaultMsgQueueSize),
		eventSwitch:  events.NewEventSwitch(),
		metrics:      NopMetrics(),
		metric:       newConsensusMetric(st.Self()),
	}
	cs.BaseService = *service.NewBaseService(nil, "CONSENSUS", cs)

	for _, opt := range options {
		opt(cs)
	}
	cs.updateMetrics()

	return cs
}

func SetMetrics(metrics *Metrics) ConsensusOption {
	return func(cs *ConsensusState) {
		cs.metrics = metrics
	}
}

func SetMsgQueueSize(size int) ConsensusOption {
	return func(cs *ConsensusState) {
		cs.peerMsgQueue = make(chan msgInfo, size)
	}
}

func (cs *ConsensusState) SetLogger(logger log.Logger) {
	cs.Logger = logger
	cs.eventSwitch.SetLogger(logger.With("module", "events"))
	cs.state.Nodes.SetLogger(logger.With("module", "store"))
}

// SetTransport replaces the outbound transport, typically with the reactor
// that was built around this ConsensusState.
func (cs *ConsensusState) SetTransport(transport Transport) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	cs.transport = transport
}

// EventSwitch exposes the abandon, branch-started and commit events.
// Listeners run synchronously inside the handler that fired them and must
// not call back into the ConsensusState.
func (cs *ConsensusState) EventSwitch() events.EventSwitch {
	return cs.eventSwitch
}

// Metric is the JSON snapshot served over rpc.
func (cs *ConsensusState) Metric() *consensusMetric {
	return cs.metric
}

func (cs *ConsensusState) OnStart() error {
	if err := cs.eventSwitch.Start(); err != nil {
		return err
	}
	go cs.receiveRoutine()
	cs.Logger.Info("consensus receive routine started.", "state", cs.stateString())
	return nil
}

func (cs *ConsensusState) OnStop() {
	if err := cs.eventSwitch.Stop(); err != nil {
		cs.Logger.Error("failed trying to stop eventSwitch", "error", err)
	}
	cs.Logger.Info("consensus stopped.")
}

// receiveRoutine 负责接收所有来自其他节点的消息
func (cs *ConsensusState) receiveRoutine() {
	for {
		select {
		case <-cs.Quit():
			cs.Logger.Debug("receiveRoutine quit.")
			return
		case mi := <-cs.peerMsgQueue:
			cs.handleMsg(mi)
		}
	}
}

// Deliver queues msg from src for the receive routine. It blocks while the
// queue is full and drops the message when the service is not running.
func (cs *ConsensusState) Deliver(msg Message, src types.ProcessID) {
	if !cs.IsRunning() {
		cs.Logger.Debug("consensus not running, drop message", "msg", msg, "src", src)
		return
	}
	select {
	case cs.peerMsgQueue <- msgInfo{Msg: msg, Src: src}:
	case <-cs.Quit():
	}
}

// Receive handles msg from src synchronously.
func (cs *ConsensusState) Receive(msg Message, src types.ProcessID) {
	cs.handleMsg(msgInfo{Msg: msg, Src: src})
}

// handleMsg 根据不同的消息类型进行操作
func (cs *ConsensusState) handleMsg(mi msgInfo) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	msg, src := mi.Msg, mi.Src
	msgType := msgTypeName(msg)

	if msg == nil || !cs.state.Membership.HasMember(src) {
		cs.Logger.Debug("drop message from unknown sender", "msg", msg, "src", src)
		cs.dropMsg(msgType)
		return
	}
	if err := msg.ValidateBasic(); err != nil {
		cs.Logger.Error("drop invalid message", "msg", msg, "src", src, "err", err)
		cs.dropMsg(msgType)
		return
	}
	cs.metrics.ReceivedMessages.With("msg_type", msgType).Add(1)

	switch msg := msg.(type) {
	case *BlockReqMessage:
		cs.handleBlockReq(msg, src)
	case *BlockResMessage:
		cs.handleBlockRes(msg, src)
	case *StoreReqMessage:
		cs.handleStoreReq(msg, src)
	case *StoreResMessage:
		cs.handleStoreRes(msg, src)
	case *KnownCommittedReqMessage:
		cs.handleKnownCommittedReq(msg)
	default:
		cs.Logger.Error("unknown message type", "msg", fmt.Sprintf("%T", msg), "src", src)
		cs.dropMsg(msgType)
		return
	}
	cs.updateMetrics()
}

func (cs *ConsensusState) dropMsg(msgType string) {
	cs.metrics.DroppedMessages.With("msg_type", msgType).Add(1)
	cs.metric.MarkDropped()
}

// send hands msg to the transport. Delivery is best effort.
func (cs *ConsensusState) send(msg Message, to types.ProcessID) {
	if !cs.transport.Send(msg, to) {
		cs.Logger.Debug("send failed", "msg", msg, "to", to)
	}
}

// broadcast sends msg to every member except self.
func (cs *ConsensusState) broadcast(msg Message) {
	for _, pid := range cs.state.Membership.Neighbors() {
		cs.send(msg, pid)
	}
}

func (cs *ConsensusState) notify(event string, data events.EventData) {
	cs.Logger.Info("notify", "event", event, "data", data)
	cs.eventSwitch.FireEvent(event, data)
}

func (cs *ConsensusState) updateMetrics() {
	cb := cs.state.CurrentBranch()
	mkc := cs.state.MaxKnownCommitted()
	msn := cs.state.MaxStoredNode()
	leading := cs.state.IsLeading()
	sizes := cs.state.Sizes()

	cs.metrics.CurrentBranchTime.Set(float64(cb.LT.Int64()))
	cs.metrics.KnownBranches.Set(float64(sizes.KnownBranches))
	cs.metrics.StoredNodes.Set(float64(sizes.StoredNodes))
	cs.metrics.CommittedLength.Set(float64(mkc.Length))
	if leading {
		cs.metrics.Leading.Set(1)
	} else {
		cs.metrics.Leading.Set(0)
	}

	cs.metric.MarkPosition(cb, msn.ID, mkc, leading)
}

func (cs *ConsensusState) stateString() string {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()
	return cs.state.String()
}

// ----- MsgInfo -----
// 与reactor之间通信的消息格式
type msgInfo struct {
	Msg Message
	Src types.ProcessID
}

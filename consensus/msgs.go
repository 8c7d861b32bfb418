package consensus

import (
	"fmt"

	"branchlog/types"

	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"
)

var (
	ErrUnknownMessage = errors.New("unknown message")
	ErrBranchMismatch = errors.New("node is not tagged with the message branch")
)

func init() {
	tmjson.RegisterType(&BlockReqMessage{}, "branchlog/BlockReq")
	tmjson.RegisterType(&BlockResMessage{}, "branchlog/BlockRes")
	tmjson.RegisterType(&StoreReqMessage{}, "branchlog/StoreReq")
	tmjson.RegisterType(&StoreResMessage{}, "branchlog/StoreRes")
	tmjson.RegisterType(&KnownCommittedReqMessage{}, "branchlog/KnownCommittedReq")
}

// ------ Message ------
type Message interface {
	ValidateBasic() error
}

// msgEnvelope puts the message behind an interface field so that tmjson
// writes its registered type name.
type msgEnvelope struct {
	Msg Message `json:"msg"`
}

func EncodeMsg(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrUnknownMessage
	}
	return tmjson.Marshal(msgEnvelope{Msg: msg})
}

// DecodeMsg decodes and validates a wire message.
func DecodeMsg(bz []byte) (Message, error) {
	var env msgEnvelope
	if err := tmjson.Unmarshal(bz, &env); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	if env.Msg == nil {
		return nil, ErrUnknownMessage
	}
	// tmjson decodes an empty slice as nil
	switch msg := env.Msg.(type) {
	case *BlockResMessage:
		fillPayload(&msg.MaxStored)
	case *StoreReqMessage:
		fillPayload(&msg.Node)
	}
	if err := env.Msg.ValidateBasic(); err != nil {
		return nil, err
	}
	return env.Msg, nil
}

func fillPayload(n *types.Node) {
	if n.Payload == nil {
		n.Payload = []int64{}
	}
}

// msgTypeName is the metric label of msg.
func msgTypeName(msg Message) string {
	switch msg.(type) {
	case *BlockReqMessage:
		return "BlockReq"
	case *BlockResMessage:
		return "BlockRes"
	case *StoreReqMessage:
		return "StoreReq"
	case *StoreResMessage:
		return "StoreRes"
	case *KnownCommittedReqMessage:
		return "KnownCommittedReq"
	default:
		return "Unknown"
	}
}

// BlockReqMessage asks the receiver to block into Branch.
type BlockReqMessage struct {
	Branch types.BranchID `json:"branch"`
}

func (msg *BlockReqMessage) ValidateBasic() error {
	return msg.Branch.ValidateBasic()
}

func (msg *BlockReqMessage) String() string {
	return fmt.Sprintf("[BlockReq %v]", msg.Branch)
}

// BlockResMessage is the promise: the branch the responder already knows
// about and the most it has stored.
type BlockResMessage struct {
	Branch    types.BranchID `json:"branch"`
	Current   types.BranchID `json:"current"`
	MaxStored types.Node     `json:"max_stored"`
}

func (msg *BlockResMessage) ValidateBasic() error {
	if err := msg.Branch.ValidateBasic(); err != nil {
		return err
	}
	if err := msg.Current.ValidateBasic(); err != nil {
		return err
	}
	return msg.MaxStored.ValidateBasic()
}

func (msg *BlockResMessage) String() string {
	return fmt.Sprintf("[BlockRes %v cb:%v msn:%v]", msg.Branch, msg.Current, msg.MaxStored.ID)
}

type StoreReqMessage struct {
	Branch types.BranchID `json:"branch"`
	Node   types.Node     `json:"node"`
}

func (msg *StoreReqMessage) ValidateBasic() error {
	if err := msg.Branch.ValidateBasic(); err != nil {
		return err
	}
	if err := msg.Node.ValidateBasic(); err != nil {
		return err
	}
	if !msg.Node.ID.Branch.Equal(msg.Branch) {
		return errors.Wrapf(ErrBranchMismatch, "node %v in branch %v", msg.Node.ID, msg.Branch)
	}
	return nil
}

func (msg *StoreReqMessage) String() string {
	return fmt.Sprintf("[StoreReq %v node:%v]", msg.Branch, msg.Node.ID)
}

// StoreResMessage always carries the responder's true position, whether or
// not it stored the node.
type StoreResMessage struct {
	Branch  types.BranchID `json:"branch"`
	Current types.BranchID `json:"current"`
	NodeID  types.NodeID   `json:"node_id"`
}

func (msg *StoreResMessage) ValidateBasic() error {
	if err := msg.Branch.ValidateBasic(); err != nil {
		return err
	}
	if err := msg.Current.ValidateBasic(); err != nil {
		return err
	}
	return msg.NodeID.ValidateBasic()
}

func (msg *StoreResMessage) String() string {
	return fmt.Sprintf("[StoreRes %v cb:%v nid:%v]", msg.Branch, msg.Current, msg.NodeID)
}

type KnownCommittedReqMessage struct {
	Branch types.BranchID `json:"branch"`
	NodeID types.NodeID   `json:"node_id"`
}

func (msg *KnownCommittedReqMessage) ValidateBasic() error {
	if err := msg.Branch.ValidateBasic(); err != nil {
		return err
	}
	return msg.NodeID.ValidateBasic()
}

func (msg *KnownCommittedReqMessage) String() string {
	return fmt.Sprintf("[KnownCommittedReq %v nid:%v]", msg.Branch, msg.NodeID)
}

package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// RootNodeID is the empty log under the root branch.
var RootNodeID = NodeID{Branch: RootBranchID, Length: 0}

// NodeID names one version of the log: the branch it was written under and
// the number of entries it holds.
type NodeID struct {
	Branch BranchID `json:"branch"`
	Length int64    `json:"length"`
}

func NewNodeID(branch BranchID, length int64) NodeID {
	return NodeID{Branch: branch, Length: length}
}

// Compare orders by branch, then by length.
func (nid NodeID) Compare(other NodeID) int {
	if c := nid.Branch.Compare(other.Branch); c != 0 {
		return c
	}
	switch {
	case nid.Length < other.Length:
		return -1
	case nid.Length > other.Length:
		return 1
	}
	return 0
}

func (nid NodeID) Less(other NodeID) bool {
	return nid.Compare(other) < 0
}

func (nid NodeID) Equal(other NodeID) bool {
	return nid == other
}

func (nid NodeID) ValidateBasic() error {
	if err := nid.Branch.ValidateBasic(); err != nil {
		return err
	}
	if nid.Length < 0 {
		return errors.Wrapf(ErrNegativeField, "node length %d", nid.Length)
	}
	return nil
}

func (nid NodeID) String() string {
	return fmt.Sprintf("(%v,%d)", nid.Branch, nid.Length)
}

// Node is a node id together with the full log it names.
// len(Payload) always equals ID.Length.
type Node struct {
	ID      NodeID  `json:"id"`
	Payload []int64 `json:"payload"`
}

// MakeRootNode returns the node every process starts with.
func MakeRootNode() Node {
	return Node{ID: RootNodeID, Payload: []int64{}}
}

// NewNode copies payload so that the node never aliases caller memory.
func NewNode(id NodeID, payload []int64) Node {
	return Node{ID: id, Payload: copyPayload(payload)}
}

// Extend builds the successor of n holding one more entry.
func (n Node) Extend(entry int64) Node {
	payload := make([]int64, len(n.Payload), len(n.Payload)+1)
	copy(payload, n.Payload)
	payload = append(payload, entry)
	return Node{
		ID:      NodeID{Branch: n.ID.Branch, Length: n.ID.Length + 1},
		Payload: payload,
	}
}

// Rebranch re-tags the content of n under branch. This is how the genesis
// node of a won branch carries the branching point forward.
func (n Node) Rebranch(branch BranchID) Node {
	return Node{
		ID:      NodeID{Branch: branch, Length: int64(len(n.Payload))},
		Payload: copyPayload(n.Payload),
	}
}

// Compare orders by node id and falls back to payload contents. The payload
// comparison is a tie-break only, storage is always keyed by node id.
func (n Node) Compare(other Node) int {
	if c := n.ID.Compare(other.ID); c != 0 {
		return c
	}
	for i := 0; i < len(n.Payload) && i < len(other.Payload); i++ {
		switch {
		case n.Payload[i] < other.Payload[i]:
			return -1
		case n.Payload[i] > other.Payload[i]:
			return 1
		}
	}
	switch {
	case len(n.Payload) < len(other.Payload):
		return -1
	case len(n.Payload) > len(other.Payload):
		return 1
	}
	return 0
}

func (n Node) Less(other Node) bool {
	return n.Compare(other) < 0
}

func (n Node) Copy() Node {
	return NewNode(n.ID, n.Payload)
}

func (n Node) ValidateBasic() error {
	if err := n.ID.ValidateBasic(); err != nil {
		return err
	}
	if int64(len(n.Payload)) != n.ID.Length {
		return errors.Wrapf(ErrPayloadLength, "node %v has %d entries", n.ID, len(n.Payload))
	}
	return nil
}

func (n Node) String() string {
	return fmt.Sprintf("Node{%v %v}", n.ID, n.Payload)
}

// MaxNode returns the greatest node under Node.Compare. nodes must not be empty.
func MaxNode(nodes ...Node) Node {
	if len(nodes) == 0 {
		panic("MaxNode of no nodes")
	}
	res := nodes[0]
	for _, n := range nodes[1:] {
		if res.Less(n) {
			res = n
		}
	}
	return res
}

func copyPayload(payload []int64) []int64 {
	res := make([]int64, len(payload))
	copy(res, payload)
	return res
}

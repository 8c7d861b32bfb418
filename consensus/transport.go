package consensus

import (
	"branchlog/types"
)

// Transport delivers messages to other members. Delivery is best effort:
// messages may be lost, duplicated, delayed or reordered, and Send must not
// block on the receiver.
type Transport interface {
	// Send reports whether msg was handed to the underlying network.
	Send(msg Message, to types.ProcessID) bool
}

// nopTransport drops every message.
type nopTransport struct{}

func (nopTransport) Send(Message, types.ProcessID) bool { return false }

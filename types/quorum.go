package types

import "fmt"

type QuorumType uint8

const (
	EmptyQuorum   = QuorumType(0)
	PartialQuorum = QuorumType(1)
	FullQuorum    = QuorumType(2)
)

func (q QuorumType) String() string {
	switch q {
	case EmptyQuorum:
		return "EmptyQuorum"
	case PartialQuorum:
		return "PartialQuorum"
	case FullQuorum:
		return "FullQuorum"
	default:
		return "UnknownQuorum"
	}
}

// Quorum describes how far an accumulator got towards its threshold.
type Quorum struct {
	Type      QuorumType
	Size      int
	Threshold int
}

func NewQuorum(size, threshold int) Quorum {
	q := Quorum{Type: EmptyQuorum, Size: size, Threshold: threshold}
	switch {
	case size >= threshold:
		q.Type = FullQuorum
	case size > 0:
		q.Type = PartialQuorum
	}
	return q
}

func (q Quorum) IsEmpty() bool {
	return q.Type == EmptyQuorum
}

func (q Quorum) IsReached() bool {
	return q.Type == FullQuorum
}

func (q Quorum) String() string {
	return fmt.Sprintf("%v(%d/%d)", q.Type, q.Size, q.Threshold)
}

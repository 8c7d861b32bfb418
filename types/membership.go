package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Membership is the static cluster configuration seen by one process.
//
// The member list is kept sorted and deduplicated; Neighbors is every member
// but self. Quorum sizes are fixed for the lifetime of the process.
//
// NOTE: immutable after construction, safe to share.
type Membership struct {
	self            ProcessID
	members         []ProcessID
	neighbors       []ProcessID
	blockQuorumSize int
	storeQuorumSize int
}

// NewMembership validates and builds a Membership.
func NewMembership(self ProcessID, members []ProcessID, blockQuorumSize, storeQuorumSize int) (*Membership, error) {
	if len(members) == 0 {
		return nil, errors.Wrap(ErrInvalidMembership, "member set is empty")
	}

	sorted := make([]ProcessID, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	neighbors := make([]ProcessID, 0, len(sorted))
	hasSelf := false
	for i, pid := range sorted {
		if i > 0 && sorted[i-1] == pid {
			return nil, errors.Wrapf(ErrInvalidMembership, "duplicate member %d", pid)
		}
		if pid < 0 {
			return nil, errors.Wrapf(ErrInvalidMembership, "negative member id %d", pid)
		}
		if pid == self {
			hasSelf = true
			continue
		}
		neighbors = append(neighbors, pid)
	}
	if !hasSelf {
		return nil, errors.Wrapf(ErrInvalidMembership, "self %d is not a member", self)
	}

	if blockQuorumSize <= 0 || blockQuorumSize > len(sorted) {
		return nil, errors.Wrapf(ErrInvalidMembership, "block quorum %d out of range [1,%d]", blockQuorumSize, len(sorted))
	}
	if storeQuorumSize <= 0 || storeQuorumSize > len(sorted) {
		return nil, errors.Wrapf(ErrInvalidMembership, "store quorum %d out of range [1,%d]", storeQuorumSize, len(sorted))
	}

	return &Membership{
		self:            self,
		members:         sorted,
		neighbors:       neighbors,
		blockQuorumSize: blockQuorumSize,
		storeQuorumSize: storeQuorumSize,
	}, nil
}

func (m *Membership) Self() ProcessID {
	return m.self
}

// Members returns a copy of the member list, ascending.
func (m *Membership) Members() []ProcessID {
	res := make([]ProcessID, len(m.members))
	copy(res, m.members)
	return res
}

// Neighbors returns a copy of members minus self, ascending.
func (m *Membership) Neighbors() []ProcessID {
	res := make([]ProcessID, len(m.neighbors))
	copy(res, m.neighbors)
	return res
}

func (m *Membership) Size() int {
	return len(m.members)
}

func (m *Membership) HasMember(pid ProcessID) bool {
	idx := sort.Search(len(m.members), func(i int) bool { return m.members[i] >= pid })
	return idx < len(m.members) && m.members[idx] == pid
}

func (m *Membership) BlockQuorumSize() int {
	return m.blockQuorumSize
}

func (m *Membership) StoreQuorumSize() int {
	return m.storeQuorumSize
}

// IsMajorityQuorum reports whether both quorums exceed half the members, the
// condition under which any two quorums intersect.
func (m *Membership) IsMajorityQuorum() bool {
	half := len(m.members) / 2
	return m.blockQuorumSize > half && m.storeQuorumSize > half
}

func (m *Membership) String() string {
	ids := make([]string, len(m.members))
	for i, pid := range m.members {
		ids[i] = fmt.Sprintf("%d", pid)
	}
	return fmt.Sprintf("Membership{self:%d members:[%s] block:%d store:%d}",
		m.self, strings.Join(ids, ","), m.blockQuorumSize, m.storeQuorumSize)
}

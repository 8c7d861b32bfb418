package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ProcessID identifies a cluster member.
type ProcessID int64

func (pid ProcessID) Int64() int64 {
	return int64(pid)
}

// RootBranchID is known to every process from initialization.
var RootBranchID = BranchID{LT: LtimeZero, PID: 0}

// BranchID names a ballot. A process only mints ids tagged with its own pid,
// so every minted id is unique.
type BranchID struct {
	LT  LTime     `json:"lt"`
	PID ProcessID `json:"pid"`
}

func NewBranchID(lt LTime, pid ProcessID) BranchID {
	return BranchID{LT: lt, PID: pid}
}

// Next returns the branch pid starts after observing b. It is strictly
// greater than b whatever pid is.
func (b BranchID) Next(pid ProcessID) BranchID {
	return BranchID{LT: b.LT.Update(1), PID: pid}
}

// Compare orders by logical time, then by owner.
func (b BranchID) Compare(other BranchID) int {
	switch {
	case b.LT < other.LT:
		return -1
	case b.LT > other.LT:
		return 1
	case b.PID < other.PID:
		return -1
	case b.PID > other.PID:
		return 1
	}
	return 0
}

func (b BranchID) Less(other BranchID) bool {
	return b.Compare(other) < 0
}

func (b BranchID) Greater(other BranchID) bool {
	return b.Compare(other) > 0
}

func (b BranchID) Equal(other BranchID) bool {
	return b == other
}

func (b BranchID) ValidateBasic() error {
	if b.LT < 0 || b.PID < 0 {
		return errors.Wrapf(ErrNegativeField, "branch %v", b)
	}
	return nil
}

func (b BranchID) String() string {
	return fmt.Sprintf("(%d,%d)", b.LT, b.PID)
}

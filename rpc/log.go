package rpc

import (
	"branchlog/consensus"
	"branchlog/types"

	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

type ResultStatus struct {
	Status consensus.Status `json:"status"`
}

type ResultStartBranch struct {
	Branch types.BranchID `json:"branch"`
}

type ResultAppend struct {
	NodeID types.NodeID `json:"node_id"`
}

// ResultLog is either the tentative or the committed log of a process.
type ResultLog struct {
	Size    int64   `json:"size"`
	Entries []int64 `json:"entries"`
}

func Status(ctx *rpctypes.Context) (*ResultStatus, error) {
	return &ResultStatus{Status: env.Consensus.Status()}, nil
}

// StartBranch asks this process to compete for leadership.
func StartBranch(ctx *rpctypes.Context) (*ResultStartBranch, error) {
	branch := env.Consensus.StartBranch()
	env.Logger.Info("start branch requested over rpc", "branch", branch, "remote", ctx.RemoteAddr())
	return &ResultStartBranch{Branch: branch}, nil
}

// Append fails with consensus.ErrNotLeading on a process that is not leading.
func Append(ctx *rpctypes.Context, entry int64) (*ResultAppend, error) {
	nid, err := env.Consensus.Append(entry)
	if err != nil {
		return nil, err
	}
	return &ResultAppend{NodeID: nid}, nil
}

func Tentative(ctx *rpctypes.Context) (*ResultLog, error) {
	entries, err := env.Consensus.TentativeLog()
	if err != nil {
		return nil, err
	}
	return &ResultLog{Size: int64(len(entries)), Entries: entries}, nil
}

// Committed returns the committed entries stored at this process. Size is
// the committed length, which can exceed len(Entries).
func Committed(ctx *rpctypes.Context) (*ResultLog, error) {
	return &ResultLog{
		Size:    env.Consensus.SizeCommitted(),
		Entries: env.Consensus.CommittedLog(),
	}, nil
}

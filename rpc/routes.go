package rpc

import rpc "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpc.RPCFunc{
	// consensus API
	"status":       rpc.NewRPCFunc(Status, ""),
	"start_branch": rpc.NewRPCFunc(StartBranch, ""),
	"append":       rpc.NewRPCFunc(Append, "entry"),

	// log API
	"tentative": rpc.NewRPCFunc(Tentative, ""),
	"committed": rpc.NewRPCFunc(Committed, ""),

	"metrics": rpc.NewRPCFunc(JSONMetrics, "label"),
}

package consensus

//
//  leader L (StartBranch)                          follower F
//  ----------------------                          ----------
//  cb := (cb.lt+1, L)
//  promises[cb] = {L: msn}
//          +---- BlockReq(cb) ------------------------>  cb' := max(cb', cb)
//          <---- BlockRes(cb, cb', msn) ---------------+
//  block quorum of promises:
//    genesis := max promised node, rebranched to cb
//    store genesis, acks[genesis] = {L}
//          +---- StoreReq(cb, genesis) --------------->  store if cb == cb'
//          <---- StoreRes(cb, cb', msn.id) ------------+
//    acks for a msn.id L never sent out are dropped
//  Append(e):
//    node := msn.Extend(e), store, acks[node] = {L}
//          +---- StoreReq(cb, node) ------------------>  ...
//  store quorum of acks on nid and nid > mkc:
//    committed += nid
//          +---- KnownCommittedReq(cb, nid) ---------->  committed += nid if cb == cb'
//
//  Any response whose cb' is higher than the leader's cb makes the leader
//  abandon cb and move to cb'.

//ConsensusState - 单个进程的状态机，所有处理函数在mtx下串行执行
//	- State - 进程已知的分支、已存储的节点、已知提交的节点id，以及两个quorum累加器
//		- NodeStore - tm-db上按node id有序存储的节点
//	- Transport - 尽力而为的消息发送，生产环境由Reactor在tendermint p2p上实现
//	- EventSwitch - 放弃分支、分支启动、提交推进三类事件

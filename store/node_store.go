package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"branchlog/types"

	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
)

const (
	tableNode = "node/"

	// lt, pid, length
	nodeKeyFields = 3
)

var (
	ErrNodeNotFound = errors.New("node not found")
)

// NewMemNodeStore returns a NodeStore on an in-memory tm-db.
func NewMemNodeStore(logger log.Logger) *NodeStore {
	return NewNodeStoreWithDB(tmdb.NewMemDB(), logger)
}

func NewNodeStoreWithDB(db tmdb.DB, logger log.Logger) *NodeStore {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &NodeStore{db: db, logger: logger}
}

// NodeStore maps node ids to payloads. Keys are encoded so that byte order
// equals node id order, which makes the maximal stored node the last key.
// Grow-only: a node id is written once and never removed.
// NOTE: not goroutine-safe beyond what the underlying DB offers, the owner
// serialises access.
type NodeStore struct {
	db     tmdb.DB
	logger log.Logger
	size   int
}

func (ns *NodeStore) SetLogger(logger log.Logger) {
	ns.logger = logger
}

// SaveNode stores n if its id is new. It returns whether anything was written.
// Equal ids must carry equal payloads; a conflicting payload is kept out and
// reported.
func (ns *NodeStore) SaveNode(n types.Node) (bool, error) {
	key := genNodeKey(n.ID)
	old, err := ns.db.Get(key)
	if err != nil {
		return false, errors.Wrapf(err, "read node %v", n.ID)
	}
	if old != nil {
		stored, err := decodePayload(old)
		if err != nil {
			return false, err
		}
		if !samePayload(stored, n.Payload) {
			ns.logger.Error("conflicting payload for stored node id", "nid", n.ID, "stored", stored, "received", n.Payload)
		}
		return false, nil
	}

	value, err := tmjson.Marshal(n.Payload)
	if err != nil {
		return false, errors.Wrapf(err, "encode payload of %v", n.ID)
	}
	if err := ns.db.Set(key, value); err != nil {
		return false, errors.Wrapf(err, "write node %v", n.ID)
	}
	ns.size++
	return true, nil
}

func (ns *NodeStore) HasNode(id types.NodeID) (bool, error) {
	return ns.db.Has(genNodeKey(id))
}

func (ns *NodeStore) GetNode(id types.NodeID) (types.Node, error) {
	value, err := ns.db.Get(genNodeKey(id))
	if err != nil {
		return types.Node{}, errors.Wrapf(err, "read node %v", id)
	}
	if value == nil {
		return types.Node{}, errors.Wrapf(ErrNodeNotFound, "node %v", id)
	}
	payload, err := decodePayload(value)
	if err != nil {
		return types.Node{}, err
	}
	return types.Node{ID: id, Payload: payload}, nil
}

// MaxNode returns the stored node with the greatest node id.
func (ns *NodeStore) MaxNode() (types.Node, error) {
	start, end := tablePrefixRange()
	ite, err := ns.db.ReverseIterator(start, end)
	if err != nil {
		return types.Node{}, errors.Wrap(err, "open reverse iterator")
	}
	defer ite.Close()

	if !ite.Valid() {
		return types.Node{}, errors.Wrap(ErrNodeNotFound, "store is empty")
	}
	id, err := parseNodeKey(ite.Key())
	if err != nil {
		return types.Node{}, err
	}
	payload, err := decodePayload(ite.Value())
	if err != nil {
		return types.Node{}, err
	}
	return types.Node{ID: id, Payload: payload}, nil
}

// NodeIDs lists every stored node id, ascending.
func (ns *NodeStore) NodeIDs() ([]types.NodeID, error) {
	start, end := tablePrefixRange()
	ite, err := ns.db.Iterator(start, end)
	if err != nil {
		return nil, errors.Wrap(err, "open iterator")
	}
	defer ite.Close()

	res := make([]types.NodeID, 0, ns.size)
	for ; ite.Valid(); ite.Next() {
		id, err := parseNodeKey(ite.Key())
		if err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, ite.Error()
}

func (ns *NodeStore) Size() int {
	return ns.size
}

func (ns *NodeStore) Close() error {
	return ns.db.Close()
}

// genNodeKey encodes id as tableNode followed by three big-endian words with
// the sign bit flipped, so bytes.Compare agrees with NodeID.Compare.
func genNodeKey(id types.NodeID) []byte {
	buffer := new(bytes.Buffer)
	buffer.WriteString(tableNode)
	for _, v := range []int64{id.Branch.LT.Int64(), id.Branch.PID.Int64(), id.Length} {
		var word [8]byte
		binary.BigEndian.PutUint64(word[:], uint64(v)^(1<<63))
		buffer.Write(word[:])
	}
	return buffer.Bytes()
}

func parseNodeKey(key []byte) (types.NodeID, error) {
	if len(key) != len(tableNode)+8*nodeKeyFields || !bytes.HasPrefix(key, []byte(tableNode)) {
		return types.NodeID{}, fmt.Errorf("malformed node key %X", key)
	}
	body := key[len(tableNode):]
	var words [nodeKeyFields]int64
	for i := range words {
		words[i] = int64(binary.BigEndian.Uint64(body[8*i:8*i+8]) ^ (1 << 63))
	}
	return types.NewNodeID(types.NewBranchID(types.LTime(words[0]), types.ProcessID(words[1])), words[2]), nil
}

// tablePrefixRange covers every key starting with tableNode.
func tablePrefixRange() (start, end []byte) {
	start = []byte(tableNode)
	end = make([]byte, len(start))
	copy(end, start)
	end[len(end)-1]++
	return start, end
}

func decodePayload(value []byte) ([]int64, error) {
	payload := []int64{}
	if err := tmjson.Unmarshal(value, &payload); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	if payload == nil {
		payload = []int64{}
	}
	return payload, nil
}

func samePayload(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

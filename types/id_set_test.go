package types

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBranchSet(t *testing.T) {
	bs := NewBranchSet(RootBranchID)
	assert.Equal(t, RootBranchID, bs.Max())
	assert.Equal(t, 1, bs.Size())

	assert.True(t, bs.Add(NewBranchID(1, 2)))
	assert.True(t, bs.Add(NewBranchID(1, 1)))
	assert.False(t, bs.Add(NewBranchID(1, 2)), "duplicate add")

	assert.Equal(t, NewBranchID(1, 2), bs.Max())
	assert.Equal(t, []BranchID{RootBranchID, NewBranchID(1, 1), NewBranchID(1, 2)}, bs.Branches())
	assert.True(t, bs.Has(NewBranchID(1, 1)))
	assert.False(t, bs.Has(NewBranchID(2, 1)))
}

func TestEmptySetsDefaultToRoot(t *testing.T) {
	assert.Equal(t, RootBranchID, NewBranchSet().Max())
	assert.Equal(t, RootNodeID, NewNodeIDSet().Max())
}

// 随机插入，Max总是单调不减
func TestNodeIDSetMaxMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	ns := NewNodeIDSet(RootNodeID)
	prev := ns.Max()

	for i := 0; i < 500; i++ {
		id := NewNodeID(NewBranchID(LTime(r.Intn(5)), ProcessID(r.Intn(3))), int64(r.Intn(10)))
		size := ns.Size()
		added := ns.Add(id)
		if added {
			assert.Equal(t, size+1, ns.Size())
		} else {
			assert.Equal(t, size, ns.Size())
		}
		cur := ns.Max()
		assert.False(t, cur.Less(prev), "max decreased from %v to %v", prev, cur)
		prev = cur
	}

	ids := ns.NodeIDs()
	for i := 1; i < len(ids); i++ {
		assert.True(t, ids[i-1].Less(ids[i]))
	}
}

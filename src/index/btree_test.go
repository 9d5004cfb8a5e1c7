package index

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"simpledb/src/catalog"
	"simpledb/src/common"
	"simpledb/src/disk"
)

func newTestTree(t *testing.T, leafMax, internalMax int32) (*BPlusTree, func()) {
	fileName := "tmp-btree-test"
	dm := disk.NewDiskManager(fileName)
	bpm := disk.NewBufferPoolManager(32, dm, disk.NewLRUKReplacer(32, 2))
	cat := catalog.New(bpm, true)
	tree := NewBPlusTree(bpm, cat, "test_index", leafMax, internalMax)
	return tree, func() {
		dm.Close()
		os.Remove(fileName)
	}
}

func rid(k int64) common.RID { return common.RID{PageID: common.PageID(k), SlotNum: 0} }

func TestBPlusTree_EmptyTreeHasNoValue(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	require.True(t, tree.IsEmpty())
	_, ok := tree.GetValue(42)
	require.False(t, ok)
}

func TestBPlusTree_InsertAndGetValue(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	for _, k := range []int64{10, 20, 5, 15} {
		require.True(t, tree.Insert(k, rid(k)))
	}
	require.False(t, tree.IsEmpty())
	for _, k := range []int64{10, 20, 5, 15} {
		v, ok := tree.GetValue(k)
		require.True(t, ok)
		require.Equal(t, k, int64(v.PageID))
	}
	_, ok := tree.GetValue(999)
	require.False(t, ok)
}

func TestBPlusTree_InsertRejectsDuplicate(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	require.True(t, tree.Insert(1, rid(1)))
	require.False(t, tree.Insert(1, rid(2)))
}

func TestBPlusTree_SplitsOnLeafOverflow(t *testing.T) {
	// leafMax=4 forces a split as soon as a leaf holds 4 keys.
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	keys := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for _, k := range keys {
		require.True(t, tree.Insert(k, rid(k)))
	}
	require.False(t, tree.IsEmpty())
	for _, k := range keys {
		v, ok := tree.GetValue(k)
		require.True(t, ok)
		require.Equal(t, k, int64(v.PageID))
	}
}

func TestBPlusTree_ScaleForcesMultipleLevels(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	const n = 200
	for i := int64(0); i < n; i++ {
		require.True(t, tree.Insert(i, rid(i)))
	}
	for i := int64(0); i < n; i++ {
		v, ok := tree.GetValue(i)
		require.True(t, ok)
		require.Equal(t, i, int64(v.PageID))
	}
}

func TestBPlusTree_RemoveLeafEntry(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	for _, k := range []int64{1, 2, 3} {
		tree.Insert(k, rid(k))
	}
	tree.Remove(2)
	_, ok := tree.GetValue(2)
	require.False(t, ok)
	v, ok := tree.GetValue(1)
	require.True(t, ok)
	require.Equal(t, int64(1), int64(v.PageID))
}

func TestBPlusTree_RemoveAllEmptiesRoot(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	for _, k := range []int64{1, 2, 3} {
		tree.Insert(k, rid(k))
	}
	for _, k := range []int64{1, 2, 3} {
		tree.Remove(k)
	}
	require.True(t, tree.IsEmpty())
}

func TestBPlusTree_InsertRemoveInterleavedSurvives(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	const n = 100
	for i := int64(0); i < n; i++ {
		require.True(t, tree.Insert(i, rid(i)))
	}
	for i := int64(0); i < n; i += 2 {
		tree.Remove(i)
	}
	for i := int64(0); i < n; i++ {
		v, ok := tree.GetValue(i)
		if i%2 == 0 {
			require.False(t, ok, "key %d should have been removed", i)
		} else {
			require.True(t, ok, "key %d should still be present", i)
			require.Equal(t, i, int64(v.PageID))
		}
	}
}

func TestBPlusTree_IteratorScansAscending(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	keys := []int64{5, 3, 8, 1, 9, 2, 7, 4, 6}
	for _, k := range keys {
		tree.Insert(k, rid(k))
	}

	var seen []int64
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		seen = append(seen, it.Key())
	}
	require.Len(t, seen, len(keys))
	for i := 1; i < len(seen); i++ {
		require.Less(t, seen[i-1], seen[i])
	}
	require.Equal(t, int64(1), seen[0])
	require.Equal(t, int64(9), seen[len(seen)-1])
}

func TestBPlusTree_IteratorBeginAt(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	for _, k := range []int64{1, 2, 3, 4, 5, 6, 7, 8} {
		tree.Insert(k, rid(k))
	}

	it := tree.BeginAt(4)
	require.False(t, it.IsEnd())
	require.Equal(t, int64(4), it.Key())

	var seen []int64
	for ; !it.IsEnd(); it.Next() {
		seen = append(seen, it.Key())
	}
	require.Equal(t, []int64{4, 5, 6, 7, 8}, seen)
}

func TestBPlusTree_IteratorEmptyTree(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4)
	defer cleanup()

	it := tree.Begin()
	require.True(t, it.IsEnd())
}

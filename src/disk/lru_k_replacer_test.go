package disk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"simpledb/src/common"
)

func setAllEvictable(r *LRUKReplacer, evictable bool, frames ...common.FrameID) {
	for _, f := range frames {
		r.SetEvictable(f, evictable)
	}
}

func TestLRUKReplacer_HistoryBeforeCache(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	for _, f := range []common.FrameID{1, 2, 3, 4, 1, 2, 3, 4, 5, 6} {
		r.RecordAccess(f)
	}
	setAllEvictable(r, true, 1, 2, 3, 4, 5, 6)
	require.Equal(t, 6, r.Size())

	// 5 and 6 have backward-k-distance +inf (history list); 5 was
	// timestamped first, so it is evicted before 6, and both are
	// evicted before any frame that reached k=2 accesses.
	frameID, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, common.FrameID(5), frameID)

	frameID, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, common.FrameID(6), frameID)
}

func TestLRUKReplacer_CacheListIsLRUOrdered(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	for _, f := range []common.FrameID{1, 2, 1, 2, 3, 3} {
		r.RecordAccess(f)
	}
	// 1 and 2 reached k=2 first (in that order), 3 reached k=2 last,
	// so cache MRU-to-LRU order is [3, 2, 1]; least recently used is 1.
	setAllEvictable(r, true, 1, 2, 3)
	frameID, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, common.FrameID(1), frameID)
}

func TestLRUKReplacer_RepeatedAccessMovesToFront(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	for _, f := range []common.FrameID{1, 2, 1, 2, 1, 1} { // 1 reaches k then gets re-accessed twice more
		r.RecordAccess(f)
	}
	setAllEvictable(r, true, 1, 2)
	// 2 reached k after 1, but 2 is now the least recently used because 1
	// was re-accessed after it.
	frameID, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, common.FrameID(2), frameID)
}

func TestLRUKReplacer_NonEvictableNeverEvicted(t *testing.T) {
	r := NewLRUKReplacer(4, 1)
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.SetEvictable(1, false)
	r.SetEvictable(2, true)

	require.Equal(t, 1, r.Size())
	frameID, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, common.FrameID(2), frameID)

	_, ok = r.Evict()
	require.False(t, ok)
}

func TestLRUKReplacer_SetEvictableIdempotent(t *testing.T) {
	r := NewLRUKReplacer(4, 1)
	r.RecordAccess(1)
	r.SetEvictable(1, true)
	r.SetEvictable(1, true)
	require.Equal(t, 1, r.Size())
	r.SetEvictable(1, false)
	r.SetEvictable(1, false)
	require.Equal(t, 0, r.Size())
}

func TestLRUKReplacer_Remove(t *testing.T) {
	r := NewLRUKReplacer(4, 1)
	r.RecordAccess(1)
	r.SetEvictable(1, true)
	r.Remove(1)
	require.Equal(t, 0, r.Size())

	// Removing an untracked frame is a no-op.
	r.Remove(2)
}

func TestLRUKReplacer_EvictEmpty(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	_, ok := r.Evict()
	require.False(t, ok)
}

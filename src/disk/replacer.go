package disk

import "simpledb/src/common"

// Replacer chooses a victim frame for eviction among frames marked
// evictable. Implementations must be safe for concurrent use.
type Replacer interface {
	// RecordAccess notes that frameID was just accessed.
	RecordAccess(frameID common.FrameID)
	// SetEvictable flips frameID's evictability; idempotent.
	SetEvictable(frameID common.FrameID, evictable bool)
	// Evict picks and removes a victim frame under the replacement policy.
	Evict() (common.FrameID, bool)
	// Remove drops frameID's access history. Fatal if frameID is tracked
	// but not evictable.
	Remove(frameID common.FrameID)
	// Size returns the number of evictable frames currently tracked.
	Size() int
}

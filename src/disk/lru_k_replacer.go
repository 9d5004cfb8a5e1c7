package disk

import (
	"container/list"
	"sync"

	log "github.com/sirupsen/logrus"

	"simpledb/src/common"
)

// frameState is the per-frame bookkeeping the replacer keeps: how many
// times RecordAccess has fired, whether the frame may currently be
// evicted, and which list (if any) currently holds it.
type frameState struct {
	accessCount int
	evictable   bool
	elem        *list.Element
	inHistory   bool
}

// LRUKReplacer implements backward-k-distance eviction (spec.md Section
// 4.2): frames with fewer than K accesses live in a FIFO history list and
// are always evicted before any frame that has reached K accesses; frames
// with K or more accesses live in an MRU-ordered cache list and are
// evicted least-recently-used first.
type LRUKReplacer struct {
	mu sync.Mutex

	k             int
	replacerSize  int
	evictableSize int

	historyList *list.List // front = oldest first access (FIFO)
	cacheList   *list.List // front = most recently used

	frames map[common.FrameID]*frameState
}

// NewLRUKReplacer builds a replacer for a pool of numFrames frames with
// backward-distance window k.
func NewLRUKReplacer(numFrames int, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:            k,
		replacerSize: numFrames,
		historyList:  list.New(),
		cacheList:    list.New(),
		frames:       make(map[common.FrameID]*frameState),
	}
}

func (r *LRUKReplacer) checkFrameID(frameID common.FrameID) {
	if int(frameID) >= r.replacerSize || frameID < 0 {
		log.Fatalf("Invalid frame id %d (replacer size %d).", frameID, r.replacerSize)
	}
}

// RecordAccess logs one access to frameID at the current (logical) time.
func (r *LRUKReplacer) RecordAccess(frameID common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrameID(frameID)

	st, ok := r.frames[frameID]
	if !ok {
		st = &frameState{}
		r.frames[frameID] = st
	}
	st.accessCount++

	switch {
	case st.accessCount == r.k:
		if st.inHistory && st.elem != nil {
			r.historyList.Remove(st.elem)
		}
		st.inHistory = false
		st.elem = r.cacheList.PushFront(frameID)
	case st.accessCount > r.k:
		if !st.inHistory && st.elem != nil {
			r.cacheList.Remove(st.elem)
		}
		st.elem = r.cacheList.PushFront(frameID)
		st.inHistory = false
	default: // accessCount < k
		if st.elem == nil {
			st.elem = r.historyList.PushBack(frameID)
			st.inHistory = true
		}
	}
}

// SetEvictable flips frameID's evictability. Idempotent: calling it with
// the frame's current state is a no-op.
func (r *LRUKReplacer) SetEvictable(frameID common.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrameID(frameID)

	st, ok := r.frames[frameID]
	if !ok {
		return
	}
	if st.evictable == evictable {
		return
	}
	st.evictable = evictable
	if evictable {
		r.evictableSize++
	} else {
		r.evictableSize--
	}
}

// Evict selects the frame with the largest backward-k-distance among
// evictable frames: the oldest entry in the history list if any is
// evictable there, else the least-recently-used entry in the cache list.
func (r *LRUKReplacer) Evict() (common.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evictableSize == 0 {
		return 0, false
	}
	for e := r.historyList.Front(); e != nil; e = e.Next() {
		frameID := e.Value.(common.FrameID)
		if r.frames[frameID].evictable {
			r.historyList.Remove(e)
			r.clearFrame(frameID)
			return frameID, true
		}
	}
	for e := r.cacheList.Back(); e != nil; e = e.Prev() {
		frameID := e.Value.(common.FrameID)
		if r.frames[frameID].evictable {
			r.cacheList.Remove(e)
			r.clearFrame(frameID)
			return frameID, true
		}
	}
	return 0, false
}

func (r *LRUKReplacer) clearFrame(frameID common.FrameID) {
	delete(r.frames, frameID)
	r.evictableSize--
}

// Remove drops frameID's access history entirely. It is a fatal error to
// call Remove on a frame that is tracked but not evictable; removing an
// untracked frame is a no-op.
func (r *LRUKReplacer) Remove(frameID common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrameID(frameID)

	st, ok := r.frames[frameID]
	if !ok {
		return
	}
	if !st.evictable {
		log.Fatalf("Remove called on non-evictable tracked frame %d.", frameID)
	}
	if st.inHistory {
		r.historyList.Remove(st.elem)
	} else {
		r.cacheList.Remove(st.elem)
	}
	r.clearFrame(frameID)
}

// Size returns the number of currently evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableSize
}

package disk

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/ncw/directio"
	log "github.com/sirupsen/logrus"

	"simpledb/src/common"
	"simpledb/src/hash"
)

const pageTableBucketSize = 32

func pageIDHash(id common.PageID) uint64 { return uint64(id) }

// BufferPoolManager owns a fixed array of frames, a free list, a page
// table (page id -> frame id, implemented as an ExtendibleHashTable per
// spec.md Section 3), and an LRU-K replacer. All operations here take a
// single pool-wide mutex for their duration; frame content latches belong
// to clients between Fetch and Unpin (spec.md Section 5).
type BufferPoolManager struct {
	size        int
	pages       []Page
	replacer    Replacer
	freeList    list.List
	pageTable   *hash.ExtendibleHashTable[common.PageID, common.FrameID]
	diskManager *DiskManager
	mu          sync.Mutex
}

// NewBufferPoolManager builds a pool of size frames backed by diskManager,
// using replacer to pick eviction victims.
func NewBufferPoolManager(size int, diskManager *DiskManager, replacer Replacer) *BufferPoolManager {
	bpm := &BufferPoolManager{
		size:        size,
		pages:       make([]Page, size),
		replacer:    replacer,
		pageTable:   hash.New[common.PageID, common.FrameID](pageTableBucketSize, pageIDHash),
		diskManager: diskManager,
	}
	for i := 0; i < size; i++ {
		bpm.pages[i] = Page{
			data:   directio.AlignedBlock(PageSize),
			pageID: common.InvalidPageID,
		}
		bpm.freeList.PushBack(common.FrameID(i))
	}
	return bpm
}

// NewPage mints a fresh page id, pins it into a frame and returns it.
// Returns nil if the pool has no frame to offer (free list empty and the
// replacer has no evictable victim).
func (bpm *BufferPoolManager) NewPage() (*Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.acquireFrame()
	if !ok {
		log.Warnf("Buffer pool is full.")
		return nil, fmt.Errorf("buffer pool is full")
	}
	page := &bpm.pages[frameID]
	newPageID, data := bpm.diskManager.AllocatePage()
	copy(page.data, data)
	page.pageID = newPageID
	page.pinCount = 1
	page.isDirty = false

	bpm.pageTable.Insert(newPageID, frameID)
	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	return page, nil
}

// FetchPage returns pageID's frame, pinning it — fetching from disk and
// installing it in the pool first if it is not already resident. Returns
// nil if no frame is available.
func (bpm *BufferPoolManager) FetchPage(pageID common.PageID) (*Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frameID, ok := bpm.pageTable.Find(pageID); ok {
		page := &bpm.pages[frameID]
		page.pinCount++
		bpm.replacer.RecordAccess(frameID)
		bpm.replacer.SetEvictable(frameID, false)
		return page, nil
	}

	frameID, ok := bpm.acquireFrame()
	if !ok {
		log.Warnf("Buffer pool is full.")
		return nil, fmt.Errorf("buffer pool is full")
	}
	page := &bpm.pages[frameID]
	data, err := bpm.diskManager.ReadPage(pageID)
	if err != nil {
		log.WithError(err).Warnf("Cannot read page %d from disk.", pageID)
		bpm.freeList.PushBack(frameID)
		return nil, err
	}
	copy(page.data, data)
	page.pageID = pageID
	page.pinCount = 1
	page.isDirty = false

	bpm.pageTable.Insert(pageID, frameID)
	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	return page, nil
}

// UnpinPage releases one pin on pageID. is_dirty is OR'ed into the frame's
// sticky dirty flag — it is never cleared here. Returns false if the page
// is not resident or already fully unpinned.
func (bpm *BufferPoolManager) UnpinPage(pageID common.PageID, isDirty bool) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		log.Warnf("Trying to unpin page %d, but the page is not in the buffer.", pageID)
		return false
	}
	page := &bpm.pages[frameID]
	if page.pinCount == 0 {
		log.Warnf("Trying to unpin page %d, but its pin count is already zero.", pageID)
		return false
	}
	page.isDirty = page.isDirty || isDirty
	page.pinCount--
	if page.pinCount == 0 {
		bpm.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes pageID's frame to disk unconditionally and clears its
// dirty flag. Returns false if the page is not resident.
func (bpm *BufferPoolManager) FlushPage(pageID common.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		return false
	}
	page := &bpm.pages[frameID]
	if err := bpm.diskManager.WritePage(page.pageID, page.data); err != nil {
		log.WithError(err).Fatalf("Cannot flush page %d.", page.pageID)
	}
	page.isDirty = false
	return true
}

// FlushAllPages flushes every resident page. Frames still holding
// InvalidPageID (i.e. unused frames) are never touched.
func (bpm *BufferPoolManager) FlushAllPages() {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	for i := range bpm.pages {
		page := &bpm.pages[i]
		if page.pageID == common.InvalidPageID {
			continue
		}
		if err := bpm.diskManager.WritePage(page.pageID, page.data); err != nil {
			log.WithError(err).Fatalf("Cannot flush page %d.", page.pageID)
		}
		page.isDirty = false
	}
}

// DeletePage removes pageID from the pool, returning its frame to the free
// list and the page id to the disk manager's free-page list. Returns
// false (no state change) if the page is resident and still pinned.
// Vacuously true if the page was never resident.
func (bpm *BufferPoolManager) DeletePage(pageID common.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable.Find(pageID)
	if !ok {
		return true
	}
	page := &bpm.pages[frameID]
	if page.pinCount > 0 {
		return false
	}
	bpm.pageTable.Remove(pageID)
	bpm.replacer.Remove(frameID)
	page.reset()
	bpm.freeList.PushBack(frameID)
	bpm.diskManager.DeallocatePage(pageID)
	return true
}

// acquireFrame implements the shared "get a free frame" helper from
// spec.md Section 4.3: pop the free list, else ask the replacer to evict,
// writing back the victim if it is dirty. Caller holds bpm.mu.
func (bpm *BufferPoolManager) acquireFrame() (common.FrameID, bool) {
	if bpm.freeList.Len() > 0 {
		elem := bpm.freeList.Front()
		bpm.freeList.Remove(elem)
		return elem.Value.(common.FrameID), true
	}

	frameID, ok := bpm.replacer.Evict()
	if !ok {
		return 0, false
	}
	page := &bpm.pages[frameID]
	if page.isDirty {
		if err := bpm.diskManager.WritePage(page.pageID, page.data); err != nil {
			log.WithError(err).Fatalf("Cannot write page %d back.", page.pageID)
		}
		page.isDirty = false
	}
	bpm.pageTable.Remove(page.pageID)
	page.reset()
	return frameID, true
}

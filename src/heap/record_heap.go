package heap

import (
	log "github.com/sirupsen/logrus"

	"simpledb/src/common"
	"simpledb/src/disk"
)

// RecordHeap is a page-oriented heap file: an append-mostly collection
// of variable-length records addressed by RID, split across RecordPages
// and tracked by a header page of free-space hints.
//
// Unlike the teacher's TableHeap, the header page id is not assumed to
// be a fixed well-known constant: a heap can be created after other
// structures (an index's catalog, say) have already claimed page ids, so
// NewRecordHeap returns the id it was actually given, and OpenRecordHeap
// attaches to one created earlier.
type RecordHeap struct {
	bpm          *disk.BufferPoolManager
	headerPageID common.PageID
}

// NewRecordHeap allocates a fresh, empty heap and returns it together
// with the header page id the caller must persist to reopen it later.
func NewRecordHeap(bpm *disk.BufferPoolManager) (*RecordHeap, common.PageID) {
	page, err := bpm.NewPage()
	if err != nil {
		log.WithError(err).Fatalf("Cannot create record heap header page.")
	}
	header := createHeapHeader(page.Data())
	header.init()
	id := page.PageID()
	bpm.UnpinPage(id, true)
	return &RecordHeap{bpm: bpm, headerPageID: id}, id
}

// OpenRecordHeap attaches to a heap whose header page was previously
// created at headerPageID.
func OpenRecordHeap(bpm *disk.BufferPoolManager, headerPageID common.PageID) *RecordHeap {
	return &RecordHeap{bpm: bpm, headerPageID: headerPageID}
}

func (rh *RecordHeap) getHeaderPage(exclusive bool) *disk.Page {
	page, err := rh.bpm.FetchPage(rh.headerPageID)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch record heap header page.")
	}
	if exclusive {
		page.Lock()
	} else {
		page.RLock()
	}
	return page
}

func (rh *RecordHeap) releaseHeaderPage(page *disk.Page, exclusive bool) {
	if exclusive {
		page.Unlock()
	} else {
		page.RUnlock()
	}
	rh.bpm.UnpinPage(rh.headerPageID, exclusive)
}

// Insert stores record in some page with room for it, allocating a new
// page if every existing one is full, and returns its RID.
func (rh *RecordHeap) Insert(record []byte) common.RID {
	for {
		if rid, ok := rh.tryInsertExisting(record); ok {
			return rid
		}
		if rid, ok := rh.insertIntoNewPage(record); ok {
			return rid
		}
	}
}

func (rh *RecordHeap) tryInsertExisting(record []byte) (common.RID, bool) {
	headerPage := rh.getHeaderPage(false)
	header := createHeapHeader(headerPage.Data())
	var candidate common.PageID
	found := false
	for _, slot := range header.slots() {
		if int(slot.leftSpace) >= len(record) {
			candidate = slot.pageID
			found = true
			break
		}
	}
	rh.releaseHeaderPage(headerPage, false)
	if !found {
		return common.RID{}, false
	}
	return rh.insertIntoPage(record, candidate)
}

func (rh *RecordHeap) insertIntoPage(record []byte, pageID common.PageID) (common.RID, bool) {
	page, err := rh.bpm.FetchPage(pageID)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch record page %d.", pageID)
	}
	page.Lock()
	rp := createRecordPage(page.Data())
	rid, ok := rp.Insert(record)
	if !ok {
		page.Unlock()
		rh.bpm.UnpinPage(pageID, false)
		return common.RID{}, false
	}
	headerPage := rh.getHeaderPage(true)
	header := createHeapHeader(headerPage.Data())
	header.set(pageSlot{pageID: pageID, leftSpace: rp.getFreeSpaceForInsert()})
	rh.releaseHeaderPage(headerPage, true)

	page.Unlock()
	rh.bpm.UnpinPage(pageID, true)
	return rid, true
}

func (rh *RecordHeap) insertIntoNewPage(record []byte) (common.RID, bool) {
	page, err := rh.bpm.NewPage()
	if err != nil {
		log.WithError(err).Fatalf("Cannot allocate new record page.")
	}
	page.Lock()
	rp := createRecordPage(page.Data())
	rp.init(page.PageID(), int32(len(page.Data())))
	rid, ok := rp.Insert(record)
	if !ok {
		// A record larger than a whole empty page; nothing more to try.
		page.Unlock()
		rh.bpm.UnpinPage(page.PageID(), false)
		return common.RID{}, false
	}

	headerPage := rh.getHeaderPage(true)
	header := createHeapHeader(headerPage.Data())
	header.push(pageSlot{pageID: page.PageID(), leftSpace: rp.getFreeSpaceForInsert()})
	rh.releaseHeaderPage(headerPage, true)

	page.Unlock()
	rh.bpm.UnpinPage(page.PageID(), true)
	return rid, true
}

// Delete tombstones rid's record. Returns false if the record or its
// page is unknown to this heap.
func (rh *RecordHeap) Delete(rid common.RID) bool {
	headerPage := rh.getHeaderPage(false)
	header := createHeapHeader(headerPage.Data())
	_, ok := header.get(rid.PageID)
	rh.releaseHeaderPage(headerPage, false)
	if !ok {
		return false
	}

	page, err := rh.bpm.FetchPage(rid.PageID)
	if err != nil {
		log.WithError(err).Fatalf("Record heap page %d vanished.", rid.PageID)
	}
	page.Lock()
	rp := createRecordPage(page.Data())
	deleted := rp.Delete(rid)
	freeSpace := rp.getFreeSpaceForInsert()
	if !deleted {
		page.Unlock()
		rh.bpm.UnpinPage(rid.PageID, false)
		return false
	}

	headerPage = rh.getHeaderPage(true)
	header = createHeapHeader(headerPage.Data())
	header.set(pageSlot{pageID: rid.PageID, leftSpace: freeSpace})
	rh.releaseHeaderPage(headerPage, true)

	page.Unlock()
	rh.bpm.UnpinPage(rid.PageID, true)
	return true
}

// Get returns a copy of the record at rid, or false if it is absent.
func (rh *RecordHeap) Get(rid common.RID) ([]byte, bool) {
	headerPage := rh.getHeaderPage(false)
	header := createHeapHeader(headerPage.Data())
	_, ok := header.get(rid.PageID)
	rh.releaseHeaderPage(headerPage, false)
	if !ok {
		return nil, false
	}

	page, err := rh.bpm.FetchPage(rid.PageID)
	if err != nil {
		log.WithError(err).Fatalf("Record heap page %d vanished.", rid.PageID)
	}
	page.RLock()
	rp := createRecordPage(page.Data())
	data, found := rp.Get(rid)
	page.RUnlock()
	rh.bpm.UnpinPage(rid.PageID, false)
	return data, found
}

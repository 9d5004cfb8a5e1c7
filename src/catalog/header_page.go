// Package catalog implements the "HeaderPage" collaborator described in
// spec.md Section 6: a distinguished page that persists a directory of
// (index id -> root page id) entries. Index ids are minted per process by
// RegisterIndex and the name -> id map is held in memory only, so after a
// restart a name gets a fresh id and the root recorded earlier under that
// name is not found through it.
package catalog

import (
	"math"
	"unsafe"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"simpledb/src/common"
	"simpledb/src/disk"
)

// indexHeaderPageID is the fixed, well-known page holding the index
// directory — analogous to the teacher's heapFileHeaderPageId.
const indexHeaderPageID = common.PageID(1)

// slot is one fixed-size directory entry: a stable index id plus its
// current root page id. Names are kept in-memory only (see DESIGN.md).
type slot struct {
	indexID  uuid.UUID
	rootPage common.PageID
	inUse    bool
}

// directoryHeader is cast directly over the header page's raw bytes,
// following the teacher's heap_header.go flexible-array-in-page pattern.
type directoryHeader struct {
	numSlots int32
	ptr      struct{}
}

func createDirectoryHeader(data []byte) *directoryHeader {
	return (*directoryHeader)(unsafe.Pointer(&data[0]))
}

func (h *directoryHeader) init() {
	h.numSlots = 0
}

func (h *directoryHeader) slots() []slot {
	return (*(*[math.MaxInt32]slot)(unsafe.Pointer(&h.ptr)))[:int(h.numSlots)]
}

func (h *directoryHeader) find(id uuid.UUID) (int, bool) {
	for i, s := range h.slots() {
		if s.inUse && s.indexID == id {
			return i, true
		}
	}
	return 0, false
}

func (h *directoryHeader) upsert(id uuid.UUID, root common.PageID) {
	slots := h.slots()
	for i := range slots {
		if slots[i].inUse && slots[i].indexID == id {
			slots[i].rootPage = root
			return
		}
	}
	h.numSlots++
	slots = h.slots()
	slots[len(slots)-1] = slot{indexID: id, rootPage: root, inUse: true}
}

// Catalog owns the index-directory header page and a name -> id lookup
// kept purely in memory (rebuilding a name->id mapping after a crash is a
// schema-manager concern outside this module's scope).
type Catalog struct {
	bpm   *disk.BufferPoolManager
	names map[string]uuid.UUID
}

// New creates (or attaches to) the catalog's header page.
// isNew must be true the first time a fresh database file is opened.
func New(bpm *disk.BufferPoolManager, isNew bool) *Catalog {
	c := &Catalog{bpm: bpm, names: make(map[string]uuid.UUID)}
	if isNew {
		page, err := bpm.NewPage()
		if err != nil {
			log.WithError(err).Fatalf("Cannot create catalog header page.")
		}
		if page.PageID() != indexHeaderPageID {
			log.Fatalf("Unexpected: catalog header page id is not %d.", indexHeaderPageID)
		}
		hdr := createDirectoryHeader(page.Data())
		hdr.init()
		bpm.UnpinPage(page.PageID(), true)
	}
	return c
}

// RegisterIndex assigns indexName a stable id (idempotent across process
// lifetime only — not persisted) and returns it.
func (c *Catalog) RegisterIndex(indexName string) uuid.UUID {
	if id, ok := c.names[indexName]; ok {
		return id
	}
	id := uuid.New()
	c.names[indexName] = id
	return id
}

// GetRootPageID returns the persisted root page id for an index, or
// common.InvalidPageID if none has been recorded yet.
func (c *Catalog) GetRootPageID(indexID uuid.UUID) common.PageID {
	page, err := c.bpm.FetchPage(indexHeaderPageID)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch catalog header page.")
	}
	page.RLock()
	defer page.RUnlock()
	hdr := createDirectoryHeader(page.Data())
	idx, ok := hdr.find(indexID)
	root := common.InvalidPageID
	if ok {
		root = hdr.slots()[idx].rootPage
	}
	c.bpm.UnpinPage(indexHeaderPageID, false)
	return root
}

// UpdateRootPageID persists indexID's new root page id. This is called
// after any root change (new tree, split of the root, root collapse).
func (c *Catalog) UpdateRootPageID(indexID uuid.UUID, root common.PageID) {
	page, err := c.bpm.FetchPage(indexHeaderPageID)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch catalog header page.")
	}
	page.Lock()
	hdr := createDirectoryHeader(page.Data())
	hdr.upsert(indexID, root)
	page.Unlock()
	c.bpm.UnpinPage(indexHeaderPageID, true)
}

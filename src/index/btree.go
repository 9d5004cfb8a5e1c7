package index

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"simpledb/src/catalog"
	"simpledb/src/common"
	"simpledb/src/disk"
)

// operation selects the latch-crabbing discipline used while descending
// the tree: Get only ever needs read latches, Insert/Delete need write
// latches and track which ancestors can be released early.
type operation int

const (
	opGet operation = iota
	opInsert
	opDelete
)

// BPlusTree is a latch-coupled, disk-resident B+Tree (spec.md Sections
// 3-5), rooted in a page persisted through cat.
type BPlusTree struct {
	bpm             *disk.BufferPoolManager
	cat             *catalog.Catalog
	indexID         uuid.UUID
	cmp             common.Comparator[KeyType]
	leafMaxSize     int32
	internalMaxSize int32
}

// NewBPlusTree attaches to (or creates, if unregistered) the named index.
func NewBPlusTree(bpm *disk.BufferPoolManager, cat *catalog.Catalog, indexName string, leafMaxSize, internalMaxSize int32) *BPlusTree {
	return &BPlusTree{
		bpm:             bpm,
		cat:             cat,
		indexID:         cat.RegisterIndex(indexName),
		cmp:             DefaultComparator,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
	}
}

func (t *BPlusTree) rootPageID() common.PageID { return t.cat.GetRootPageID(t.indexID) }

// IsEmpty reports whether the tree has no root page yet.
func (t *BPlusTree) IsEmpty() bool { return t.rootPageID() == common.InvalidPageID }

// GetRootPageID exposes the persisted root, mainly for tests.
func (t *BPlusTree) GetRootPageID() common.PageID { return t.rootPageID() }

// frame bundles a pinned, latched page together with its typed view.
type frame struct {
	page     *disk.Page
	leaf     *leafPage
	internal *internalPage
}

func (t *BPlusTree) fetch(id common.PageID) *frame {
	page, err := t.bpm.FetchPage(id)
	if err != nil {
		log.WithError(err).Fatalf("b+tree: cannot fetch page %d", id)
	}
	f := &frame{page: page}
	switch pageTypeOf(page.Data()) {
	case leafType:
		f.leaf = createLeafPage(page.Data())
	case internalType:
		f.internal = createInternalPage(page.Data())
	default:
		log.Fatalf("b+tree: page %d has no node type", id)
	}
	return f
}

func (f *frame) isLeaf() bool { return f.leaf != nil }

func (f *frame) lockFor(op operation) {
	if op == opGet {
		f.page.RLock()
	} else {
		f.page.Lock()
	}
}

func (f *frame) unlockFor(op operation) {
	if op == opGet {
		f.page.RUnlock()
	} else {
		f.page.Unlock()
	}
}

func (f *frame) size() int {
	if f.isLeaf() {
		return f.leaf.GetSize()
	}
	return f.internal.GetSize()
}

func (f *frame) maxSize() int {
	if f.isLeaf() {
		return f.leaf.GetMaxSize()
	}
	return f.internal.GetMaxSize()
}

func (f *frame) minSize() int {
	if f.isLeaf() {
		return f.leaf.GetMinSize()
	}
	return f.internal.GetMinSize()
}

// isSafe reports whether a write at this node cannot possibly propagate
// to its parent, letting crabbing release every ancestor latch early.
func (f *frame) isSafe(op operation) bool {
	switch op {
	case opInsert:
		if f.isLeaf() {
			return f.size() < f.maxSize()-1
		}
		return f.size() < f.maxSize()
	case opDelete:
		return f.size() > f.minSize()
	default:
		return true
	}
}

// findLeaf descends from the root to the leaf owning key, latch-crabbing
// according to op. It returns the full ancestor chain (root-to-leaf) that
// remained latched because op's safety test never cleared them; callers
// release whatever they no longer need once they know the operation's
// actual outcome.
func (t *BPlusTree) findLeaf(key KeyType, op operation) []*frame {
	root := t.fetch(t.rootPageID())
	root.lockFor(op)
	chain := []*frame{root}
	cur := root
	for !cur.isLeaf() {
		childID := cur.internal.Lookup(key, t.cmp)
		child := t.fetch(childID)
		child.lockFor(op)
		// Reads always hand-over-hand release the parent once the child is
		// latched; there is no "safe node" concept on the read path. Writes
		// only release ancestors once a safe descendant guarantees they
		// can't be touched by a split/merge.
		if op == opGet || child.isSafe(op) {
			t.releaseChain(chain, op)
			chain = chain[:0]
		}
		chain = append(chain, child)
		cur = child
	}
	return chain
}

// releaseChain unlatches and unpins every frame in chain. findLeaf calls it
// before appending the newly latched child, so the child stays held.
func (t *BPlusTree) releaseChain(chain []*frame, op operation) {
	for _, f := range chain {
		f.unlockFor(op)
		t.bpm.UnpinPage(f.page.PageID(), false)
	}
}

func (t *BPlusTree) releaseAll(chain []*frame, op operation, dirty map[common.PageID]bool) {
	for _, f := range chain {
		f.unlockFor(op)
		t.bpm.UnpinPage(f.page.PageID(), dirty[f.page.PageID()])
	}
}

// GetValue looks up key, returning its value and whether it was found.
func (t *BPlusTree) GetValue(key KeyType) (ValueType, bool) {
	if t.IsEmpty() {
		var zero ValueType
		return zero, false
	}
	chain := t.findLeaf(key, opGet)
	leaf := chain[len(chain)-1].leaf
	v, ok := leaf.Lookup(key, t.cmp)
	t.releaseAll(chain, opGet, nil)
	return v, ok
}

func (t *BPlusTree) newPage() (*disk.Page, common.PageID) {
	page, err := t.bpm.NewPage()
	if err != nil {
		log.WithError(err).Fatalf("b+tree: cannot allocate page")
	}
	return page, page.PageID()
}

// Insert adds (key, value), splitting nodes bottom-up as needed. Returns
// false if key was already present.
func (t *BPlusTree) Insert(key KeyType, value ValueType) bool {
	if t.IsEmpty() {
		t.createNewTree(key, value)
		return true
	}
	chain := t.findLeaf(key, opInsert)
	leaf := chain[len(chain)-1].leaf
	dirty := map[common.PageID]bool{}

	newSize, inserted := leaf.Insert(key, value, t.cmp)
	if !inserted {
		t.releaseAll(chain, opInsert, dirty)
		return false
	}
	dirty[chain[len(chain)-1].page.PageID()] = true

	if newSize < leaf.GetMaxSize() {
		t.releaseAll(chain, opInsert, dirty)
		return true
	}

	// Leaf overflowed: split and propagate the separator key upward.
	siblingPage, siblingID := t.newPage()
	sibling := createLeafPage(siblingPage.Data())
	sibling.init(siblingID, leaf.GetParentPageID(), t.leafMaxSize)
	leaf.MoveHalfTo(sibling)
	sibling.SetNextPageID(leaf.GetNextPageID())
	leaf.SetNextPageID(siblingID)
	dirty[siblingID] = true
	t.bpm.UnpinPage(siblingID, true)

	t.insertIntoParent(chain, sibling.KeyAt(0), siblingID, dirty)
	return true
}

func (t *BPlusTree) createNewTree(key KeyType, value ValueType) {
	page, id := t.newPage()
	leaf := createLeafPage(page.Data())
	leaf.init(id, common.InvalidPageID, t.leafMaxSize)
	leaf.Insert(key, value, t.cmp)
	t.bpm.UnpinPage(id, true)
	t.cat.UpdateRootPageID(t.indexID, id)
}

// insertIntoParent attaches (sepKey, rightID) to chain's parent, the node
// just below the already-released tail of chain, splitting the parent in
// turn if it overflows. chain's last entry is the node that just split
// and is unpinned here; earlier entries are ancestors still latched.
func (t *BPlusTree) insertIntoParent(chain []*frame, sepKey KeyType, rightID common.PageID, dirty map[common.PageID]bool) {
	left := chain[len(chain)-1]
	leftID := left.page.PageID()
	left.page.Unlock()
	t.bpm.UnpinPage(leftID, true)
	ancestors := chain[:len(chain)-1]

	if len(ancestors) == 0 {
		// left was the root: build a fresh root pointing at both halves.
		page, id := t.newPage()
		root := createInternalPage(page.Data())
		root.init(id, common.InvalidPageID, t.internalMaxSize)
		root.PopulateNewRoot(leftID, sepKey, rightID)
		t.reparent(leftID, id)
		t.reparent(rightID, id)
		t.bpm.UnpinPage(id, true)
		t.cat.UpdateRootPageID(t.indexID, id)
		return
	}

	parent := ancestors[len(ancestors)-1]
	parent.internal.InsertNodeAfter(leftID, sepKey, rightID)
	t.reparent(rightID, parent.page.PageID())
	dirty[parent.page.PageID()] = true

	if parent.internal.GetSize() <= parent.internal.GetMaxSize() {
		t.releaseAll(ancestors, opInsert, dirty)
		return
	}

	// Parent overflowed too: split it and recurse one level up.
	siblingPage, siblingID := t.newPage()
	siblingInternal := createInternalPage(siblingPage.Data())
	siblingInternal.init(siblingID, parent.internal.GetParentPageID(), t.internalMaxSize)
	upKey := parent.internal.KeyAt(parent.internal.GetMinSize())
	parent.internal.MoveHalfTo(siblingInternal, func(childID common.PageID) {
		t.reparent(childID, siblingID)
	})
	t.bpm.UnpinPage(siblingID, true)

	t.insertIntoParent(ancestors, upKey, siblingID, dirty)
}

func (t *BPlusTree) reparent(childID, parentID common.PageID) {
	f := t.fetch(childID)
	f.page.Lock()
	if f.isLeaf() {
		f.leaf.SetParentPageID(parentID)
	} else {
		f.internal.SetParentPageID(parentID)
	}
	f.page.Unlock()
	t.bpm.UnpinPage(childID, true)
}

// Remove deletes key if present, coalescing or redistributing underflowed
// nodes bottom-up.
func (t *BPlusTree) Remove(key KeyType) {
	if t.IsEmpty() {
		return
	}
	chain := t.findLeaf(key, opDelete)
	dirty := map[common.PageID]bool{}
	leaf := chain[len(chain)-1].leaf
	before := leaf.GetSize()
	after := leaf.RemoveAndDeleteRecord(key, t.cmp)
	if after == before {
		t.releaseAll(chain, opDelete, dirty)
		return
	}
	dirty[chain[len(chain)-1].page.PageID()] = true
	t.coalesceOrRedistribute(chain, dirty)
}

// coalesceOrRedistribute fixes up an underflowed node (chain's last
// entry) by borrowing from a sibling or merging with one, recursing
// toward the root if the merge empties an ancestor's slot.
func (t *BPlusTree) coalesceOrRedistribute(chain []*frame, dirty map[common.PageID]bool) {
	node := chain[len(chain)-1]
	ancestors := chain[:len(chain)-1]

	if len(ancestors) == 0 {
		t.adjustRoot(node, dirty)
		t.releaseAll(ancestors, opDelete, dirty)
		return
	}

	if node.size() >= node.minSize() {
		t.releaseAll(chain, opDelete, dirty)
		return
	}

	parent := ancestors[len(ancestors)-1]
	nodeID := node.page.PageID()
	idx := parent.internal.IndexAt(nodeID)

	var siblingID common.PageID
	siblingIsPrev := idx > 0
	if siblingIsPrev {
		siblingID = parent.internal.ValueAt(idx - 1)
	} else {
		siblingID = parent.internal.ValueAt(idx + 1)
	}
	sibling := t.fetch(siblingID)
	sibling.page.Lock()
	dirty[siblingID] = true
	dirty[parent.page.PageID()] = true

	if sibling.size()+node.size() <= node.maxSize() {
		// Merge: fold one page's entries into the other and drop the
		// absorbed page's parent slot.
		removedID := t.coalesce(node, sibling, siblingIsPrev, parent, idx)
		sibling.page.Unlock()
		node.page.Unlock()
		t.bpm.UnpinPage(siblingID, true)
		t.bpm.UnpinPage(nodeID, true)
		t.bpm.DeletePage(removedID)
		t.coalesceOrRedistribute(ancestors, dirty)
		return
	}

	// Redistribute: borrow one entry from sibling through the parent.
	t.redistribute(node, sibling, siblingIsPrev, parent, idx)
	sibling.page.Unlock()
	t.bpm.UnpinPage(siblingID, true)
	t.releaseAll(chain, opDelete, dirty)
}

// coalesce merges node and sibling into whichever of the two is the left
// page in key order, removes the absorbed page's slot from parent, and
// returns the absorbed page's id (the caller deletes it).
//
// Internal pages need one extra fixup leaf pages don't: slot 0's key is
// an unused sentinel (spec.md's internal layout, mirroring bustub), so
// once the absorbed page's entries land at a non-zero index in the
// survivor, the boundary between the two halves must be relabeled with
// the separator that used to live in the parent, not the sentinel.
func (t *BPlusTree) coalesce(node, sibling *frame, siblingIsPrev bool, parent *frame, nodeIdx int) common.PageID {
	if siblingIsPrev {
		// sibling (left) <- node (right): node is absorbed, drop its slot.
		if node.isLeaf() {
			node.leaf.MoveAllTo(sibling.leaf)
		} else {
			boundary := parent.internal.KeyAt(nodeIdx)
			splitAt := sibling.internal.GetSize()
			node.internal.MoveAllTo(sibling.internal, func(childID common.PageID) {
				t.reparent(childID, sibling.page.PageID())
			})
			sibling.internal.SetKeyAt(splitAt, boundary)
		}
		parent.internal.RemoveAt(nodeIdx)
		return node.page.PageID()
	}
	// node (left) <- sibling (right): sibling is absorbed, drop its slot.
	if node.isLeaf() {
		sibling.leaf.MoveAllTo(node.leaf)
	} else {
		boundary := parent.internal.KeyAt(nodeIdx + 1)
		splitAt := node.internal.GetSize()
		sibling.internal.MoveAllTo(node.internal, func(childID common.PageID) {
			t.reparent(childID, node.page.PageID())
		})
		node.internal.SetKeyAt(splitAt, boundary)
	}
	parent.internal.RemoveAt(nodeIdx + 1)
	return sibling.page.PageID()
}

// redistribute borrows one child across the node/sibling boundary through
// parent. For internal pages, the moved entry's own key is a sentinel
// (see coalesce's doc), so the new separator is computed explicitly: it
// becomes the key that is "handed off" through the parent rather than
// whatever travels with the moved entry itself.
func (t *BPlusTree) redistribute(node, sibling *frame, siblingIsPrev bool, parent *frame, nodeIdx int) {
	if node.isLeaf() {
		if siblingIsPrev {
			sibling.leaf.MoveLastToFirst(node.leaf)
			parent.internal.SetKeyAt(nodeIdx, node.leaf.KeyAt(0))
		} else {
			sibling.leaf.MoveFirstToLast(node.leaf)
			parent.internal.SetKeyAt(nodeIdx+1, sibling.leaf.KeyAt(0))
		}
		return
	}
	reparent := func(childID common.PageID) { t.reparent(childID, node.page.PageID()) }
	if siblingIsPrev {
		borrowedKey := sibling.internal.KeyAt(sibling.internal.GetSize() - 1)
		oldParentSep := parent.internal.KeyAt(nodeIdx)
		sibling.internal.MoveLastToFirst(node.internal, reparent)
		node.internal.SetKeyAt(1, oldParentSep)
		parent.internal.SetKeyAt(nodeIdx, borrowedKey)
	} else {
		borrowedKey := sibling.internal.KeyAt(1)
		oldParentSep := parent.internal.KeyAt(nodeIdx + 1)
		sibling.internal.MoveFirstToLast(node.internal, reparent)
		node.internal.SetKeyAt(node.internal.GetSize()-1, oldParentSep)
		parent.internal.SetKeyAt(nodeIdx+1, borrowedKey)
	}
}

// adjustRoot collapses the tree by one level when the root has a single
// child left, or clears the root entirely when the last leaf empties.
func (t *BPlusTree) adjustRoot(root *frame, dirty map[common.PageID]bool) {
	if !root.isLeaf() && root.internal.GetSize() == 1 {
		newRootID := root.internal.ValueAt(0)
		child := t.fetch(newRootID)
		child.page.Lock()
		if child.isLeaf() {
			child.leaf.SetParentPageID(common.InvalidPageID)
		} else {
			child.internal.SetParentPageID(common.InvalidPageID)
		}
		child.page.Unlock()
		t.bpm.UnpinPage(newRootID, true)
		t.cat.UpdateRootPageID(t.indexID, newRootID)
		oldID := root.page.PageID()
		root.page.Unlock()
		t.bpm.UnpinPage(oldID, true)
		t.bpm.DeletePage(oldID)
		return
	}
	if root.isLeaf() && root.leaf.GetSize() == 0 {
		oldID := root.page.PageID()
		root.page.Unlock()
		t.bpm.UnpinPage(oldID, true)
		t.bpm.DeletePage(oldID)
		t.cat.UpdateRootPageID(t.indexID, common.InvalidPageID)
		return
	}
	root.page.Unlock()
	t.bpm.UnpinPage(root.page.PageID(), dirty[root.page.PageID()])
}

package index

import (
	log "github.com/sirupsen/logrus"

	"simpledb/src/common"
)

// IndexIterator provides an ascending scan over a tree's leaves, holding
// at most one leaf pinned and read-latched at a time (spec.md Section 7).
type IndexIterator struct {
	tree  *BPlusTree
	page  *leafFrame
	slot  int
	atEnd bool
}

type leafFrame struct {
	pageID common.PageID
	f      *frame
}

// Begin starts a scan at the tree's smallest key.
func (t *BPlusTree) Begin() *IndexIterator {
	if t.IsEmpty() {
		return &IndexIterator{tree: t, atEnd: true}
	}
	root := t.fetch(t.rootPageID())
	root.page.RLock()
	cur := root
	for !cur.isLeaf() {
		childID := cur.internal.ValueAt(0)
		child := t.fetch(childID)
		child.page.RLock()
		cur.page.RUnlock()
		t.bpm.UnpinPage(cur.page.PageID(), false)
		cur = child
	}
	it := &IndexIterator{tree: t, page: &leafFrame{pageID: cur.page.PageID(), f: cur}, slot: 0}
	it.skipEmptyForward()
	return it
}

// BeginAt starts a scan at the smallest key >= key.
func (t *BPlusTree) BeginAt(key KeyType) *IndexIterator {
	if t.IsEmpty() {
		return &IndexIterator{tree: t, atEnd: true}
	}
	chain := t.findLeaf(key, opGet)
	leaf := chain[len(chain)-1]
	idx := leaf.leaf.KeyIndex(key, t.cmp)
	for _, f := range chain[:len(chain)-1] {
		f.page.RUnlock()
		t.bpm.UnpinPage(f.page.PageID(), false)
	}
	it := &IndexIterator{tree: t, page: &leafFrame{pageID: leaf.page.PageID(), f: leaf}, slot: idx}
	it.skipEmptyForward()
	return it
}

func (it *IndexIterator) skipEmptyForward() {
	for !it.atEnd && it.slot >= it.page.f.leaf.GetSize() {
		it.advancePage()
	}
}

func (it *IndexIterator) advancePage() {
	next := it.page.f.leaf.GetNextPageID()
	it.page.f.page.RUnlock()
	it.tree.bpm.UnpinPage(it.page.pageID, false)
	if next == common.InvalidPageID {
		it.page = nil
		it.atEnd = true
		return
	}
	nf := it.tree.fetch(next)
	nf.page.RLock()
	it.page = &leafFrame{pageID: next, f: nf}
	it.slot = 0
}

// IsEnd reports whether the scan has been exhausted.
func (it *IndexIterator) IsEnd() bool { return it.atEnd }

// Key returns the key at the iterator's current position.
func (it *IndexIterator) Key() KeyType {
	if it.atEnd {
		log.Fatalf("index iterator: Key called past end")
	}
	return it.page.f.leaf.KeyAt(it.slot)
}

// Value returns the value at the iterator's current position.
func (it *IndexIterator) Value() ValueType {
	if it.atEnd {
		log.Fatalf("index iterator: Value called past end")
	}
	return it.page.f.leaf.ValueAt(it.slot)
}

// Next advances the iterator and returns it, so callers can chain
// `for it := tree.Begin(); !it.IsEnd(); it.Next() { ... }`.
func (it *IndexIterator) Next() *IndexIterator {
	if it.atEnd {
		return it
	}
	it.slot++
	if it.slot >= it.page.f.leaf.GetSize() {
		it.advancePage()
	}
	return it
}

// Close releases the currently held leaf latch and pin without scanning
// to the end; callers that abandon a scan early must call this.
func (it *IndexIterator) Close() {
	if it.page != nil {
		it.page.f.page.RUnlock()
		it.tree.bpm.UnpinPage(it.page.pageID, false)
		it.page = nil
	}
	it.atEnd = true
}

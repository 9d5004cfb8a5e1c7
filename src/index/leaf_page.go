package index

import (
	"sort"
	"unsafe"

	"simpledb/src/common"
)

// leafPage is a leaf node: header + dense sorted (key, rid) array, plus a
// right-sibling link for ascending scans. Cast directly over a page's raw
// bytes — spec.md Section 6's "leaf header" made concrete.
type leafPage struct {
	pageType     pageType
	_            [7]byte // alignment padding
	size         int32
	maxSize      int32
	parentPageID common.PageID
	pageID       common.PageID
	nextPageID   common.PageID
	ptr          struct{}
}

func createLeafPage(data []byte) *leafPage {
	return (*leafPage)(unsafe.Pointer(&data[0]))
}

func (lp *leafPage) init(pageID, parentID common.PageID, maxSize int32) {
	lp.pageType = leafType
	lp.size = 0
	lp.maxSize = maxSize
	lp.parentPageID = parentID
	lp.pageID = pageID
	lp.nextPageID = common.InvalidPageID
}

func (lp *leafPage) entries() []entry { return entriesView(unsafe.Pointer(&lp.ptr), lp.size) }

func (lp *leafPage) GetSize() int        { return int(lp.size) }
func (lp *leafPage) setSize(n int)       { lp.size = int32(n) }
func (lp *leafPage) GetMaxSize() int     { return int(lp.maxSize) }
func (lp *leafPage) GetMinSize() int     { return ceilDiv(int(lp.maxSize), 2) }
func (lp *leafPage) GetPageID() common.PageID   { return lp.pageID }
func (lp *leafPage) GetParentPageID() common.PageID { return lp.parentPageID }
func (lp *leafPage) SetParentPageID(id common.PageID) { lp.parentPageID = id }
func (lp *leafPage) GetNextPageID() common.PageID { return lp.nextPageID }
func (lp *leafPage) SetNextPageID(id common.PageID) { lp.nextPageID = id }

func (lp *leafPage) KeyAt(i int) KeyType     { return lp.entries()[i].key }
func (lp *leafPage) ValueAt(i int) ValueType { return lp.entries()[i].value }

// KeyIndex returns the lower-bound position of key: the first index whose
// key is >= key (== GetSize() if key is greater than everything present).
func (lp *leafPage) KeyIndex(key KeyType, cmp common.Comparator[KeyType]) int {
	es := lp.entries()
	return sort.Search(len(es), func(i int) bool { return cmp(es[i].key, key) >= 0 })
}

// Lookup returns the value stored for key, if present.
func (lp *leafPage) Lookup(key KeyType, cmp common.Comparator[KeyType]) (ValueType, bool) {
	i := lp.KeyIndex(key, cmp)
	es := lp.entries()
	if i == len(es) || cmp(es[i].key, key) != 0 {
		var zero ValueType
		return zero, false
	}
	return es[i].value, true
}

// Insert adds (key, value) in sorted position. Returns the new size and
// true, or the unchanged size and false if key is already present.
func (lp *leafPage) Insert(key KeyType, value ValueType, cmp common.Comparator[KeyType]) (int, bool) {
	i := lp.KeyIndex(key, cmp)
	es := lp.entries()
	if i < len(es) && cmp(es[i].key, key) == 0 {
		return lp.GetSize(), false
	}
	lp.setSize(lp.GetSize() + 1)
	es = lp.entries()
	copy(es[i+1:], es[i:len(es)-1])
	es[i] = entry{key: key, value: value}
	return lp.GetSize(), true
}

// RemoveAndDeleteRecord removes key if present, shifting later entries
// left. Returns the new size (unchanged if key was absent).
func (lp *leafPage) RemoveAndDeleteRecord(key KeyType, cmp common.Comparator[KeyType]) int {
	i := lp.KeyIndex(key, cmp)
	es := lp.entries()
	if i == len(es) || cmp(es[i].key, key) != 0 {
		return lp.GetSize()
	}
	copy(es[i:], es[i+1:])
	lp.setSize(lp.GetSize() - 1)
	return lp.GetSize()
}

// MoveHalfTo moves this leaf's upper half [minSize, size) to recipient,
// which must be empty.
func (lp *leafPage) MoveHalfTo(recipient *leafPage) {
	start := lp.GetMinSize()
	es := lp.entries()
	recipient.receiveN(es[start:])
	lp.setSize(start)
}

func (lp *leafPage) receiveN(items []entry) {
	n := lp.GetSize()
	lp.setSize(n + len(items))
	copy(lp.entries()[n:], items)
}

// MoveFirstToLast moves this leaf's first entry to the end of recipient.
func (lp *leafPage) MoveFirstToLast(recipient *leafPage) {
	first := lp.entries()[0]
	es := lp.entries()
	copy(es, es[1:])
	lp.setSize(lp.GetSize() - 1)
	recipient.insertLast(first)
}

func (lp *leafPage) insertLast(e entry) {
	n := lp.GetSize()
	lp.setSize(n + 1)
	lp.entries()[n] = e
}

// MoveLastToFirst moves this leaf's last entry to the front of recipient.
func (lp *leafPage) MoveLastToFirst(recipient *leafPage) {
	es := lp.entries()
	last := es[len(es)-1]
	lp.setSize(lp.GetSize() - 1)
	recipient.insertFirst(last)
}

func (lp *leafPage) insertFirst(e entry) {
	lp.setSize(lp.GetSize() + 1)
	es := lp.entries()
	copy(es[1:], es[:len(es)-1])
	es[0] = e
}

// MoveAllTo appends all of this leaf's entries to recipient and transfers
// the next-page link, leaving this leaf empty (it is about to be deleted).
func (lp *leafPage) MoveAllTo(recipient *leafPage) {
	recipient.receiveN(lp.entries())
	recipient.SetNextPageID(lp.GetNextPageID())
	lp.setSize(0)
}

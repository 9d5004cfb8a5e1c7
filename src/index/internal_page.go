package index

import (
	"sort"
	"unsafe"

	"simpledb/src/common"
)

// internalPage is an internal node: header + dense (key, child page id)
// array of length size. key[0] is an unused sentinel; for i>=1, every key
// in the subtree rooted at child[i] is in [key[i], key[i+1]).
type internalPage struct {
	pageType     pageType
	_            [7]byte
	size         int32
	maxSize      int32
	parentPageID common.PageID
	pageID       common.PageID
	ptr          struct{}
}

func createInternalPage(data []byte) *internalPage {
	return (*internalPage)(unsafe.Pointer(&data[0]))
}

func (ip *internalPage) init(pageID, parentID common.PageID, maxSize int32) {
	ip.pageType = internalType
	ip.size = 0
	ip.maxSize = maxSize
	ip.parentPageID = parentID
	ip.pageID = pageID
}

func (ip *internalPage) entries() []entry { return entriesView(unsafe.Pointer(&ip.ptr), ip.size) }

func (ip *internalPage) GetSize() int            { return int(ip.size) }
func (ip *internalPage) setSize(n int)           { ip.size = int32(n) }
func (ip *internalPage) GetMaxSize() int         { return int(ip.maxSize) }
func (ip *internalPage) GetMinSize() int         { return ceilDiv(int(ip.maxSize)+1, 2) }
func (ip *internalPage) GetPageID() common.PageID { return ip.pageID }
func (ip *internalPage) GetParentPageID() common.PageID { return ip.parentPageID }
func (ip *internalPage) SetParentPageID(id common.PageID) { ip.parentPageID = id }

func (ip *internalPage) KeyAt(i int) KeyType           { return ip.entries()[i].key }
func (ip *internalPage) SetKeyAt(i int, key KeyType)   { ip.entries()[i].key = key }
func (ip *internalPage) ValueAt(i int) common.PageID   { return common.PageID(ip.entries()[i].value.PageID) }
func (ip *internalPage) setValueAt(i int, v common.PageID) {
	ip.entries()[i].value = common.RID{PageID: v}
}

// IndexAt finds the slot holding child, by linear scan (mirrors bustub).
func (ip *internalPage) IndexAt(child common.PageID) int {
	for i, e := range ip.entries() {
		if common.PageID(e.value.PageID) == child {
			return i
		}
	}
	return -1
}

// Lookup descends toward key: returns the rightmost child[i] such that
// key[i] <= key (using key[size-1] for anything beyond the last boundary).
func (ip *internalPage) Lookup(key KeyType, cmp common.Comparator[KeyType]) common.PageID {
	es := ip.entries()
	n := len(es)
	target := sort.Search(n-1, func(i int) bool { return cmp(es[i+1].key, key) >= 0 }) + 1
	if target == n {
		return ip.ValueAt(n - 1)
	}
	if cmp(es[target].key, key) == 0 {
		return ip.ValueAt(target)
	}
	return ip.ValueAt(target - 1)
}

// InsertNodeAfter inserts (key, newChild) immediately after the slot
// holding oldChild, shifting later entries right.
func (ip *internalPage) InsertNodeAfter(oldChild common.PageID, key KeyType, newChild common.PageID) {
	idx := ip.IndexAt(oldChild)
	ip.setSize(ip.GetSize() + 1)
	es := ip.entries()
	copy(es[idx+2:], es[idx+1:len(es)-1])
	es[idx+1] = entry{key: key, value: common.RID{PageID: newChild}}
}

// PopulateNewRoot writes exactly two entries: (_, old) and (key, new).
func (ip *internalPage) PopulateNewRoot(old common.PageID, key KeyType, new common.PageID) {
	ip.setSize(2)
	es := ip.entries()
	es[0] = entry{value: common.RID{PageID: old}}
	es[1] = entry{key: key, value: common.RID{PageID: new}}
}

// RemoveAt deletes the entry at index i, shifting later entries left.
func (ip *internalPage) RemoveAt(i int) {
	es := ip.entries()
	copy(es[i:], es[i+1:])
	ip.setSize(ip.GetSize() - 1)
}

// MoveHalfTo moves the upper half [ceil((max+1)/2), size) to recipient.
// reparent is invoked for every moved child so the caller can fetch it
// through the buffer pool and rewrite its parent_page_id.
func (ip *internalPage) MoveHalfTo(recipient *internalPage, reparent func(common.PageID)) {
	start := ip.GetMinSize()
	es := ip.entries()
	moved := append([]entry(nil), es[start:]...)
	recipient.receiveN(moved)
	ip.setSize(start)
	for _, e := range moved {
		reparent(common.PageID(e.value.PageID))
	}
}

func (ip *internalPage) receiveN(items []entry) {
	n := ip.GetSize()
	ip.setSize(n + len(items))
	copy(ip.entries()[n:], items)
}

// MoveFirstToLast moves this node's first entry to the end of recipient.
func (ip *internalPage) MoveFirstToLast(recipient *internalPage, reparent func(common.PageID)) {
	first := ip.entries()[0]
	es := ip.entries()
	copy(es, es[1:])
	ip.setSize(ip.GetSize() - 1)
	recipient.insertLast(first)
	reparent(common.PageID(first.value.PageID))
}

func (ip *internalPage) insertLast(e entry) {
	n := ip.GetSize()
	ip.setSize(n + 1)
	ip.entries()[n] = e
}

// MoveLastToFirst moves this node's last entry to the front of recipient.
func (ip *internalPage) MoveLastToFirst(recipient *internalPage, reparent func(common.PageID)) {
	es := ip.entries()
	last := es[len(es)-1]
	ip.setSize(ip.GetSize() - 1)
	recipient.insertFirst(last)
	reparent(common.PageID(last.value.PageID))
}

func (ip *internalPage) insertFirst(e entry) {
	ip.setSize(ip.GetSize() + 1)
	es := ip.entries()
	copy(es[1:], es[:len(es)-1])
	es[0] = e
}

// MoveAllTo appends all of this node's entries to recipient, reparenting
// every moved child; this node is about to be deleted.
func (ip *internalPage) MoveAllTo(recipient *internalPage, reparent func(common.PageID)) {
	moved := append([]entry(nil), ip.entries()...)
	recipient.receiveN(moved)
	ip.setSize(0)
	for _, e := range moved {
		reparent(common.PageID(e.value.PageID))
	}
}

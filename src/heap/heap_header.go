package heap

import (
	"math"
	"unsafe"

	"simpledb/src/common"
)

// pageSlot tracks one data page's free space, so Insert can pick a page
// without scanning the heap.
type pageSlot struct {
	pageID    common.PageID
	leftSpace int32
}

// heapHeader is the heap's own header page: a dense array of pageSlot,
// cast directly over raw bytes (the teacher's heap_header.go pattern).
type heapHeader struct {
	numPages int32
	ptr      struct{}
}

func createHeapHeader(data []byte) *heapHeader {
	return (*heapHeader)(unsafe.Pointer(&data[0]))
}

func (h *heapHeader) init() { h.numPages = 0 }

func (h *heapHeader) slots() []pageSlot {
	return (*(*[math.MaxInt32]pageSlot)(unsafe.Pointer(&h.ptr)))[:int(h.numPages)]
}

func (h *heapHeader) get(pageID common.PageID) (pageSlot, bool) {
	for _, s := range h.slots() {
		if s.pageID == pageID {
			return s, true
		}
	}
	return pageSlot{}, false
}

func (h *heapHeader) set(slot pageSlot) bool {
	slots := h.slots()
	for i := range slots {
		if slots[i].pageID == slot.pageID {
			slots[i] = slot
			return true
		}
	}
	return false
}

func (h *heapHeader) push(slot pageSlot) {
	h.numPages++
	h.slots()[int(h.numPages)-1] = slot
}

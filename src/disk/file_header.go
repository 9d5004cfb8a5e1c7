package disk

import (
	"math"
	"unsafe"

	"simpledb/src/common"
)

// headerPageInfo is the fixed-layout header occupying page id 0: the next
// page id to mint and a packed free-page list, cast directly over the
// page's raw bytes (no serialization step).
//
// TODO: use a bitmask instead of a flat list of PageIDs once free pages
// routinely number in the thousands.
type headerPageInfo struct {
	nextPageID   common.PageID
	numFreePages int32
	freeListPtr  uintptr
}

func createHeaderPageInfo(data []byte) *headerPageInfo {
	return (*headerPageInfo)(unsafe.Pointer(&data[0]))
}

func (hdr *headerPageInfo) init() {
	hdr.nextPageID = 1
	hdr.numFreePages = 0
}

func (hdr *headerPageInfo) get(i int32) common.PageID {
	buf := (*[math.MaxInt32]common.PageID)(unsafe.Pointer(&hdr.freeListPtr))
	return buf[i]
}

func (hdr *headerPageInfo) hasFreePage() bool {
	return hdr.numFreePages > 0
}

func (hdr *headerPageInfo) popFreePage() common.PageID {
	buf := (*[math.MaxInt32]common.PageID)(unsafe.Pointer(&hdr.freeListPtr))
	ret := buf[0]
	for i := int32(1); i < hdr.numFreePages; i++ {
		buf[i-1] = buf[i]
	}
	hdr.numFreePages--
	return ret
}

func (hdr *headerPageInfo) pushFreePage(pageID common.PageID) {
	buf := (*[math.MaxInt32]common.PageID)(unsafe.Pointer(&hdr.freeListPtr))
	buf[hdr.numFreePages] = pageID
	hdr.numFreePages++
}

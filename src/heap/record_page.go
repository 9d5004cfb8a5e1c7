// Package heap implements a slotted-page record heap: the storage a
// B+Tree index's RID values ultimately point at. Adapted from the
// teacher's table_page.go / table_heap.go, renamed to this module's
// vocabulary and wired to simpledb/src/common and simpledb/src/disk.
package heap

import (
	"math"
	"unsafe"

	"simpledb/src/common"
)

// RecordPage is a slotted page: a dense, growing slot array at the front
// (one int32 offset per record) and variable-length record bodies packed
// back-to-front from the end of the page.
type RecordPage struct {
	pageID     common.PageID
	pageSize   int32
	numRecords int32
	ptr        struct{}
}

type recordSlot struct {
	offset int32
}

const recordSlotSize = int(unsafe.Sizeof(recordSlot{}))

func createRecordPage(data []byte) *RecordPage {
	return (*RecordPage)(unsafe.Pointer(&data[0]))
}

func (rp *RecordPage) init(pageID common.PageID, pageSize int32) {
	rp.pageID = pageID
	rp.pageSize = pageSize
	rp.numRecords = 0
}

func (rp *RecordPage) getSlotSlice() []recordSlot {
	return (*(*[math.MaxInt32]recordSlot)(unsafe.Pointer(&rp.ptr)))[:int(rp.numRecords)]
}

func (rp *RecordPage) getRecordRawSlice() []byte {
	return (*[math.MaxInt32]byte)(unsafe.Pointer(rp))[:int(rp.pageSize)]
}

func (rp *RecordPage) getRecordOffset(i int) int32 {
	return rp.getSlotSlice()[i].offset
}

func (rp *RecordPage) setRecordSlot(i int, slot recordSlot) {
	rp.getSlotSlice()[i] = slot
}

func (rp *RecordPage) getRecordSize(i int) int32 {
	offset := rp.getRecordOffset(i)
	endOffset := rp.pageSize
	if i > 0 {
		endOffset = rp.getRecordOffset(i - 1)
	}
	return endOffset - offset
}

func (rp *RecordPage) pushRecordSlot(slot recordSlot) {
	rp.numRecords++
	rp.setRecordSlot(int(rp.numRecords)-1, slot)
}

func (rp *RecordPage) getRecordStartOffset() int32 {
	if int(rp.numRecords) >= 1 {
		return rp.getRecordOffset(int(rp.numRecords) - 1)
	}
	return rp.pageSize
}

func (rp *RecordPage) getFreeSpace() int32 {
	fixedHeaderSize := int32(unsafe.Offsetof(rp.ptr))
	slotsSize := int32(recordSlotSize) * rp.numRecords
	return rp.getRecordStartOffset() - (fixedHeaderSize + slotsSize)
}

func (rp *RecordPage) getFreeSpaceForInsert() int32 {
	return rp.getFreeSpace() - int32(recordSlotSize)
}

// getInsertIndex finds the first tombstoned slot (zero-length record),
// reusing it instead of growing the slot array, or returns numRecords if
// none is free.
func (rp *RecordPage) getInsertIndex() int {
	prevOffset := rp.pageSize
	for i := 0; i < int(rp.numRecords); i++ {
		offset := rp.getRecordOffset(i)
		if offset == prevOffset {
			return i
		}
		prevOffset = offset
	}
	return int(rp.numRecords)
}

// moveBackRecords shifts every record at index > startIndex by size
// bytes to make room for (size > 0) or reclaim (size < 0) space, and
// returns the start offset of the freed/claimed region.
func (rp *RecordPage) moveBackRecords(startIndex int, size int) int {
	if startIndex == int(rp.numRecords) {
		return int(rp.getRecordStartOffset()) - size
	}
	copyStart := rp.getRecordStartOffset()
	copyEnd := rp.getRecordOffset(startIndex)
	if copyStart != copyEnd {
		buf := rp.getRecordRawSlice()
		copy(buf[int(copyStart)-size:int(copyEnd)-size], buf[int(copyStart):int(copyEnd)])
	}
	for i := startIndex + 1; i < int(rp.numRecords); i++ {
		slot := rp.getSlotSlice()[i]
		slot.offset -= int32(size)
		rp.setRecordSlot(i, slot)
	}
	return int(copyEnd) - size
}

// Insert appends record, reusing a tombstoned slot if one fits. Returns
// the RID it was stored at, or false if the page has no room.
func (rp *RecordPage) Insert(record []byte) (common.RID, bool) {
	if rp.getFreeSpace() < int32(recordSlotSize+len(record)) {
		return common.RID{}, false
	}
	index := rp.getInsertIndex()
	startOffset := rp.moveBackRecords(index, len(record))

	buf := rp.getRecordRawSlice()
	copy(buf[startOffset:startOffset+len(record)], record)

	if index == int(rp.numRecords) {
		rp.pushRecordSlot(recordSlot{offset: int32(startOffset)})
	} else {
		rp.setRecordSlot(index, recordSlot{offset: int32(startOffset)})
	}
	return common.RID{PageID: rp.pageID, SlotNum: index}, true
}

// Delete tombstones the record at rid's slot (zero-length), reclaiming
// its space. Returns false if the slot is out of range or already empty.
func (rp *RecordPage) Delete(rid common.RID) bool {
	if rid.SlotNum >= int(rp.numRecords) {
		return false
	}
	size := rp.getRecordSize(rid.SlotNum)
	if size == 0 {
		return false
	}
	rp.moveBackRecords(rid.SlotNum, -int(size))
	slot := rp.getSlotSlice()[rid.SlotNum]
	slot.offset += size
	rp.setRecordSlot(rid.SlotNum, slot)
	return true
}

func (rp *RecordPage) getRecord(i int) []byte {
	offset := rp.getRecordOffset(i)
	endOffset := rp.pageSize
	if i > 0 {
		endOffset = rp.getRecordOffset(i - 1)
	}
	return rp.getRecordRawSlice()[offset:endOffset]
}

// Get returns a copy of the record stored at rid, or false if absent.
func (rp *RecordPage) Get(rid common.RID) ([]byte, bool) {
	if rid.SlotNum >= int(rp.numRecords) {
		return nil, false
	}
	data := rp.getRecord(rid.SlotNum)
	if len(data) == 0 {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

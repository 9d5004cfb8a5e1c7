// Package index implements a latch-coupled, disk-resident B+Tree index
// (spec.md Sections 3-5): node pages with a fixed entry layout, and the
// BPlusTree operating on them through a BufferPoolManager.
//
// Per spec.md Section 13 (Open Questions), the disk-resident key and value
// types are fixed rather than fully generic: KeyType is int64 and
// ValueType is common.RID, mirroring bustub's fixed-size GenericKey
// scheme without its variable-width machinery. A Comparator on BPlusTree
// stands in for the "Cmp" template parameter.
package index

import (
	"math"
	"unsafe"

	"simpledb/src/common"
)

// KeyType is this tree's key type (see the package doc for why it is
// fixed rather than generic).
type KeyType = int64

// ValueType is this tree's value type.
type ValueType = common.RID

// entry is one (key, value) pair as stored in a node's dense array.
type entry struct {
	key   KeyType
	value ValueType
}

type pageType byte

const (
	invalidPageType pageType = 0
	leafType        pageType = 1
	internalType    pageType = 2
)

// pageTypeOf reads the page-type discriminator byte shared by both node
// layouts, without committing to which concrete struct to cast to yet.
func pageTypeOf(data []byte) pageType { return pageType(data[0]) }

// DefaultComparator orders int64 keys the natural way.
func DefaultComparator(a, b KeyType) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ceilDiv computes ceil(a/b) for positive integers.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// entriesView casts the flexible tail of a node page into an entry slice
// of length size, mirroring the teacher's table_page.go /
// catalog/header_page.go unsafe-pointer-over-bytes technique.
func entriesView(ptr unsafe.Pointer, size int32) []entry {
	return (*(*[math.MaxInt32]entry)(ptr))[:int(size):int(size)]
}

package disk

import (
	"sync"

	"simpledb/src/common"
)

// Page is one frame's content plus metadata. The embedded RWMutex is the
// frame's content latch (spec.md Section 3/5): distinct from the buffer
// pool mutex, it is acquired by clients between Fetch and Unpin and never
// held while the pool mutex is held.
type Page struct {
	sync.RWMutex
	data     []byte
	pageID   common.PageID
	pinCount int
	isDirty  bool
}

func (p *Page) Data() []byte { return p.data }

func (p *Page) PageID() common.PageID { return p.pageID }

func (p *Page) PinCount() int { return p.pinCount }

func (p *Page) IsDirty() bool { return p.isDirty }

// reset clears a frame back to its "holds no page" state. Caller must hold
// the buffer pool mutex.
func (p *Page) reset() {
	for i := range p.data {
		p.data[i] = 0
	}
	p.pageID = common.InvalidPageID
	p.pinCount = 0
	p.isDirty = false
}

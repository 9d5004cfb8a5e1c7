package disk

import (
	"math/rand"
	"os"
	"testing"

	"github.com/ncw/directio"
	"github.com/stretchr/testify/require"

	"simpledb/src/common"
)

var tmpFileName = "tmp-file-bpm"

func newTestBPM(t *testing.T, size int, k int) (*BufferPoolManager, func()) {
	dm := NewDiskManager(tmpFileName)
	replacer := NewLRUKReplacer(size, k)
	bpm := NewBufferPoolManager(size, dm, replacer)
	return bpm, func() {
		dm.Close()
		os.Remove(tmpFileName)
	}
}

func TestBufferPoolManager_PinBarrier(t *testing.T) {
	// spec.md Section 8 scenario 1: pool_size=1, k=2.
	bpm, cleanup := newTestBPM(t, 1, 2)
	defer cleanup()

	p0, err := bpm.NewPage()
	require.Nil(t, err)
	require.NotNil(t, p0)
	// p0 points at a frame that is reused once p0 is evicted, so keep its id.
	p0ID := p0.PageID()

	p, err := bpm.NewPage()
	require.Nil(t, p)
	require.Error(t, err)

	require.True(t, bpm.UnpinPage(p0ID, false))

	p1, err := bpm.NewPage()
	require.Nil(t, err)
	require.NotNil(t, p1)

	_, stillThere := bpm.pageTable.Find(p0ID)
	require.False(t, stillThere)
	_, p1There := bpm.pageTable.Find(p1.PageID())
	require.True(t, p1There)
	require.Equal(t, 0, bpm.freeList.Len())
	require.Equal(t, 0, bpm.replacer.Size())
}

func TestBufferPoolManager_DirtyWriteBack(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 2, 2)
	defer cleanup()

	p0, _ := bpm.NewPage()
	// p0 points at a frame that is reused once p0 is evicted, so keep its id.
	p0ID := p0.PageID()
	p0.Data()[0] = 0x42
	require.True(t, bpm.UnpinPage(p0ID, true))

	// Flood with new pages, forcing p0 out.
	bpm.NewPage()
	bpm.UnpinPage(common.PageID(2), false)
	bpm.NewPage()

	p0Again, err := bpm.FetchPage(p0ID)
	require.Nil(t, err)
	require.Equal(t, byte(0x42), p0Again.Data()[0])
	bpm.UnpinPage(p0ID, false)
}

func TestBufferPoolManager_NewPage(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 4, 2)
	defer cleanup()

	for i := 0; i < 4; i++ {
		page, err := bpm.NewPage()
		require.Nil(t, err)
		require.NotNil(t, page)
		require.Equal(t, common.PageID(i+1), page.PageID())
		require.Equal(t, 1, page.PinCount())
		require.False(t, page.IsDirty())
		require.Equal(t, 3-i, bpm.freeList.Len())
		require.Equal(t, 0, bpm.replacer.Size())
	}
	page, err := bpm.NewPage()
	require.Nil(t, page)
	require.Error(t, err)
}

func TestBufferPoolManager_UnpinPage(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 4, 2)
	defer cleanup()

	bpm.NewPage()
	bpm.NewPage()

	require.True(t, bpm.UnpinPage(common.PageID(2), false))
	require.Equal(t, 1, bpm.replacer.Size())

	require.True(t, bpm.UnpinPage(common.PageID(1), true))
	require.Equal(t, 2, bpm.replacer.Size())

	require.False(t, bpm.UnpinPage(common.PageID(1), false))
}

func TestBufferPoolManager_FetchPage(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 4, 2)
	defer cleanup()

	bpm.NewPage()
	bpm.NewPage()

	page, err := bpm.FetchPage(common.PageID(1))
	require.Nil(t, err)
	require.Equal(t, 2, page.PinCount())

	bpm.UnpinPage(common.PageID(2), false)
	page, err = bpm.FetchPage(common.PageID(2))
	require.Nil(t, err)
	require.Equal(t, 1, page.PinCount())
}

func TestBufferPoolManager_DeletePage(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 4, 2)
	defer cleanup()

	bpm.NewPage()
	bpm.NewPage()

	require.False(t, bpm.DeletePage(common.PageID(1)))
	bpm.UnpinPage(common.PageID(1), false)
	require.True(t, bpm.DeletePage(common.PageID(1)))
	require.Equal(t, 3, bpm.freeList.Len())

	// Deleting a never-resident page is vacuously true.
	require.True(t, bpm.DeletePage(common.PageID(99)))
}

func TestBufferPoolManager_Full(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 4, 2)
	defer cleanup()

	for i := 0; i < 4; i++ {
		bpm.NewPage()
	}
	for i := 0; i < 4; i++ {
		bpm.UnpinPage(common.PageID(i+1), false)
	}
	bpm.NewPage()
	bpm.UnpinPage(common.PageID(5), false)

	for i := 0; i < 4; i++ {
		_, err := bpm.FetchPage(common.PageID(i + 1))
		require.Nil(t, err)
	}
	page, err := bpm.NewPage()
	require.Nil(t, page)
	require.Error(t, err)
	page, err = bpm.FetchPage(common.PageID(5))
	require.Nil(t, page)
	require.Error(t, err)
}

func TestBufferPoolManager_BinaryDataPersists(t *testing.T) {
	allData := make([][]byte, 0)
	{
		bpm, cleanup := newTestBPM(t, 4, 2)
		defer cleanup()

		for i := 0; i < 10; i++ {
			page, _ := bpm.NewPage()
			rand.Read(page.Data())
			copyData := directio.AlignedBlock(PageSize)
			copy(copyData, page.Data())
			allData = append(allData, copyData)
			bpm.UnpinPage(page.PageID(), true)
		}
		for i := 0; i < 10; i++ {
			page, _ := bpm.FetchPage(common.PageID(i + 1))
			require.Equal(t, allData[i], page.Data())
			bpm.UnpinPage(page.PageID(), false)
		}
		bpm.FlushAllPages()
	}
}

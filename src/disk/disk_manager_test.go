package disk

import (
	"math/rand"
	"os"
	"testing"

	"github.com/ncw/directio"
	"github.com/stretchr/testify/require"

	"simpledb/src/common"
)

var testFileName = "tmp-file-disk"

func TestNewDiskManager(t *testing.T) {
	defer os.Remove(testFileName)
	dm := NewDiskManager(testFileName)
	defer dm.Close()

	require.Equal(t, testFileName, dm.fileName)
	require.Equal(t, int32(0), dm.header.numFreePages)
	require.Equal(t, common.PageID(1), dm.header.nextPageID)

	fi, _ := os.Open(testFileName)
	defer fi.Close()
	headerPageData := directio.AlignedBlock(PageSize)
	n, err := fi.Read(headerPageData)
	require.Nil(t, err)
	require.Equal(t, PageSize, n)
	expectedHeader := createHeaderPageInfo(headerPageData)
	require.Equal(t, int32(0), expectedHeader.numFreePages)
	require.Equal(t, common.PageID(1), expectedHeader.nextPageID)
}

func TestDiskManager_ReadWrite(t *testing.T) {
	defer os.Remove(testFileName)
	dm := NewDiskManager(testFileName)

	allData := make([][]byte, 0)
	for i := 0; i < 10; i++ {
		pageID, data := dm.AllocatePage()
		rand.Read(data)
		allData = append(allData, data)
		require.Nil(t, dm.WritePage(pageID, data))
		secondData, err := dm.ReadPage(pageID)
		require.Nil(t, err)
		require.Equal(t, data, secondData)
	}
	dm.Close()

	newDM := NewDiskManager(testFileName)
	defer newDM.Close()
	for i := 0; i < 10; i++ {
		data, err := newDM.ReadPage(common.PageID(i + 1))
		require.Nil(t, err)
		require.Equal(t, allData[i], data)
	}
}

func TestDiskManager_AllocateAndDeallocate(t *testing.T) {
	defer os.Remove(testFileName)
	dm := NewDiskManager(testFileName)
	defer dm.Close()

	for i := 1; i <= 5; i++ {
		pageID, _ := dm.AllocatePage()
		require.Equal(t, common.PageID(i), pageID)
		require.Equal(t, common.PageID(i+1), dm.header.nextPageID)
		require.Equal(t, int32(0), dm.header.numFreePages)
	}

	for i := 1; i <= 5; i++ {
		dm.DeallocatePage(common.PageID(i))
		require.Equal(t, common.PageID(6), dm.header.nextPageID)
		require.Equal(t, int32(i), dm.header.numFreePages)
		require.Equal(t, common.PageID(i), dm.header.get(int32(i-1)))
	}

	for i := 1; i <= 5; i++ {
		dm.AllocatePage()
	}
	for i := 1; i <= 3; i++ {
		dm.DeallocatePage(common.PageID(i))
	}
	for i := 1; i <= 3; i++ {
		pageID, _ := dm.AllocatePage()
		require.Equal(t, common.PageID(i), pageID)
		require.Equal(t, common.PageID(6), dm.header.nextPageID)
		require.Equal(t, int32(3-i), dm.header.numFreePages)
	}
	for i := 1; i <= 5; i++ {
		pageID, _ := dm.AllocatePage()
		require.Equal(t, common.PageID(i+5), pageID)
		require.Equal(t, common.PageID(i+6), dm.header.nextPageID)
		require.Equal(t, int32(0), dm.header.numFreePages)
	}
}

func TestDiskManager_HeaderPersists(t *testing.T) {
	defer os.Remove(testFileName)
	dm := NewDiskManager(testFileName)

	for i := 0; i < 5; i++ {
		dm.AllocatePage()
	}
	dm.DeallocatePage(common.PageID(2))
	dm.DeallocatePage(common.PageID(4))
	dm.Close()

	newDM := NewDiskManager(testFileName)
	defer newDM.Close()

	require.Equal(t, int32(2), newDM.header.numFreePages)
	require.Equal(t, common.PageID(6), newDM.header.nextPageID)
	require.Equal(t, common.PageID(2), newDM.header.get(0))
	require.Equal(t, common.PageID(4), newDM.header.get(1))
}

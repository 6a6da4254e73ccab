package pages

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"ridgedb/common"
)

/*
HeapPage stores a page's worth of table tuples as an unordered slot array: a deleted
or empty slot can be reused by the next insert, so slot indices (and therefore RIDs)
stay stable across inserts/deletes of other tuples on the same page - required since
a RID must keep pointing at the same tuple for the lifetime of that tuple.

Header format (size in bytes):
  ------------------------------------------------------------------
  | FreeSpacePointer (4) | SlotArrLen (2) | NextPageID (8) | PrevPageID (8) |
  ------------------------------------------------------------------
*/

type HeapPageHeader struct {
	FreeSpacePointer uint32
	SlotArrLen       uint16
	NextPageID       PageID
	PrevPageID       PageID
}

type HeapPageArrEntry struct {
	Offset uint32
	Size   uint32
}

// deleteMask is stored in the high bit of a slot's Size field to mark a tuple as
// soft-deleted without losing its byte range (needed so ROLLBACKDELETE can undo it).
const deleteMask uint32 = 1 << 31

var HeapPageHeaderSize = binary.Size(HeapPageHeader{})

// HeapPage wraps a *Page by pointer, not value: every method below must mutate the
// same backing array the buffer pool holds, not a private copy of it.
type HeapPage struct {
	*Page
}

func InitHeapPage(p *Page) *HeapPage {
	hp := &HeapPage{Page: p}
	hp.SetHeader(HeapPageHeader{FreeSpacePointer: uint32(PageSize)})
	return hp
}

func AsHeapPage(p *Page) *HeapPage {
	return &HeapPage{Page: p}
}

func (hp *HeapPage) GetHeader() HeapPageHeader {
	reader := bytes.NewReader(hp.GetData())
	dest := HeapPageHeader{}
	binary.Read(reader, binary.BigEndian, &dest)
	return dest
}

func (hp *HeapPage) SetHeader(h HeapPageHeader) {
	buf := bytes.Buffer{}
	err := binary.Write(&buf, binary.BigEndian, &h)
	common.PanicIfErr(err)
	copy(hp.GetData(), buf.Bytes())
}

func (hp *HeapPage) GetFreeSpace() int {
	h := hp.GetHeader()
	startingOffset := HeapPageHeaderSize + int(h.SlotArrLen)*SlotArrEntrySize
	return int(h.FreeSpacePointer) - startingOffset
}

// GetNextIdx returns the next not-deleted slot index after currIdxAtSlot, or an error
// if currIdxAtSlot is the last live tuple on the page.
func (hp *HeapPage) GetNextIdx(currIdxAtSlot int) (int, error) {
	arr := hp.getSlotArr()
	for i := currIdxAtSlot + 1; i < len(arr); i++ {
		if !isDeleted(arr[i]) {
			return i, nil
		}
	}
	return 0, errors.New("no more live tuples on page")
}

func (hp *HeapPage) GetTuple(idxAtSlot int) []byte {
	arr := hp.getSlotArr()
	if idxAtSlot >= len(arr) {
		return nil
	}
	entry := arr[idxAtSlot]
	if entry.Size == 0 || isDeleted(entry) {
		return nil
	}
	return hp.GetData()[entry.Offset : entry.Offset+entry.Size]
}

func (hp *HeapPage) InsertTuple(data []byte) (int, error) {
	if hp.GetFreeSpace() < len(data)+SlotArrEntrySize {
		return 0, errors.New("not enough space in heap page")
	}

	arr := hp.getSlotArr()
	i := 0
	for ; i < len(arr); i++ {
		if arr[i].Size == 0 {
			break
		}
	}

	h := hp.GetHeader()
	h.FreeSpacePointer -= uint32(len(data))
	if i == len(arr) {
		h.SlotArrLen++
	}
	copy(hp.GetData()[h.FreeSpacePointer:], data)
	hp.SetHeader(h)
	hp.setInSlotArr(i, HeapPageArrEntry{Offset: h.FreeSpacePointer, Size: uint32(len(data))})
	return i, nil
}

// InsertTupleAt writes data into a specific slot index rather than the first free
// one, growing the slot array with empty entries if idxAtSlot falls past its current
// end. Used by recovery's redo pass, which must re-create a tuple at the exact RID
// recorded in the log rather than wherever the page would otherwise place it.
func (hp *HeapPage) InsertTupleAt(idxAtSlot int, data []byte) error {
	if hp.GetFreeSpace() < len(data)+SlotArrEntrySize {
		return errors.New("not enough space in heap page")
	}

	h := hp.GetHeader()
	for int(h.SlotArrLen) <= idxAtSlot {
		hp.setInSlotArr(int(h.SlotArrLen), HeapPageArrEntry{})
		h.SlotArrLen++
	}

	h.FreeSpacePointer -= uint32(len(data))
	copy(hp.GetData()[h.FreeSpacePointer:], data)
	hp.SetHeader(h)
	hp.setInSlotArr(idxAtSlot, HeapPageArrEntry{Offset: h.FreeSpacePointer, Size: uint32(len(data))})
	return nil
}

// UpdateTuple overwrites the tuple at idxAtSlot with data, re-using the slot. It is
// only valid for a live, not-deleted tuple.
func (hp *HeapPage) UpdateTuple(idxAtSlot int, data []byte) error {
	oldData := hp.GetTuple(idxAtSlot)
	if oldData == nil {
		return fmt.Errorf("tried to update a nonexistent or deleted tuple idxAtSlot: %v, pageID: %v", idxAtSlot, hp.GetPageId())
	}

	if hp.GetFreeSpace()+len(oldData) < len(data) {
		return errors.New("not enough space in heap page")
	}

	if err := hp.hardDelete(idxAtSlot); err != nil {
		panic(err)
	}

	h := hp.GetHeader()
	h.FreeSpacePointer -= uint32(len(data))
	copy(hp.GetData()[h.FreeSpacePointer:], data)
	hp.SetHeader(h)
	hp.setInSlotArr(idxAtSlot, HeapPageArrEntry{Offset: h.FreeSpacePointer, Size: uint32(len(data))})
	return nil
}

// MarkDelete soft-deletes a tuple: its bytes and slot stay put so RollbackDelete can
// restore it, but GetTuple/iteration treat it as gone.
func (hp *HeapPage) MarkDelete(idxAtSlot int) error {
	arr := hp.getSlotArr()
	if idxAtSlot >= len(arr) {
		return errors.New("slot cannot be found")
	}
	entry := arr[idxAtSlot]
	if isDeleted(entry) {
		return errors.New("slot is already deleted")
	}
	entry.Size |= deleteMask
	hp.setInSlotArr(idxAtSlot, entry)
	return nil
}

// RollbackDelete undoes a prior MarkDelete, making the tuple live again.
func (hp *HeapPage) RollbackDelete(idxAtSlot int) error {
	arr := hp.getSlotArr()
	if idxAtSlot >= len(arr) {
		return errors.New("slot cannot be found")
	}
	entry := arr[idxAtSlot]
	entry.Size &^= deleteMask
	hp.setInSlotArr(idxAtSlot, entry)
	return nil
}

// ApplyDelete permanently reclaims the space of a (possibly soft-deleted) tuple.
func (hp *HeapPage) ApplyDelete(idxAtSlot int) error {
	return hp.hardDelete(idxAtSlot)
}

func (hp *HeapPage) hardDelete(idxAtSlot int) error {
	arr := hp.getSlotArr()
	if idxAtSlot >= len(arr) {
		return errors.New("slot cannot be found")
	}

	entry := arr[idxAtSlot]
	size := entry.Size &^ deleteMask
	offset := entry.Offset

	h := hp.GetHeader()
	data := hp.GetData()

	// shift every tuple stored before this one's offset up by its size to close the gap
	copy(data[h.FreeSpacePointer+size:offset+size], data[h.FreeSpacePointer:offset])
	h.FreeSpacePointer += size

	deletedOffset := offset
	hp.setInSlotArr(idxAtSlot, HeapPageArrEntry{Offset: 0, Size: 0})
	hp.SetHeader(h)

	for i := 0; i < int(h.SlotArrLen); i++ {
		cur := hp.getFromSlotArr(i)
		rawSize := cur.Size &^ deleteMask
		if rawSize == 0 || cur.Offset >= deletedOffset {
			continue
		}
		cur.Offset += size
		hp.setInSlotArr(i, cur)
	}

	return nil
}

func (hp *HeapPage) getSlotArr() []HeapPageArrEntry {
	h := hp.GetHeader()
	return readHeapEntries(int(h.SlotArrLen), hp.GetData()[HeapPageHeaderSize:])
}

func (hp *HeapPage) getFromSlotArr(idx int) HeapPageArrEntry {
	return hp.getSlotArr()[idx]
}

func (hp *HeapPage) setInSlotArr(idx int, val HeapPageArrEntry) {
	offset := HeapPageHeaderSize + SlotArrEntrySize*idx
	buf := bytes.Buffer{}
	err := binary.Write(&buf, binary.BigEndian, &val)
	common.PanicIfErr(err)
	if offset >= PageSize {
		panic("page overflow error")
	}
	copy(hp.GetData()[offset:], buf.Bytes())
}

func isDeleted(entry HeapPageArrEntry) bool {
	return entry.Size&deleteMask != 0 || entry.Size == 0
}

func readHeapEntries(count int, data []byte) []HeapPageArrEntry {
	reader := bytes.NewReader(data)
	res := make([]HeapPageArrEntry, 0, count)
	for i := 0; i < count; i++ {
		var e HeapPageArrEntry
		err := binary.Read(reader, binary.BigEndian, &e)
		common.PanicIfErr(err)
		res = append(res, e)
	}
	return res
}

package pages

import (
	"bytes"
	"encoding/binary"
	"errors"

	"ridgedb/common"
)

/*
SlottedPage is a dense, ORDERED slot array backing B+ tree node pages: slot i always
holds the i-th logical entry, and InsertAt/DeleteAt shift subsequent slots rather than
hunting for the first empty one (as a heap page would). Content is rewritten on every
structural change, which keeps the bookkeeping simple at the cost of an O(n) rebuild
per mutation - acceptable since node fanout is small relative to page size.

Page format:
  ---------------------------------------------------------------
  | HEADER | SLOT ARRAY | ... FREE SPACE ... | ... TUPLE DATA ... |
  ---------------------------------------------------------------
                                            ^
                                            free space pointer

Tuple bytes are packed from the end of the page backward.

Header format (size in bytes):
  ------------------------------------------
  | FreeSpacePointer (4) | SlotArrLen (2)   |
  ------------------------------------------
followed by SlotArrLen entries of (Offset uint32, Size uint32).
*/

type SlottedPageHeader struct {
	FreeSpacePointer uint32
	SlotArrLen       uint16
}

type SlotArrEntry struct {
	Offset uint32
	Size   uint32
}

const SlotArrEntrySize = 8

var HeaderSize = binary.Size(SlottedPageHeader{})

// SlottedPage wraps a *Page by pointer, not value: every method below must mutate
// the same backing array the buffer pool holds, not a private copy of it.
type SlottedPage struct {
	*Page
}

func InitSlottedPage(p *Page) SlottedPage {
	sp := SlottedPage{Page: p}
	sp.SetHeader(SlottedPageHeader{FreeSpacePointer: uint32(PageSize)})
	return sp
}

func CastSlottedPage(p *Page) SlottedPage {
	return SlottedPage{Page: p}
}

func (sp *SlottedPage) GetHeader() SlottedPageHeader {
	reader := bytes.NewReader(sp.GetData())
	dest := SlottedPageHeader{}
	binary.Read(reader, binary.BigEndian, &dest)
	return dest
}

func (sp *SlottedPage) SetHeader(h SlottedPageHeader) {
	buf := bytes.Buffer{}
	err := binary.Write(&buf, binary.BigEndian, &h)
	common.PanicIfErr(err)
	copy(sp.GetData(), buf.Bytes())
}

func (sp *SlottedPage) Count() uint16 {
	return sp.GetHeader().SlotArrLen
}

func (sp *SlottedPage) Cap() int {
	return PageSize - HeaderSize
}

func (sp *SlottedPage) EmptySpace() int {
	h := sp.GetHeader()
	used := int(h.SlotArrLen) * SlotArrEntrySize
	free := int(h.FreeSpacePointer) - HeaderSize - used
	if free < 0 {
		return 0
	}
	return free
}

func (sp *SlottedPage) getSlotArr() []SlotArrEntry {
	h := sp.GetHeader()
	return readSlotArr(int(h.SlotArrLen), sp.GetData()[HeaderSize:])
}

func (sp *SlottedPage) getFromSlotArr(idx int) SlotArrEntry {
	return sp.getSlotArr()[idx]
}

func (sp *SlottedPage) setInSlotArr(idx int, val SlotArrEntry) {
	offset := HeaderSize + SlotArrEntrySize*idx
	buf := bytes.Buffer{}
	err := binary.Write(&buf, binary.BigEndian, &val)
	common.PanicIfErr(err)
	copy(sp.GetData()[offset:], buf.Bytes())
}

func (sp *SlottedPage) GetAt(idx int) []byte {
	e := sp.getFromSlotArr(idx)
	if e.Size == 0 {
		return nil
	}
	return sp.GetData()[e.Offset : e.Offset+e.Size]
}

// InsertAt inserts data as a new slot at logical index idx, shifting every later
// slot one position to the right.
func (sp *SlottedPage) InsertAt(idx int, data []byte) error {
	tuples := sp.tuples()
	if idx > len(tuples) {
		idx = len(tuples)
	}
	tuples = append(tuples, nil)
	copy(tuples[idx+1:], tuples[idx:])
	tuples[idx] = data
	return sp.rebuild(tuples)
}

// SetAt replaces the content of the slot at idx; idx equal to Count appends
// a new slot at the end.
func (sp *SlottedPage) SetAt(idx int, data []byte) error {
	tuples := sp.tuples()
	if idx == len(tuples) {
		tuples = append(tuples, data)
		return sp.rebuild(tuples)
	}
	if idx > len(tuples) {
		return errors.New("slot index out of range")
	}
	tuples[idx] = data
	return sp.rebuild(tuples)
}

// DeleteAt removes the slot at idx, shifting every later slot one position to the left.
func (sp *SlottedPage) DeleteAt(idx int) error {
	tuples := sp.tuples()
	if idx >= len(tuples) {
		return errors.New("slot index out of range")
	}
	tuples = append(tuples[:idx], tuples[idx+1:]...)
	return sp.rebuild(tuples)
}

func (sp *SlottedPage) tuples() [][]byte {
	arr := sp.getSlotArr()
	data := sp.GetData()
	out := make([][]byte, len(arr))
	for i, e := range arr {
		b := make([]byte, e.Size)
		copy(b, data[e.Offset:e.Offset+e.Size])
		out[i] = b
	}
	return out
}

func (sp *SlottedPage) rebuild(tuples [][]byte) error {
	total := 0
	for _, t := range tuples {
		total += len(t)
	}
	if HeaderSize+len(tuples)*SlotArrEntrySize+total > PageSize {
		return errors.New("not enough space in slotted page")
	}

	data := sp.GetData()
	offset := uint32(PageSize)
	entries := make([]SlotArrEntry, len(tuples))
	// lay tuples out back to front so the slot array (growing forward from the
	// header) and tuple bytes (growing backward from the page end) never collide.
	for i := len(tuples) - 1; i >= 0; i-- {
		t := tuples[i]
		offset -= uint32(len(t))
		copy(data[offset:], t)
		entries[i] = SlotArrEntry{Offset: offset, Size: uint32(len(t))}
	}

	sp.SetHeader(SlottedPageHeader{FreeSpacePointer: offset, SlotArrLen: uint16(len(entries))})
	for i, e := range entries {
		sp.setInSlotArr(i, e)
	}
	return nil
}

func readSlotArr(count int, data []byte) []SlotArrEntry {
	reader := bytes.NewReader(data)
	res := make([]SlotArrEntry, 0, count)
	for i := 0; i < count; i++ {
		var e SlotArrEntry
		err := binary.Read(reader, binary.BigEndian, &e)
		common.PanicIfErr(err)
		res = append(res, e)
	}
	return res
}

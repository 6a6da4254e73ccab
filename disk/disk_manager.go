package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"ridgedb/disk/pages"
)

// IDiskManager is the storage engine's sole collaborator for durable bytes: fixed-size
// page blocks in the data file, plus an append-only log file the WAL writes to and
// recovery reads back from.
type IDiskManager interface {
	ReadPage(pageId pages.PageID, dest []byte) error
	WritePage(pageId pages.PageID, data []byte) error

	// AllocatePage reserves a fresh PageID, reusing one from the free list if available.
	AllocatePage() pages.PageID
	// DeallocatePage returns a PageID to the free list so AllocatePage can reuse it.
	DeallocatePage(pageId pages.PageID)

	WriteLog(data []byte) error
	// ReadLog reads up to len(dest) bytes starting at offset, returning the number of
	// bytes actually read. io.EOF is returned once offset is past the end of the log.
	ReadLog(dest []byte, offset int64) (int, error)

	Close() error
}

// FlushInstantly forces fsync after every page write. Real deployments want this true;
// it is only worth setting to false to speed up tests that don't simulate power loss.
const FlushInstantly = true

var _ IDiskManager = &Manager{}

// Manager is the *os.File backed implementation of IDiskManager. Page 0 of the data
// file is reserved for the free-list header; real pages start at id 1.
type Manager struct {
	file     *os.File
	logFile  *os.File
	mu       sync.Mutex
	header   *freeListHeader
}

func NewDiskManager(dbFile string) (*Manager, error) {
	f, err := os.OpenFile(dbFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	lf, err := os.OpenFile(dbFile+".log", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	m := &Manager{file: f, logFile: lf}

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		log.Printf("disk: initializing new database file %s", dbFile)
		m.setHeader(freeListHeader{})
	}

	return m, nil
}

func (m *Manager) ReadPage(pageId pages.PageID, dest []byte) error {
	if len(dest) != pages.PageSize {
		return fmt.Errorf("disk: ReadPage destination must be %d bytes, got %d", pages.PageSize, len(dest))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageId) * int64(pages.PageSize)
	n, err := m.file.ReadAt(dest, off)
	if err != nil {
		return err
	}
	if n != pages.PageSize {
		return fmt.Errorf("disk: short read for page %d: got %d bytes", pageId, n)
	}
	return nil
}

func (m *Manager) WritePage(pageId pages.PageID, data []byte) error {
	if len(data) != pages.PageSize {
		return fmt.Errorf("disk: WritePage data must be %d bytes, got %d", pages.PageSize, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageId) * int64(pages.PageSize)
	n, err := m.file.WriteAt(data, off)
	if err != nil {
		return err
	}
	if n != pages.PageSize {
		return fmt.Errorf("disk: short write for page %d: wrote %d bytes", pageId, n)
	}

	if FlushInstantly {
		return m.file.Sync()
	}
	return nil
}

func (m *Manager) AllocatePage() pages.PageID {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.getHeaderLocked()
	if h.Head != 0 {
		return m.popFreeListLocked()
	}

	h.LastPageID++
	m.setHeaderLocked(h)
	return pages.PageID(h.LastPageID)
}

func (m *Manager) DeallocatePage(pageId pages.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.getHeaderLocked()
	if h.Head == 0 {
		h.Head = uint64(pageId)
		h.Tail = uint64(pageId)
		m.setHeaderLocked(h)
		return
	}

	data := make([]byte, pages.PageSize)
	if err := m.readPageLocked(pages.PageID(h.Tail), data); err != nil && !errors.Is(err, io.EOF) {
		panic(err)
	}
	binary.BigEndian.PutUint64(data, uint64(pageId))
	if err := m.writePageLocked(pages.PageID(h.Tail), data); err != nil {
		panic(err)
	}

	h.Tail = uint64(pageId)
	m.setHeaderLocked(h)
}

func (m *Manager) popFreeListLocked() pages.PageID {
	h := m.getHeaderLocked()
	popped := h.Head

	if h.Head == h.Tail {
		h.Head, h.Tail = 0, 0
		m.setHeaderLocked(h)
		return pages.PageID(popped)
	}

	data := make([]byte, pages.PageSize)
	if err := m.readPageLocked(pages.PageID(h.Head), data); err != nil {
		panic(err)
	}
	h.Head = binary.BigEndian.Uint64(data)
	m.setHeaderLocked(h)
	return pages.PageID(popped)
}

func (m *Manager) WriteLog(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.logFile.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("disk: short log write: wrote %d of %d bytes", n, len(data))
	}
	if FlushInstantly {
		return m.logFile.Sync()
	}
	return nil
}

func (m *Manager) ReadLog(dest []byte, offset int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.logFile.ReadAt(dest, offset)
}

func (m *Manager) Close() error {
	if err := m.logFile.Close(); err != nil {
		return err
	}
	return m.file.Close()
}

// freeListHeader lives in page 0 and tracks both the data file's high-water mark and
// the singly-linked list of freed pages available for reuse.
type freeListHeader struct {
	Head       uint64
	Tail       uint64
	LastPageID uint64
}

func (m *Manager) getHeaderLocked() freeListHeader {
	if m.header != nil {
		return *m.header
	}
	data := make([]byte, pages.PageSize)
	if err := m.readPageLocked(0, data); err != nil && !errors.Is(err, io.EOF) {
		panic(err)
	}
	h := decodeFreeListHeader(data)
	m.header = &h
	return h
}

func (m *Manager) setHeaderLocked(h freeListHeader) {
	m.header = &h
	data := make([]byte, pages.PageSize)
	encodeFreeListHeader(h, data)
	if err := m.writePageLocked(0, data); err != nil {
		panic(err)
	}
}

func (m *Manager) setHeader(h freeListHeader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setHeaderLocked(h)
}

func (m *Manager) readPageLocked(pageId pages.PageID, dest []byte) error {
	off := int64(pageId) * int64(pages.PageSize)
	n, err := m.file.ReadAt(dest, off)
	if n == pages.PageSize {
		return nil
	}
	if err != nil {
		return err
	}
	return io.EOF
}

func (m *Manager) writePageLocked(pageId pages.PageID, data []byte) error {
	off := int64(pageId) * int64(pages.PageSize)
	_, err := m.file.WriteAt(data, off)
	return err
}

func decodeFreeListHeader(data []byte) freeListHeader {
	return freeListHeader{
		Head:       binary.BigEndian.Uint64(data),
		Tail:       binary.BigEndian.Uint64(data[8:]),
		LastPageID: binary.BigEndian.Uint64(data[16:]),
	}
}

func encodeFreeListHeader(h freeListHeader, dest []byte) {
	binary.BigEndian.PutUint64(dest, h.Head)
	binary.BigEndian.PutUint64(dest[8:], h.Tail)
	binary.BigEndian.PutUint64(dest[16:], h.LastPageID)
}

package disk

import (
	"io"
	"sync"

	"ridgedb/disk/pages"
)

var _ IDiskManager = &MemDiskManager{}

// MemDiskManager is an in-memory IDiskManager used by unit tests that want to exercise
// the buffer pool, B+ tree or recovery logic without touching the filesystem.
type MemDiskManager struct {
	mu         sync.Mutex
	pageData   map[pages.PageID][]byte
	freeList   []pages.PageID
	nextPageID uint64
	log        []byte
}

func NewMemDiskManager() *MemDiskManager {
	return &MemDiskManager{pageData: make(map[pages.PageID][]byte)}
}

func (m *MemDiskManager) ReadPage(pageId pages.PageID, dest []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.pageData[pageId]
	if !ok {
		return io.EOF
	}
	copy(dest, data)
	return nil
}

func (m *MemDiskManager) WritePage(pageId pages.PageID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	m.pageData[pageId] = cp
	return nil
}

func (m *MemDiskManager) AllocatePage() pages.PageID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return id
	}

	m.nextPageID++
	return pages.PageID(m.nextPageID)
}

func (m *MemDiskManager) DeallocatePage(pageId pages.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pageData, pageId)
	m.freeList = append(m.freeList, pageId)
}

func (m *MemDiskManager) WriteLog(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log = append(m.log, data...)
	return nil
}

func (m *MemDiskManager) ReadLog(dest []byte, offset int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if offset >= int64(len(m.log)) {
		return 0, io.EOF
	}
	n := copy(dest, m.log[offset:])
	return n, nil
}

func (m *MemDiskManager) Close() error {
	return nil
}

package btree

import (
	"errors"
	"sync"

	"ridgedb/disk/pages"
	"ridgedb/txn"
)

var _ BPager = &MemBPager{}

// MemBPager is an in-memory BPager: every page lives in a plain map instead
// of going through a disk manager or buffer pool, so tests that only care
// about tree structure (splitting, merging, concurrent latch-coupling) don't
// need to stand up the rest of the storage engine to exercise it.
type MemBPager struct {
	mu            sync.Mutex
	pageIDCounter uint64
	pages         map[Pointer]*memBPage
	overflows     map[Pointer]*memOverflow
}

func NewMemBPager() *MemBPager {
	return &MemBPager{
		pages:     make(map[Pointer]*memBPage),
		overflows: make(map[Pointer]*memOverflow),
	}
}

func (b *MemBPager) NewBPage(_ txn.Transaction) (BPageReleaser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pageIDCounter++
	page := newMemBPage(b.pageIDCounter)
	page.WLatch()
	b.pages[Pointer(b.pageIDCounter)] = page

	return &writeBpageReleaser{page, b}, nil
}

func (b *MemBPager) GetBPageToRead(_ txn.Transaction, p Pointer) (BPageReleaser, error) {
	page, err := b.lookup(p)
	if err != nil {
		return nil, err
	}
	page.RLatch()
	return &readBpageReleaser{page, b}, nil
}

func (b *MemBPager) GetBPageToWrite(_ txn.Transaction, p Pointer) (BPageReleaser, error) {
	page, err := b.lookup(p)
	if err != nil {
		return nil, err
	}
	page.WLatch()
	return &writeBpageReleaser{page, b}, nil
}

func (b *MemBPager) GetBPage(_ txn.Transaction, p Pointer) (BPage, error) {
	return b.lookup(p)
}

func (b *MemBPager) lookup(p Pointer) (*memBPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, ok := b.pages[p]
	if !ok {
		return nil, errors.New("btree: page not found in mem bpager")
	}
	return page, nil
}

// Unpin is a no-op: MemBPager never evicts, so there is no frame to return.
func (b *MemBPager) Unpin(p Pointer) {}

func (b *MemBPager) FreeBPage(_ txn.Transaction, p Pointer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pages, p)
}

func (b *MemBPager) CreateOverflow(_ txn.Transaction) (OverflowReleaser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pageIDCounter++
	of := newMemOverflow(b.pageIDCounter)
	b.overflows[Pointer(b.pageIDCounter)] = of

	return of, nil
}

func (b *MemBPager) FreeOverflow(_ txn.Transaction, p Pointer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.overflows, p)
	return nil
}

func (b *MemBPager) GetOverflowReleaser(p Pointer) (OverflowReleaser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflows[p], nil
}

var _ BPage = &memBPage{}

type memBPage struct {
	pages.SlottedPage
}

func newMemBPage(pageID uint64) *memBPage {
	return &memBPage{SlottedPage: pages.InitSlottedPage(pages.NewPage(pages.PageID(pageID)))}
}

func (m *memBPage) DeleteAt(_ txn.Transaction, idx int) error {
	return m.SlottedPage.DeleteAt(idx)
}

func (m *memBPage) InsertAt(_ txn.Transaction, idx int, data []byte) error {
	return m.SlottedPage.InsertAt(idx, data)
}

func (m *memBPage) SetAt(_ txn.Transaction, idx int, data []byte) error {
	return m.SlottedPage.SetAt(idx, data)
}

func (m *memBPage) GetPageId() Pointer {
	return Pointer(m.SlottedPage.GetPageId())
}

// readBpageReleaser and writeBpageReleaser do what bpager_buffer_impl.go's
// single bufferBPageReleaser does with its write flag: Unpin plus the
// matching latch release, differing only in which latch that is.
type readBpageReleaser struct {
	*memBPage
	bpager BPager
}

func (n *readBpageReleaser) Release() {
	n.bpager.Unpin(n.GetPageId())
	n.RUnLatch()
}

type writeBpageReleaser struct {
	*memBPage
	bpager BPager
}

func (n *writeBpageReleaser) Release() {
	n.bpager.Unpin(n.GetPageId())
	n.WUnlatch()
}

var _ OverflowReleaser = &memOverflow{}

// memOverflow stores an overflow chain's slots directly in a map keyed by a
// monotonically increasing index, rather than in a slotted page: overflow
// content in the in-memory backend never needs to share a page-sized buffer
// with anything else, so there is nothing the slotted-page format would buy.
type memOverflow struct {
	pageID uint64

	mu         sync.Mutex
	data       map[int][]byte
	idxCounter int
}

func newMemOverflow(pageID uint64) *memOverflow {
	return &memOverflow{pageID: pageID, data: make(map[int][]byte)}
}

func (m *memOverflow) GetPageId() uint64 {
	return m.pageID
}

func (m *memOverflow) GetAt(_ txn.Transaction, idx int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.data[idx]
	if !ok {
		return nil, errors.New("btree: overflow slot not found")
	}
	return d, nil
}

func (m *memOverflow) Insert(_ txn.Transaction, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.idxCounter++
	m.data[m.idxCounter] = data
	return m.idxCounter, nil
}

func (m *memOverflow) SetAt(_ txn.Transaction, idx int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[idx] = data
	return nil
}

func (m *memOverflow) DeleteAt(_ txn.Transaction, idx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[idx]; !ok {
		panic("btree: delete of nonexistent overflow slot")
	}
	delete(m.data, idx)
	return nil
}

func (m *memOverflow) Count(_ txn.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data), nil
}

func (m *memOverflow) Free(_ txn.Transaction) error {
	return nil
}

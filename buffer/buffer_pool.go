// Package buffer implements the fixed-size page cache every on-disk
// structure (heap pages, B+ tree pages) is read and written through: a pool
// of frames, a replacement policy deciding which unpinned frame to evict,
// and the WAL-before-data-page rule that keeps a crash recoverable.
package buffer

import (
	"fmt"
	"sync"

	"ridgedb/common"
	"ridgedb/disk"
	"ridgedb/disk/pages"
	"ridgedb/wal"

	"ridgedb/buffer/exthash"
)

// Pool is the buffer pool's external surface: fetch a page by id (pinning
// it), release it, allocate or free a page, and force every dirty frame to
// disk. wal.PageStore is satisfied by FetchPage/UnpinPage alone, so recovery
// can drive the same pool callers use at runtime.
type Pool interface {
	FetchPage(id pages.PageID) (*pages.Page, error)
	UnpinPage(id pages.PageID, isDirty bool) error
	NewPage() (*pages.Page, error)
	FreePage(id pages.PageID) error
	FlushAll() error
}

var _ Pool = &BufferPool{}
var _ wal.PageStore = &BufferPool{}

// BufferPool is the disk.IDiskManager-backed implementation of Pool, grounded on the
// teacher's buffer pool but with its page table replaced by an extendible
// hash directory instead of a plain Go map, per the spec's directory reuse.
type BufferPool struct {
	frames      []*pages.Page
	pageTable   *exthash.Directory[int] // PageID -> frame index
	emptyFrames []int

	replacer IReplacer
	disk     disk.IDiskManager
	lm       *wal.LogManager

	mu       sync.Mutex
	opLocks  *common.KeyMutex[pages.PageID]
}

// pageTableBucketCapacity bounds how many page ids the hash directory packs
// per bucket before splitting; small pools split often but stay cheap,
// large pools amortize the directory doubling cost.
const pageTableBucketCapacity = 4

func NewBufferPool(poolSize int, d disk.IDiskManager, lm *wal.LogManager) *BufferPool {
	frames := make([]*pages.Page, poolSize)
	empty := make([]int, poolSize)
	for i := range frames {
		frames[i] = pages.NewPage(0)
		empty[i] = i
	}

	return &BufferPool{
		frames:      frames,
		pageTable:   exthash.New[int](pageTableBucketCapacity),
		emptyFrames: empty,
		replacer:    NewLruReplacer(poolSize),
		disk:        d,
		lm:          lm,
		opLocks:     &common.KeyMutex[pages.PageID]{},
	}
}

// FetchPage returns the page for id, pinned, reading it from disk the first
// time it is requested. Concurrent fetches of the same id are serialized by
// a per-id lock so only one of them does the disk read.
func (b *BufferPool) FetchPage(id pages.PageID) (*pages.Page, error) {
	release := b.opLocks.Lock(id)
	defer release()

	b.mu.Lock()
	if frameIdx, ok := b.pageTable.Find(uint64(id)); ok {
		page := b.frames[frameIdx]
		if page.PinCount() == 0 {
			b.replacer.Pin(frameIdx)
		}
		page.IncrPinCount()
		b.mu.Unlock()
		return page, nil
	}

	frameIdx, err := b.reserveFrameLocked()
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}

	page := b.frames[frameIdx]
	page.Reset(id)
	b.mu.Unlock()

	if err := b.disk.ReadPage(id, page.GetData()); err != nil {
		b.mu.Lock()
		b.pageTable.Remove(uint64(id))
		b.emptyFrames = append(b.emptyFrames, frameIdx)
		b.mu.Unlock()
		return nil, err
	}

	b.mu.Lock()
	b.pageTable.Insert(uint64(id), frameIdx)
	page.IncrPinCount()
	b.replacer.Pin(frameIdx)
	b.mu.Unlock()

	return page, nil
}

// UnpinPage decrements id's pin count, marking it dirty if isDirty is true,
// and makes the frame eligible for eviction once no pins remain.
func (b *BufferPool) UnpinPage(id pages.PageID, isDirty bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameIdx, ok := b.pageTable.Find(uint64(id))
	if !ok {
		return fmt.Errorf("buffer: unpin of page %d not resident in pool", id)
	}

	page := b.frames[frameIdx]
	if isDirty {
		page.SetDirty()
	}
	if page.PinCount() == 0 {
		return fmt.Errorf("buffer: unpin of page %d with zero pin count", id)
	}
	page.DecrPinCount()
	if page.PinCount() == 0 {
		b.replacer.Unpin(frameIdx)
	}
	return nil
}

// NewPage allocates a fresh page from the disk manager's free list (or, if
// empty, a brand new page id), installs it pinned in a frame and logs an
// allocation record so recovery knows the page existed.
func (b *BufferPool) NewPage() (*pages.Page, error) {
	b.mu.Lock()
	frameIdx, err := b.reserveFrameLocked()
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.mu.Unlock()

	id := b.disk.AllocatePage()

	b.mu.Lock()
	page := b.frames[frameIdx]
	page.Reset(id)
	page.IncrPinCount()
	b.pageTable.Insert(uint64(id), frameIdx)
	b.replacer.Pin(frameIdx)
	b.mu.Unlock()

	if common.EnableLogging {
		lsn := b.lm.AppendLogRecord(wal.NewNewPageRecord(0, wal.InvalidLSN))
		page.SetPageLSN(lsn)
	}

	return page, nil
}

// FreePage returns id to the disk manager's free list. The caller must have
// already unpinned it; FreePage evicts it from the pool without writing its
// (now-irrelevant) contents back.
func (b *BufferPool) FreePage(id pages.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameIdx, ok := b.pageTable.Find(uint64(id)); ok {
		page := b.frames[frameIdx]
		if page.PinCount() > 0 {
			return fmt.Errorf("buffer: cannot free pinned page %d", id)
		}
		b.pageTable.Remove(uint64(id))
		b.replacer.Pin(frameIdx) // drop it from the unpinned list without a matching Unpin
		b.emptyFrames = append(b.emptyFrames, frameIdx)
	}

	b.disk.DeallocatePage(id)
	return nil
}

// FlushAll forces every dirty, resident page to disk regardless of pin
// state, honoring the same WAL-before-data-page ordering as eviction.
func (b *BufferPool) FlushAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, frame := range b.frames {
		if frame.GetPageId() == 0 || !frame.IsDirty() {
			continue
		}
		if err := b.flushFrameLocked(frame); err != nil {
			return err
		}
	}
	return nil
}

// reserveFrameLocked returns an empty frame index, evicting the replacer's
// chosen victim if the pool is full. Caller holds b.mu.
func (b *BufferPool) reserveFrameLocked() (int, error) {
	if len(b.emptyFrames) > 0 {
		idx := b.emptyFrames[len(b.emptyFrames)-1]
		b.emptyFrames = b.emptyFrames[:len(b.emptyFrames)-1]
		return idx, nil
	}

	victim, err := b.replacer.ChooseVictim()
	if err != nil {
		return 0, fmt.Errorf("buffer: pool exhausted, no frame to evict: %w", err)
	}

	page := b.frames[victim]
	if page.IsDirty() {
		if err := b.flushFrameLocked(page); err != nil {
			return 0, err
		}
	}
	b.pageTable.Remove(uint64(page.GetPageId()))
	return victim, nil
}

// flushFrameLocked writes a dirty frame's data to disk. Before doing so it
// forces the log manager to flush up to the frame's page_lsn: the
// write-ahead rule requires every log record describing a page's changes be
// durable before the page itself is, never the other way around. Caller
// holds b.mu.
func (b *BufferPool) flushFrameLocked(page *pages.Page) error {
	if page.GetPageLSN() > b.lm.GetPersistentLSN() {
		b.lm.WaitTillFlushHappens(page.GetPageLSN())
	}
	if err := b.disk.WritePage(page.GetPageId(), page.GetData()); err != nil {
		return err
	}
	page.SetClean()
	return nil
}

package btree

import (
	"fmt"

	"ridgedb/buffer"
	"ridgedb/common"
	"ridgedb/disk/pages"
	"ridgedb/txn"
	"ridgedb/wal"
)

var _ BPager = &BufferBPager{}

// BufferBPager is the disk-backed BPager: every BPage it hands out is a
// ridgedb/disk/pages.SlottedPage frame fetched through a buffer.Pool, and
// every overflow chunk lives in its own small linked list of heap pages
// reached through the same pool.
type BufferBPager struct {
	pool buffer.Pool
	lm   *wal.LogManager
}

func NewBufferBPager(pool buffer.Pool, lm *wal.LogManager) *BufferBPager {
	return &BufferBPager{pool: pool, lm: lm}
}

func (b *BufferBPager) NewBPage(_ txn.Transaction) (BPageReleaser, error) {
	p, err := b.pool.NewPage()
	if err != nil {
		return nil, err
	}
	sp := pages.InitSlottedPage(p)
	p.WLatch()
	return &bufferBPageReleaser{bufferBPage: bufferBPage{sp}, pool: b.pool, write: true}, nil
}

func (b *BufferBPager) GetBPageToRead(_ txn.Transaction, p Pointer) (BPageReleaser, error) {
	page, err := b.pool.FetchPage(pages.PageID(p))
	if err != nil {
		return nil, err
	}
	page.RLatch()
	sp := pages.CastSlottedPage(page)
	return &bufferBPageReleaser{bufferBPage: bufferBPage{sp}, pool: b.pool, write: false}, nil
}

func (b *BufferBPager) GetBPageToWrite(_ txn.Transaction, p Pointer) (BPageReleaser, error) {
	page, err := b.pool.FetchPage(pages.PageID(p))
	if err != nil {
		return nil, err
	}
	page.WLatch()
	sp := pages.CastSlottedPage(page)
	return &bufferBPageReleaser{bufferBPage: bufferBPage{sp}, pool: b.pool, write: true}, nil
}

func (b *BufferBPager) GetBPage(_ txn.Transaction, p Pointer) (BPage, error) {
	page, err := b.pool.FetchPage(pages.PageID(p))
	if err != nil {
		return nil, err
	}
	sp := pages.CastSlottedPage(page)
	if err := b.pool.UnpinPage(pages.PageID(p), false); err != nil {
		return nil, err
	}
	return &bufferBPage{sp}, nil
}

// Unpin exists to satisfy BPager; bufferBPageReleaser.Release unpins the
// pool directly (it alone knows whether the page it held was mutated), so
// this is never called by this pager's own releasers.
func (b *BufferBPager) Unpin(p Pointer) {
	_ = b.pool.UnpinPage(pages.PageID(p), false)
}

func (b *BufferBPager) FreeBPage(_ txn.Transaction, p Pointer) {
	_ = b.pool.FreePage(pages.PageID(p))
}

func (b *BufferBPager) CreateOverflow(_ txn.Transaction) (OverflowReleaser, error) {
	p, err := b.pool.NewPage()
	if err != nil {
		return nil, err
	}
	pages.InitHeapPage(p)
	id := p.GetPageId()
	if err := b.pool.UnpinPage(id, true); err != nil {
		return nil, err
	}
	return &bufferOverflow{pool: b.pool, firstPageID: id}, nil
}

func (b *BufferBPager) FreeOverflow(_ txn.Transaction, p Pointer) error {
	of := &bufferOverflow{pool: b.pool, firstPageID: pages.PageID(p)}
	return of.freeAllPages()
}

func (b *BufferBPager) GetOverflowReleaser(p Pointer) (OverflowReleaser, error) {
	return &bufferOverflow{pool: b.pool, firstPageID: pages.PageID(p)}, nil
}

var _ BPage = &bufferBPage{}

type bufferBPage struct {
	pages.SlottedPage
}

func (bp *bufferBPage) DeleteAt(_ txn.Transaction, idx int) error {
	return bp.SlottedPage.DeleteAt(idx)
}

func (bp *bufferBPage) InsertAt(_ txn.Transaction, idx int, data []byte) error {
	return bp.SlottedPage.InsertAt(idx, data)
}

func (bp *bufferBPage) SetAt(_ txn.Transaction, idx int, data []byte) error {
	return bp.SlottedPage.SetAt(idx, data)
}

func (bp *bufferBPage) GetPageId() Pointer {
	return Pointer(bp.SlottedPage.GetPageId())
}

// bufferBPageReleaser tracks whether its page was opened for writing so
// Release can unpin it with the right dirty flag - the structural mutators
// above don't get a chance to tell the pool themselves.
type bufferBPageReleaser struct {
	bufferBPage
	pool  buffer.Pool
	write bool
}

func (r *bufferBPageReleaser) Release() {
	id := pages.PageID(r.GetPageId())
	common.PanicIfErr(r.pool.UnpinPage(id, r.write))
	if r.write {
		r.WUnlatch()
	} else {
		r.RUnLatch()
	}
}

// bufferOverflow stores a node's overflowed payload as a chain of heap
// pages, addressed by a synthetic index that folds a RID's page id and slot
// number into one int: high 32 bits the page id, low 32 the slot. Unlike
// the table heap, overflow entries are never soft-deleted or logged - a
// node's overflow chunk is wholly owned by the node that created it and
// has no undo/recovery story of its own. B+ tree node changes are not
// logged either.
type bufferOverflow struct {
	pool        buffer.Pool
	firstPageID pages.PageID
}

func encodeOverflowIdx(rid pages.RID) int {
	return int(uint64(rid.PageID)<<32 | uint64(rid.SlotNum))
}

func decodeOverflowIdx(idx int) pages.RID {
	u := uint64(idx)
	return pages.NewRID(pages.PageID(u>>32), uint32(u&0xffffffff))
}

func (o *bufferOverflow) GetPageId() uint64 {
	return uint64(o.firstPageID)
}

func (o *bufferOverflow) GetAt(_ txn.Transaction, idx int) ([]byte, error) {
	rid := decodeOverflowIdx(idx)
	p, err := o.pool.FetchPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer o.pool.UnpinPage(rid.PageID, false)

	hp := pages.AsHeapPage(p)
	data := hp.GetTuple(int(rid.SlotNum))
	if data == nil {
		return nil, fmt.Errorf("btree: overflow entry %d not found", idx)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (o *bufferOverflow) Insert(_ txn.Transaction, data []byte) (int, error) {
	pageID := o.firstPageID
	for {
		p, err := o.pool.FetchPage(pageID)
		if err != nil {
			return 0, err
		}
		hp := pages.AsHeapPage(p)

		if hp.GetFreeSpace() >= len(data)+pages.SlotArrEntrySize {
			slot, err := hp.InsertTuple(data)
			if err != nil {
				_ = o.pool.UnpinPage(pageID, false)
				return 0, err
			}
			if err := o.pool.UnpinPage(pageID, true); err != nil {
				return 0, err
			}
			return encodeOverflowIdx(pages.NewRID(pageID, uint32(slot))), nil
		}

		next := hp.GetHeader().NextPageID
		if next == 0 {
			newPage, err := o.pool.NewPage()
			if err != nil {
				_ = o.pool.UnpinPage(pageID, false)
				return 0, err
			}
			pages.InitHeapPage(newPage)
			newID := newPage.GetPageId()

			h := hp.GetHeader()
			h.NextPageID = newID
			hp.SetHeader(h)

			if err := o.pool.UnpinPage(newID, true); err != nil {
				return 0, err
			}
			if err := o.pool.UnpinPage(pageID, true); err != nil {
				return 0, err
			}
			pageID = newID
			continue
		}

		if err := o.pool.UnpinPage(pageID, false); err != nil {
			return 0, err
		}
		pageID = next
	}
}

func (o *bufferOverflow) SetAt(_ txn.Transaction, idx int, data []byte) error {
	rid := decodeOverflowIdx(idx)
	p, err := o.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	hp := pages.AsHeapPage(p)

	if err := hp.UpdateTuple(int(rid.SlotNum), data); err != nil {
		_ = o.pool.UnpinPage(rid.PageID, false)
		return err
	}
	return o.pool.UnpinPage(rid.PageID, true)
}

func (o *bufferOverflow) DeleteAt(_ txn.Transaction, idx int) error {
	rid := decodeOverflowIdx(idx)
	p, err := o.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	hp := pages.AsHeapPage(p)

	if err := hp.ApplyDelete(int(rid.SlotNum)); err != nil {
		_ = o.pool.UnpinPage(rid.PageID, false)
		return err
	}
	return o.pool.UnpinPage(rid.PageID, true)
}

func (o *bufferOverflow) Count(_ txn.Transaction) (int, error) {
	n := 0
	pageID := o.firstPageID
	for pageID != 0 {
		p, err := o.pool.FetchPage(pageID)
		if err != nil {
			return 0, err
		}
		hp := pages.AsHeapPage(p)

		idx := -1
		for {
			next, err := hp.GetNextIdx(idx)
			if err != nil {
				break
			}
			n++
			idx = next
		}

		nextPageID := hp.GetHeader().NextPageID
		if err := o.pool.UnpinPage(pageID, false); err != nil {
			return 0, err
		}
		pageID = nextPageID
	}
	return n, nil
}

func (o *bufferOverflow) Free(_ txn.Transaction) error {
	return o.freeAllPages()
}

func (o *bufferOverflow) freeAllPages() error {
	pageID := o.firstPageID
	for pageID != 0 {
		p, err := o.pool.FetchPage(pageID)
		if err != nil {
			return err
		}
		hp := pages.AsHeapPage(p)
		next := hp.GetHeader().NextPageID

		if err := o.pool.UnpinPage(pageID, false); err != nil {
			return err
		}
		if err := o.pool.FreePage(pageID); err != nil {
			return err
		}
		pageID = next
	}
	return nil
}

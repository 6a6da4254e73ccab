// Package heap implements a table as a singly-linked list of heap pages
// reached through the buffer pool. It is the thing a transaction's write
// set ultimately points back at: every insert, update and delete goes
// through here so the corresponding WAL record and undo bookkeeping are
// always produced together with the in-memory mutation.
package heap

import (
	"fmt"
	"sync"

	"ridgedb/buffer"
	"ridgedb/common"
	"ridgedb/disk/pages"
	"ridgedb/txn"
	"ridgedb/wal"
)

// Table is an unordered collection of tuples, physically a linked list of
// heap pages starting at firstPageID. It satisfies txn.Table so the
// transaction manager can drive Commit/Abort's deferred-delete and undo
// logic without importing this package.
type Table struct {
	pool        buffer.Pool
	lm          *wal.LogManager
	firstPageID pages.PageID

	mu sync.Mutex
}

var _ txn.Table = &Table{}

// Create allocates the table's first (empty) page and returns a Table
// rooted there.
func Create(pool buffer.Pool, lm *wal.LogManager) (*Table, error) {
	p, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	pages.InitHeapPage(p)
	id := p.GetPageId()
	if err := pool.UnpinPage(id, true); err != nil {
		return nil, err
	}
	return &Table{pool: pool, lm: lm, firstPageID: id}, nil
}

// Open wraps an existing table whose first page is already firstPageID,
// e.g. one recorded in a catalog and reopened after a restart.
func Open(pool buffer.Pool, lm *wal.LogManager, firstPageID pages.PageID) *Table {
	return &Table{pool: pool, lm: lm, firstPageID: firstPageID}
}

func (t *Table) FirstPageID() pages.PageID { return t.firstPageID }

// InsertTuple appends data to the first page with room for it, allocating
// and linking a new page onto the tail if none has space. It logs an INSERT
// record and registers the insert on tr's write set so Abort can undo it.
func (t *Table) InsertTuple(tr txn.Transaction, data []byte) (pages.RID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pageID := t.firstPageID
	for {
		p, err := t.pool.FetchPage(pageID)
		if err != nil {
			return pages.RID{}, err
		}
		hp := pages.AsHeapPage(p)

		if hp.GetFreeSpace() >= len(data)+pages.SlotArrEntrySize {
			idx, err := hp.InsertTuple(data)
			if err != nil {
				_ = t.pool.UnpinPage(pageID, false)
				return pages.RID{}, err
			}
			rid := pages.NewRID(pageID, uint32(idx))

			if common.EnableLogging {
				lsn := t.lm.AppendLogRecord(wal.NewInsertRecord(int32(tr.GetID()), tr.GetPrevLSN(), rid, data))
				tr.SetPrevLSN(lsn)
				hp.SetPageLSN(lsn)
			}

			if err := t.pool.UnpinPage(pageID, true); err != nil {
				return pages.RID{}, err
			}
			tr.RecordInsert(t, rid)
			return rid, nil
		}

		next := hp.GetHeader().NextPageID
		if next == 0 {
			newPage, err := t.pool.NewPage()
			if err != nil {
				_ = t.pool.UnpinPage(pageID, false)
				return pages.RID{}, err
			}
			newHp := pages.InitHeapPage(newPage)
			newID := newPage.GetPageId()

			h := hp.GetHeader()
			h.NextPageID = newID
			hp.SetHeader(h)

			// The pool's own NEWPAGE record (from NewPage above) is a bookkeeping
			// no-op on redo: the pool allocates pages for B+ tree nodes too and
			// has no way to know this particular one needs heap-page
			// initialization. Log that, and the link from pageID to newID,
			// explicitly so a crash between linking this page and its next flush
			// can still be redone.
			if common.EnableLogging {
				lsn := t.lm.AppendLogRecord(wal.NewHeapNewPageRecord(0, wal.InvalidLSN, newID, pageID))
				newHp.SetPageLSN(lsn)
				hp.SetPageLSN(lsn)
			}

			if err := t.pool.UnpinPage(newID, true); err != nil {
				return pages.RID{}, err
			}
			if err := t.pool.UnpinPage(pageID, true); err != nil {
				return pages.RID{}, err
			}
			pageID = newID
			continue
		}

		if err := t.pool.UnpinPage(pageID, false); err != nil {
			return pages.RID{}, err
		}
		pageID = next
	}
}

// GetTuple returns the live tuple at rid, or nil if it has been deleted.
func (t *Table) GetTuple(rid pages.RID) ([]byte, error) {
	p, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer t.pool.UnpinPage(rid.PageID, false)

	hp := pages.AsHeapPage(p)
	data := hp.GetTuple(int(rid.SlotNum))
	if data == nil {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Update overwrites rid's tuple with data in place, returning the page's
// error when data does not fit there; the tuple is never moved. It logs an
// UPDATE record carrying both before- and after-images and records the
// before-image on tr's write set so Abort can restore it.
func (t *Table) Update(tr txn.Transaction, rid pages.RID, data []byte) error {
	p, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	hp := pages.AsHeapPage(p)

	old := hp.GetTuple(int(rid.SlotNum))
	if old == nil {
		_ = t.pool.UnpinPage(rid.PageID, false)
		return fmt.Errorf("heap: update of nonexistent or deleted tuple %v", rid)
	}
	oldImage := make([]byte, len(old))
	copy(oldImage, old)

	if err := hp.UpdateTuple(int(rid.SlotNum), data); err != nil {
		_ = t.pool.UnpinPage(rid.PageID, false)
		return err
	}

	if common.EnableLogging {
		lsn := t.lm.AppendLogRecord(wal.NewUpdateRecord(int32(tr.GetID()), tr.GetPrevLSN(), rid, oldImage, data))
		tr.SetPrevLSN(lsn)
		hp.SetPageLSN(lsn)
	}
	tr.RecordUpdate(t, rid, oldImage)

	return t.pool.UnpinPage(rid.PageID, true)
}

// UpdateTuple satisfies txn.Table: TxnManager.Abort calls this to restore an
// update's before-image. It runs after the owning transaction's write-set
// entry was recorded, not as a live write itself, so it logs with txn id 0
// the same way ApplyDelete/RollbackDelete do.
func (t *Table) UpdateTuple(rid pages.RID, tuple []byte) error {
	p, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	hp := pages.AsHeapPage(p)

	if err := hp.UpdateTuple(int(rid.SlotNum), tuple); err != nil {
		_ = t.pool.UnpinPage(rid.PageID, false)
		return err
	}

	if common.EnableLogging {
		lsn := t.lm.AppendLogRecord(wal.NewUpdateRecord(0, wal.InvalidLSN, rid, nil, tuple))
		hp.SetPageLSN(lsn)
	}

	return t.pool.UnpinPage(rid.PageID, true)
}

// MarkDelete soft-deletes rid: it stays recoverable until the owning
// transaction commits (ApplyDelete) or never happens (RollbackDelete on
// abort). It logs a MARKDELETE record and records the delete on tr's write
// set with its tuple as a before-image.
func (t *Table) MarkDelete(tr txn.Transaction, rid pages.RID) error {
	p, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	hp := pages.AsHeapPage(p)

	tuple := hp.GetTuple(int(rid.SlotNum))
	if tuple == nil {
		_ = t.pool.UnpinPage(rid.PageID, false)
		return fmt.Errorf("heap: delete of nonexistent or already-deleted tuple %v", rid)
	}
	image := make([]byte, len(tuple))
	copy(image, tuple)

	if err := hp.MarkDelete(int(rid.SlotNum)); err != nil {
		_ = t.pool.UnpinPage(rid.PageID, false)
		return err
	}

	if common.EnableLogging {
		lsn := t.lm.AppendLogRecord(wal.NewMarkDeleteRecord(int32(tr.GetID()), tr.GetPrevLSN(), rid))
		tr.SetPrevLSN(lsn)
		hp.SetPageLSN(lsn)
	}

	tr.RecordDelete(t, rid, image)
	return t.pool.UnpinPage(rid.PageID, true)
}

// ApplyDelete permanently reclaims rid's tuple space. It satisfies
// txn.Table: TxnManager.Commit calls this for every deferred delete in a
// committing transaction's write set, and also (via an INSERT write-set
// entry's undo) for rolling back an aborted insert.
func (t *Table) ApplyDelete(rid pages.RID) error {
	p, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	hp := pages.AsHeapPage(p)

	if err := hp.ApplyDelete(int(rid.SlotNum)); err != nil {
		_ = t.pool.UnpinPage(rid.PageID, false)
		return err
	}

	if common.EnableLogging {
		lsn := t.lm.AppendLogRecord(wal.NewApplyDeleteRecord(0, wal.InvalidLSN, rid, nil))
		hp.SetPageLSN(lsn)
	}

	return t.pool.UnpinPage(rid.PageID, true)
}

// RollbackDelete satisfies txn.Table: undoes a MarkDelete an aborting
// transaction had performed.
func (t *Table) RollbackDelete(rid pages.RID) error {
	p, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	hp := pages.AsHeapPage(p)

	if err := hp.RollbackDelete(int(rid.SlotNum)); err != nil {
		_ = t.pool.UnpinPage(rid.PageID, false)
		return err
	}

	if common.EnableLogging {
		lsn := t.lm.AppendLogRecord(wal.NewRollbackDeleteRecord(0, wal.InvalidLSN, rid))
		hp.SetPageLSN(lsn)
	}

	return t.pool.UnpinPage(rid.PageID, true)
}

// Iterator walks every live tuple in the table in physical (page, slot)
// order.
type Iterator struct {
	t       *Table
	pageID  pages.PageID
	slotIdx int
	started bool
}

func (t *Table) Iterator() *Iterator {
	return &Iterator{t: t, pageID: t.firstPageID, slotIdx: -1}
}

// Next advances the iterator and returns the next live tuple's RID and
// bytes, or ok=false once the table is exhausted.
func (it *Iterator) Next() (pages.RID, []byte, bool, error) {
	for {
		p, err := it.t.pool.FetchPage(it.pageID)
		if err != nil {
			return pages.RID{}, nil, false, err
		}
		hp := pages.AsHeapPage(p)

		nextIdx, err := hp.GetNextIdx(it.slotIdx)
		if err != nil {
			next := hp.GetHeader().NextPageID
			if uerr := it.t.pool.UnpinPage(it.pageID, false); uerr != nil {
				return pages.RID{}, nil, false, uerr
			}
			if next == 0 {
				return pages.RID{}, nil, false, nil
			}
			it.pageID = next
			it.slotIdx = -1
			continue
		}

		data := hp.GetTuple(nextIdx)
		out := make([]byte, len(data))
		copy(out, data)
		rid := pages.NewRID(it.pageID, uint32(nextIdx))
		it.slotIdx = nextIdx

		if err := it.t.pool.UnpinPage(it.pageID, false); err != nil {
			return pages.RID{}, nil, false, err
		}
		return rid, out, true, nil
	}
}

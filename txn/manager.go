package txn

import (
	"sync"
	"sync/atomic"

	"ridgedb/common"
	"ridgedb/wal"
)

// TxnManager is the only thing allowed to create, commit, or abort
// transactions. It owns the id counter and the set of currently active
// transactions. Recovery does not consult it; redo rebuilds its own set of
// active transactions from the log.
type TxnManager struct {
	mu      sync.Mutex
	actives map[TxnID]*txn
	counter int32

	lm      *wal.LogManager
	lockMgr LockManager
}

func NewTxnManager(lm *wal.LogManager, lockMgr LockManager) *TxnManager {
	return &TxnManager{
		actives: make(map[TxnID]*txn),
		lm:      lm,
		lockMgr: lockMgr,
	}
}

// Begin allocates a transaction with a fresh, monotonically increasing id in
// state GROWING and, if logging is enabled, appends its BEGIN record.
func (m *TxnManager) Begin() Transaction {
	id := atomic.AddInt32(&m.counter, 1)
	t := newTxn(TxnID(id))

	m.mu.Lock()
	m.actives[t.id] = t
	m.mu.Unlock()

	if common.EnableLogging {
		lsn := m.lm.AppendLogRecord(wal.NewBeginRecord(int32(t.id), t.GetPrevLSN()))
		t.SetPrevLSN(lsn)
	}

	return t
}

// Commit marks txn COMMITTED, drains its write set applying every deferred
// delete for real so the table holds actual gaps, forces a COMMIT record to
// stable storage, then releases every lock it holds.
func (m *TxnManager) Commit(t Transaction) {
	t.SetState(Committed)

	for {
		item, ok := t.PopWriteSet()
		if !ok {
			break
		}
		if item.Kind == WriteDelete {
			if err := item.Table.ApplyDelete(item.RID); err != nil {
				panic(err)
			}
		}
	}

	if common.EnableLogging {
		lsn := m.lm.AppendLogRecord(wal.NewCommitRecord(int32(t.GetID()), t.GetPrevLSN()))
		m.lm.WaitTillFlushHappens(lsn)
		t.SetPrevLSN(lsn)
	}

	m.releaseLocks(t)
	m.finish(t)
}

// Abort marks txn ABORTED and undoes its write set in LIFO order: an insert
// is undone by deleting the row it created, a pending delete is undone by
// un-marking it, an update is undone by writing back its before-image. It
// then forces an ABORT record and releases every lock.
func (m *TxnManager) Abort(t Transaction) {
	t.SetState(Aborted)

	for {
		item, ok := t.PopWriteSet()
		if !ok {
			break
		}

		var err error
		switch item.Kind {
		case WriteInsert:
			err = item.Table.ApplyDelete(item.RID)
		case WriteDelete:
			err = item.Table.RollbackDelete(item.RID)
		case WriteUpdate:
			err = item.Table.UpdateTuple(item.RID, item.Tuple)
		}
		if err != nil {
			panic(err)
		}
	}

	if common.EnableLogging {
		lsn := m.lm.AppendLogRecord(wal.NewAbortRecord(int32(t.GetID()), t.GetPrevLSN()))
		m.lm.WaitTillFlushHappens(lsn)
		t.SetPrevLSN(lsn)
	}

	m.releaseLocks(t)
	m.finish(t)
}

func (m *TxnManager) releaseLocks(t Transaction) {
	if m.lockMgr == nil {
		return
	}
	for _, rid := range t.LockedRIDs() {
		if err := m.lockMgr.Unlock(t, rid); err != nil {
			panic(err)
		}
	}
}

func (m *TxnManager) finish(t Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actives, t.GetID())
}

// ActiveTransactions reports every transaction that has Begun but neither
// Committed nor Aborted yet.
func (m *TxnManager) ActiveTransactions() []TxnID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TxnID, 0, len(m.actives))
	for id := range m.actives {
		out = append(out, id)
	}
	return out
}

// Package txn implements the engine's transaction abstraction: a running
// operation's identity, its two-phase-locking state, and the bookkeeping
// (write set, lock sets) commit and abort drain to undo or finalize its
// effects, plus a list of freed page ids that commit and abort do not act on.
package txn

import (
	"sync"
	"sync/atomic"

	"ridgedb/disk/pages"
)

// TxnID identifies a transaction. Lower ids are older; wait-die deadlock
// avoidance in the lock manager depends on that ordering.
type TxnID int32

// State is a transaction's position in the 2PL state machine: GROWING while
// it may still acquire locks, SHRINKING once it has released one (under
// ordinary, non-strict 2PL), then one of the two terminal states.
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// LockMode is the granularity the lock manager and a transaction's lock sets
// are keyed on: shared (read) or exclusive (write).
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

// WriteKind tags one entry of a transaction's write set.
type WriteKind int

const (
	WriteInsert WriteKind = iota
	WriteUpdate
	WriteDelete
)

// Table is the narrow surface Commit/Abort need against the heap table a
// write-set entry targets: undo an insert, undo (or finalize) a delete, or
// restore a tuple's before-image. A concrete table type satisfies this
// without txn importing the heap package.
type Table interface {
	ApplyDelete(rid pages.RID) error
	RollbackDelete(rid pages.RID) error
	UpdateTuple(rid pages.RID, tuple []byte) error
}

// WriteRecord is one entry of a transaction's write set: enough to either
// undo the operation (Abort) or, for a pending delete, apply it for real
// once the transaction is known to survive (Commit).
type WriteRecord struct {
	Kind  WriteKind
	Table Table
	RID   pages.RID
	Tuple []byte // before-image for Update/Delete; unused for Insert
}

// LockManager is the narrow surface the transaction manager needs at
// Commit/Abort time: release every lock a transaction still holds.
type LockManager interface {
	Unlock(t Transaction, rid pages.RID) error
}

// Transaction is the unit of isolation and recovery. One is created per
// Begin and lives until Commit or Abort; every mutating heap operation
// records itself on it so the transaction manager can roll it back or
// finalize it later. B+ tree operations record nothing on it.
type Transaction interface {
	GetID() TxnID
	GetState() State
	SetState(State)

	GetPrevLSN() pages.LSN
	SetPrevLSN(pages.LSN)

	RecordInsert(table Table, rid pages.RID)
	RecordUpdate(table Table, rid pages.RID, beforeImage []byte)
	RecordDelete(table Table, rid pages.RID, tuple []byte)
	WriteSet() []WriteRecord
	PopWriteSet() (WriteRecord, bool)

	AddLock(rid pages.RID, mode LockMode)
	RemoveLock(rid pages.RID)
	IsSharedLocked(rid pages.RID) bool
	IsExclusiveLocked(rid pages.RID) bool
	LockedRIDs() []pages.RID

	// FreePage records a page id on the transaction and FreedPages returns
	// the recorded ids; neither frees a page, and Commit/Abort do not read
	// the list.
	FreePage(id pages.PageID)
	FreedPages() []pages.PageID
}

// New constructs a Transaction directly from an id, bypassing TxnManager's
// counter. Tests that need deterministic, caller-chosen ids to drive
// wait-die scenarios use this instead of Begin.
func New(id TxnID) Transaction {
	return newTxn(id)
}

var _ Transaction = &txn{}

type txn struct {
	mu sync.Mutex

	id      TxnID
	state   State
	prevLsn pages.LSN

	writeSet []WriteRecord

	sharedLocks    map[pages.RID]struct{}
	exclusiveLocks map[pages.RID]struct{}

	freedPages []pages.PageID
}

func newTxn(id TxnID) *txn {
	return &txn{
		id:             id,
		state:          Growing,
		sharedLocks:    make(map[pages.RID]struct{}),
		exclusiveLocks: make(map[pages.RID]struct{}),
	}
}

func (t *txn) GetID() TxnID { return t.id }

func (t *txn) GetState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *txn) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

func (t *txn) GetPrevLSN() pages.LSN {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prevLsn
}

func (t *txn) SetPrevLSN(lsn pages.LSN) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prevLsn = lsn
}

func (t *txn) RecordInsert(table Table, rid pages.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeSet = append(t.writeSet, WriteRecord{Kind: WriteInsert, Table: table, RID: rid})
}

func (t *txn) RecordUpdate(table Table, rid pages.RID, beforeImage []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeSet = append(t.writeSet, WriteRecord{Kind: WriteUpdate, Table: table, RID: rid, Tuple: beforeImage})
}

func (t *txn) RecordDelete(table Table, rid pages.RID, tuple []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeSet = append(t.writeSet, WriteRecord{Kind: WriteDelete, Table: table, RID: rid, Tuple: tuple})
}

func (t *txn) WriteSet() []WriteRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WriteRecord, len(t.writeSet))
	copy(out, t.writeSet)
	return out
}

// PopWriteSet removes and returns the most recently recorded write, so the
// transaction manager can drain the set in LIFO order without copying it
// up front.
func (t *txn) PopWriteSet() (WriteRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.writeSet)
	if n == 0 {
		return WriteRecord{}, false
	}
	item := t.writeSet[n-1]
	t.writeSet = t.writeSet[:n-1]
	return item, true
}

func (t *txn) AddLock(rid pages.RID, mode LockMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mode == Shared {
		t.sharedLocks[rid] = struct{}{}
	} else {
		t.exclusiveLocks[rid] = struct{}{}
	}
}

func (t *txn) RemoveLock(rid pages.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedLocks, rid)
	delete(t.exclusiveLocks, rid)
}

func (t *txn) IsSharedLocked(rid pages.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sharedLocks[rid]
	return ok
}

func (t *txn) IsExclusiveLocked(rid pages.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.exclusiveLocks[rid]
	return ok
}

func (t *txn) LockedRIDs() []pages.RID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]pages.RID, 0, len(t.sharedLocks)+len(t.exclusiveLocks))
	for rid := range t.sharedLocks {
		out = append(out, rid)
	}
	for rid := range t.exclusiveLocks {
		out = append(out, rid)
	}
	return out
}

func (t *txn) FreePage(id pages.PageID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.freedPages = append(t.freedPages, id)
}

func (t *txn) FreedPages() []pages.PageID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]pages.PageID, len(t.freedPages))
	copy(out, t.freedPages)
	return out
}

// noOpTxnCounter hands out ids to TxnNoop/TxnTODO callers, which need a
// Transaction to satisfy an API but carry no real isolation - B+ tree tests
// and read-only helpers that predate a caller-supplied transaction.
var noOpTxnCounter int32

// TxnNoop returns a Transaction backed by a fresh id and real (if pointless,
// since nothing else contends for the same id) bookkeeping. Used where a
// caller needs to satisfy a Transaction-typed parameter without a surrounding
// TxnManager-issued transaction, e.g. the B+ tree's own unit tests.
func TxnNoop() Transaction {
	id := atomic.AddInt32(&noOpTxnCounter, 1)
	return newTxn(TxnID(id))
}

// TxnTODO marks a call site that should eventually thread through a real
// caller-supplied transaction but does not yet.
func TxnTODO() Transaction {
	return TxnNoop()
}

// Package lock implements the tuple-granularity lock manager: one WaitList
// per RID, shared/exclusive modes, and wait-die deadlock avoidance, where an
// older (lower-id) transaction may wait for a younger one but a younger
// requester blocked behind an older holder is aborted outright.
package lock

import (
	"fmt"
	"sync"

	"ridgedb/disk/pages"
	"ridgedb/txn"
)

type waitState int

const (
	stateInit waitState = iota
	stateShared
	stateExclusive
)

// noOldest is the WaitList.oldest sentinel meaning "no grantee".
const noOldest txn.TxnID = -1

type waiter struct {
	txnID  txn.TxnID
	target waitState
	done   chan struct{}
}

// waitList is the per-RID lock state: who currently holds it, in which mode,
// and who is queued behind them.
//
// oldest here means the smallest (oldest) txn id among currently granted
// holders - not, as the source this is adapted from computes it, the
// maximum id seen across every joiner. The source's running-max produces an
// "oldest" that is actually the youngest grantee, which would let a young
// writer starve behind an endless stream of younger readers under wait-die.
// Taking the true minimum is the only reading consistent with wait-die's
// purpose (older transactions never have to abort for a younger one).
type waitList struct {
	granted map[txn.TxnID]struct{}
	oldest  txn.TxnID
	state   waitState
	queue   []*waiter
}

func oldestGranted(wl *waitList) txn.TxnID {
	best := noOldest
	for id := range wl.granted {
		if best == noOldest || id < best {
			best = id
		}
	}
	return best
}

// Manager is a tuple-level lock table. strict2PL controls Unlock: under
// strict 2PL a lock may only be released once the owning transaction has
// committed or aborted; under ordinary 2PL the first non-upgrading unlock
// moves the transaction from GROWING to SHRINKING.
type Manager struct {
	mu        sync.Mutex
	strict2PL bool
	table     map[pages.RID]*waitList
}

func NewManager(strict2PL bool) *Manager {
	return &Manager{
		strict2PL: strict2PL,
		table:     make(map[pages.RID]*waitList),
	}
}

var _ txn.LockManager = &Manager{}

// isValidRequest rejects a lock request from a transaction that cannot
// legally acquire more locks: already terminal, or SHRINKING (in which case
// requesting a new lock is itself treated as a protocol violation and the
// transaction is aborted).
func isValidRequest(t txn.Transaction) bool {
	switch t.GetState() {
	case txn.Aborted, txn.Committed:
		return false
	case txn.Shrinking:
		t.SetState(txn.Aborted)
		return false
	default:
		return true
	}
}

func (m *Manager) LockShared(t txn.Transaction, rid pages.RID) bool {
	return m.lock(t, rid, stateShared)
}

func (m *Manager) LockExclusive(t txn.Transaction, rid pages.RID) bool {
	return m.lock(t, rid, stateExclusive)
}

func lockModeFor(s waitState) txn.LockMode {
	if s == stateShared {
		return txn.Shared
	}
	return txn.Exclusive
}

// lock is common to LockShared and LockExclusive. Trying to lock an RID the
// caller already holds, in a mode it already holds, is the caller's
// responsibility to avoid; behavior here is undefined for that case, as in
// the design this is adapted from.
func (m *Manager) lock(t txn.Transaction, rid pages.RID, mode waitState) bool {
	if !isValidRequest(t) {
		return false
	}

	m.mu.Lock()

	tid := t.GetID()
	wl, ok := m.table[rid]
	if !ok {
		wl = &waitList{granted: map[txn.TxnID]struct{}{tid: {}}, oldest: tid, state: mode}
		m.table[rid] = wl
		m.mu.Unlock()
		t.AddLock(rid, lockModeFor(mode))
		return true
	}

	if mode == stateShared && wl.state != stateExclusive {
		wl.granted[tid] = struct{}{}
		wl.oldest = oldestGranted(wl)
		m.mu.Unlock()
		t.AddLock(rid, txn.Shared)
		return true
	}

	if wl.oldest != noOldest && tid > wl.oldest {
		m.mu.Unlock()
		t.SetState(txn.Aborted)
		return false
	}

	w := &waiter{txnID: tid, target: mode, done: make(chan struct{})}
	wl.queue = append(wl.queue, w)
	m.mu.Unlock()

	<-w.done

	t.AddLock(rid, lockModeFor(mode))
	return true
}

// LockUpgrade releases a held shared lock and re-acquires it exclusive,
// without letting the transaction pass through SHRINKING for the release.
func (m *Manager) LockUpgrade(t txn.Transaction, rid pages.RID) bool {
	if !isValidRequest(t) {
		return false
	}

	m.mu.Lock()
	_, ok := m.table[rid]
	if !ok {
		m.mu.Unlock()
		return false
	}
	wl := m.table[rid]
	if _, granted := wl.granted[t.GetID()]; !granted {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	if !m.release(t, rid, true) {
		return false
	}
	return m.LockExclusive(t, rid)
}

// Unlock releases rid on behalf of t. It satisfies txn.LockManager, which
// TxnManager calls for every RID in a committing or aborting transaction's
// lock sets.
func (m *Manager) Unlock(t txn.Transaction, rid pages.RID) error {
	if !m.release(t, rid, false) {
		return fmt.Errorf("lock: unlock denied for txn %d on %v", t.GetID(), rid)
	}
	return nil
}

// release implements Unlock; upgrading marks the release as part of a
// LockUpgrade call so it never pushes the transaction into SHRINKING.
func (m *Manager) release(t txn.Transaction, rid pages.RID, upgrading bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := t.GetState()
	if m.strict2PL {
		if state != txn.Committed && state != txn.Aborted {
			return false
		}
	} else if state == txn.Growing && !upgrading {
		t.SetState(txn.Shrinking)
	}

	tid := t.GetID()
	wl, ok := m.table[rid]
	if !ok {
		return false
	}
	if _, granted := wl.granted[tid]; !granted {
		return false
	}

	delete(wl.granted, tid)
	t.RemoveLock(rid)

	if len(wl.queue) == 0 {
		delete(m.table, rid)
		return true
	}

	// Only the head waiter is promoted; later compatible waiters (e.g. a run
	// of shared requests queued behind an exclusive holder) are not batched
	// in this design and wait their turn one at a time.
	next := wl.queue[0]
	wl.queue = wl.queue[1:]
	wl.granted[next.txnID] = struct{}{}
	wl.state = next.target
	wl.oldest = oldestGranted(wl)
	close(next.done)
	return true
}

package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ridgedb/disk"
	"ridgedb/disk/pages"
	"ridgedb/wal"
)

type fakeTable struct {
	applied []pages.RID
	rolled  []pages.RID
	updated map[pages.RID][]byte
	calls   []string
}

func newFakeTable() *fakeTable {
	return &fakeTable{updated: make(map[pages.RID][]byte)}
}

func (f *fakeTable) ApplyDelete(rid pages.RID) error {
	f.applied = append(f.applied, rid)
	f.calls = append(f.calls, "apply")
	return nil
}

func (f *fakeTable) RollbackDelete(rid pages.RID) error {
	f.rolled = append(f.rolled, rid)
	f.calls = append(f.calls, "rollback")
	return nil
}

func (f *fakeTable) UpdateTuple(rid pages.RID, tuple []byte) error {
	f.updated[rid] = tuple
	f.calls = append(f.calls, "update")
	return nil
}

func newTestManager(t *testing.T) *TxnManager {
	lm := wal.NewLogManager(disk.NewMemDiskManager())
	lm.RunFlushThread()
	t.Cleanup(lm.StopFlushThread)
	return NewTxnManager(lm, nil)
}

func TestBeginAssignsIncreasingIDs(t *testing.T) {
	m := newTestManager(t)
	t1 := m.Begin()
	t2 := m.Begin()

	assert.True(t, t2.GetID() > t1.GetID())
	assert.Equal(t, Growing, t1.GetState())
}

func TestCommitAppliesDeferredDeletes(t *testing.T) {
	m := newTestManager(t)
	tr := m.Begin()

	table := newFakeTable()
	rid := pages.NewRID(1, 0)
	tr.RecordDelete(table, rid, []byte("old"))

	m.Commit(tr)

	assert.Equal(t, Committed, tr.GetState())
	assert.Equal(t, []pages.RID{rid}, table.applied)
	assert.Empty(t, tr.WriteSet())
}

func TestAbortUndoesWriteSetInLIFOOrder(t *testing.T) {
	m := newTestManager(t)
	tr := m.Begin()

	table := newFakeTable()
	insertedRID := pages.NewRID(1, 0)
	deletedRID := pages.NewRID(1, 1)
	updatedRID := pages.NewRID(1, 2)

	tr.RecordInsert(table, insertedRID)
	tr.RecordDelete(table, deletedRID, []byte("deleted-before-image"))
	tr.RecordUpdate(table, updatedRID, []byte("old-value"))

	m.Abort(tr)

	assert.Equal(t, Aborted, tr.GetState())
	assert.Equal(t, []pages.RID{insertedRID}, table.applied)
	assert.Equal(t, []pages.RID{deletedRID}, table.rolled)
	assert.Equal(t, []byte("old-value"), table.updated[updatedRID])
	assert.Equal(t, []string{"update", "rollback", "apply"}, table.calls)
}

func TestActiveTransactionsReflectsOutstandingWork(t *testing.T) {
	m := newTestManager(t)
	t1 := m.Begin()
	_ = m.Begin()

	assert.Len(t, m.ActiveTransactions(), 2)

	m.Commit(t1)
	assert.Len(t, m.ActiveTransactions(), 1)
}

package heap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridgedb/buffer"
	"ridgedb/disk"
	"ridgedb/txn"
	"ridgedb/wal"
)

func newTestTable(t *testing.T) (*Table, *wal.LogManager) {
	d := disk.NewMemDiskManager()
	lm := wal.NewLogManager(d)
	lm.RunFlushThread()
	t.Cleanup(lm.StopFlushThread)

	pool := buffer.NewBufferPool(8, d, lm)
	tbl, err := Create(pool, lm)
	require.NoError(t, err)
	return tbl, lm
}

func TestTableInsertAndGet(t *testing.T) {
	tbl, _ := newTestTable(t)
	tr := txn.TxnNoop()

	rid, err := tbl.InsertTuple(tr, []byte("hello"))
	require.NoError(t, err)

	got, err := tbl.GetTuple(rid)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestTableInsertSpillsAcrossPages(t *testing.T) {
	tbl, _ := newTestTable(t)
	tr := txn.TxnNoop()

	const n = 500
	inserted := make([]string, n)
	for i := 0; i < n; i++ {
		data := fmt.Sprintf("row-%04d", i)
		inserted[i] = data
		_, err := tbl.InsertTuple(tr, []byte(data))
		require.NoError(t, err)
	}

	it := tbl.Iterator()
	count := 0
	for {
		_, data, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, inserted[count], string(data))
		count++
	}
	assert.Equal(t, n, count)
}

func TestTableUpdateTuple(t *testing.T) {
	tbl, _ := newTestTable(t)
	tr := txn.TxnNoop()

	rid, err := tbl.InsertTuple(tr, []byte("before"))
	require.NoError(t, err)

	require.NoError(t, tbl.Update(tr, rid, []byte("after-value")))

	got, err := tbl.GetTuple(rid)
	require.NoError(t, err)
	assert.Equal(t, []byte("after-value"), got)

	recorded := tr.WriteSet()
	require.Len(t, recorded, 2)
	assert.Equal(t, txn.WriteUpdate, recorded[1].Kind)
	assert.Equal(t, []byte("before"), recorded[1].Tuple)
}

func TestTableMarkDeleteThenRollback(t *testing.T) {
	tbl, _ := newTestTable(t)
	tr := txn.TxnNoop()

	rid, err := tbl.InsertTuple(tr, []byte("doomed"))
	require.NoError(t, err)

	require.NoError(t, tbl.MarkDelete(tr, rid))

	got, err := tbl.GetTuple(rid)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, tbl.RollbackDelete(rid))

	got, err = tbl.GetTuple(rid)
	require.NoError(t, err)
	assert.Equal(t, []byte("doomed"), got)
}

func TestTableApplyDeleteReclaimsSpace(t *testing.T) {
	tbl, _ := newTestTable(t)
	tr := txn.TxnNoop()

	rid, err := tbl.InsertTuple(tr, []byte("gone"))
	require.NoError(t, err)

	require.NoError(t, tbl.ApplyDelete(rid))

	got, err := tbl.GetTuple(rid)
	require.NoError(t, err)
	assert.Nil(t, got)
}

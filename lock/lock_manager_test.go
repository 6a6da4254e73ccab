package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ridgedb/disk/pages"
	"ridgedb/txn"
)

func TestLockManager(t *testing.T) {
	t.Run("wait-die victim", func(t *testing.T) {
		m := NewManager(false)
		rid := pages.NewRID(0, 0)

		t1 := txn.New(1)
		t2 := txn.New(2)

		assert.True(t, m.LockExclusive(t1, rid))

		ok := m.LockShared(t2, rid)
		assert.False(t, ok)
		assert.Equal(t, txn.Aborted, t2.GetState())
		assert.True(t, t1.IsExclusiveLocked(rid))
	})

	t.Run("older waits, is granted once younger releases", func(t *testing.T) {
		m := NewManager(false)
		rid := pages.NewRID(0, 0)

		young := txn.New(5)
		old := txn.New(1)

		assert.True(t, m.LockExclusive(young, rid))

		granted := make(chan bool, 1)
		go func() {
			granted <- m.LockExclusive(old, rid)
		}()

		time.Sleep(20 * time.Millisecond)
		young.SetState(txn.Committed)
		assert.NoError(t, m.Unlock(young, rid))

		assert.True(t, <-granted)
		assert.True(t, old.IsExclusiveLocked(rid))
	})

	t.Run("shared locks join the same grantee set", func(t *testing.T) {
		m := NewManager(false)
		rid := pages.NewRID(0, 0)

		t1 := txn.New(1)
		t2 := txn.New(2)

		assert.True(t, m.LockShared(t1, rid))
		assert.True(t, m.LockShared(t2, rid))
		assert.True(t, t1.IsSharedLocked(rid))
		assert.True(t, t2.IsSharedLocked(rid))
	})

	t.Run("strict 2PL denies unlock before commit or abort", func(t *testing.T) {
		m := NewManager(true)
		rid := pages.NewRID(0, 0)

		tr := txn.New(1)
		assert.True(t, m.LockShared(tr, rid))

		assert.Error(t, m.Unlock(tr, rid))
		assert.Equal(t, txn.Growing, tr.GetState())

		tr.SetState(txn.Committed)
		assert.NoError(t, m.Unlock(tr, rid))
	})

	t.Run("ordinary 2PL moves to shrinking on first unlock", func(t *testing.T) {
		m := NewManager(false)
		rid := pages.NewRID(0, 0)

		tr := txn.New(1)
		assert.True(t, m.LockShared(tr, rid))
		assert.NoError(t, m.Unlock(tr, rid))
		assert.Equal(t, txn.Shrinking, tr.GetState())
	})

	t.Run("lock upgrade", func(t *testing.T) {
		m := NewManager(false)
		rid := pages.NewRID(0, 0)

		tr := txn.New(1)
		assert.True(t, m.LockShared(tr, rid))
		assert.True(t, m.LockUpgrade(tr, rid))
		assert.True(t, tr.IsExclusiveLocked(rid))
		assert.False(t, tr.IsSharedLocked(rid))

		tr.SetState(txn.Committed)
		assert.NoError(t, m.Unlock(tr, rid))
	})

	t.Run("concurrent shared acquirers all succeed", func(t *testing.T) {
		m := NewManager(false)
		rid := pages.NewRID(0, 0)

		var wg sync.WaitGroup
		results := make([]bool, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tr := txn.New(txn.TxnID(i + 1))
				results[i] = m.LockShared(tr, rid)
			}(i)
		}
		wg.Wait()

		for _, ok := range results {
			assert.True(t, ok)
		}
	})
}

package btree

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"ridgedb/common"
	"ridgedb/txn"
)

type kv struct {
	k, v string
}

func TestDelete(t *testing.T) {
	t.Run("count should be zero after all is deleted", func(t *testing.T) {
		pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
		tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

		keys := make([]kv, 0)
		numKeys := 2000
		for i := 0; i < numKeys; i++ {
			k := randStr(1, 40) + "__" + strconv.Itoa(i)
			v := fmt.Sprintf("val_%v", k)

			tree.Insert(txn.TxnNoop(), common.StringKey(k), v)
			keys = append(keys, kv{k: k, v: v})
		}

		assert.Equal(t, numKeys, tree.Count(txn.TxnNoop()))

		for _, e := range keys {
			ok := tree.Delete(txn.TxnNoop(), common.StringKey(e.k))
			assert.True(t, ok)
		}

		assert.Zero(t, tree.Count(txn.TxnNoop()))
		assert.Equal(t, 1, tree.Height(txn.TxnNoop()))
	})

	t.Run("other items should not be affected", func(t *testing.T) {
		pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
		tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

		keys := make([]kv, 0)
		numKeys := 200
		for i := 0; i < numKeys; i++ {
			k := randStr(1, 40) + "__" + strconv.Itoa(i)
			v := fmt.Sprintf("val_%v", k)

			tree.Insert(txn.TxnNoop(), common.StringKey(k), v)
			keys = append(keys, kv{k: k, v: v})
		}

		for i, e := range keys {
			ok := tree.Delete(txn.TxnNoop(), common.StringKey(e.k))
			assert.True(t, ok)

			for _, rest := range keys[i+1:] {
				v := tree.Get(txn.TxnNoop(), common.StringKey(rest.k))
				assert.EqualValues(t, rest.v, v)
			}
		}
	})

	t.Run("deleting a missing key returns false", func(t *testing.T) {
		pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
		tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

		tree.Insert(txn.TxnNoop(), common.StringKey("present"), "v")

		assert.False(t, tree.Delete(txn.TxnNoop(), common.StringKey("missing")))
		assert.True(t, tree.Delete(txn.TxnNoop(), common.StringKey("present")))
	})
}

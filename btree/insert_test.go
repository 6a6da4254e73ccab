package btree

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"ridgedb/common"
	"ridgedb/txn"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randStr(min, max int) string {
	n := min + rand.Intn(max-min+1)
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}

func TestInsert(t *testing.T) {
	t.Run("count should be n after all is inserted", func(t *testing.T) {
		pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
		tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

		numKeys := 2000
		for i := 0; i < numKeys; i++ {
			k := randStr(1, 40) + "__" + strconv.Itoa(i)
			v := fmt.Sprintf("val_%v", k)

			tree.Insert(txn.TxnNoop(), common.StringKey(k), v)
		}

		assert.Equal(t, numKeys, tree.Count(txn.TxnNoop()))
	})

	t.Run("items should be found after all is inserted", func(t *testing.T) {
		pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
		tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

		type kv struct{ k, v string }
		keys := make([]kv, 0)
		numKeys := 2000
		for i := 0; i < numKeys; i++ {
			k := randStr(1, 32) + "__" + strconv.Itoa(i)
			v := fmt.Sprintf("val_%v", k)

			tree.Insert(txn.TxnNoop(), common.StringKey(k), v)
			keys = append(keys, kv{k: k, v: v})
		}

		for _, e := range keys {
			v := tree.Get(txn.TxnNoop(), common.StringKey(e.k))
			assert.EqualValues(t, e.v, v)
		}
	})
}

func TestInsertOrReplaceShouldReturnFalseWhenKeyExists(t *testing.T) {
	pager2 := NewPager2(NewMemBPager(), Int64KeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	for i := 0; i < 1000; i++ {
		tree.Insert(txn.TxnNoop(), common.Int64Key(i), strconv.Itoa(i))
	}

	isInserted := tree.Set(txn.TxnNoop(), common.Int64Key(500), "new_500")
	assert.False(t, isInserted)
}

func TestInsertOrReplaceShouldReplaceValueWhenKeyExists(t *testing.T) {
	pager2 := NewPager2(NewMemBPager(), Int64KeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	for i := 0; i < 1000; i++ {
		tree.Insert(txn.TxnNoop(), common.Int64Key(i), strconv.Itoa(i))
	}

	tree.Set(txn.TxnNoop(), common.Int64Key(500), "new_500")

	val := tree.Get(txn.TxnNoop(), common.Int64Key(500))
	assert.Equal(t, "new_500", val)
}

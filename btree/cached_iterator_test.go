package btree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridgedb/common"
	"ridgedb/txn"
)

func TestCachedIteratorReturnsSameResultsAsPlainIterator(t *testing.T) {
	pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	n := 500
	for _, i := range rand.Perm(n) {
		tree.Insert(txn.TxnNoop(), common.StringKey(fmt.Sprintf("k_%05d", i)), fmt.Sprintf("v_%05d", i))
	}

	cache, err := NewLeafCache(1000)
	require.NoError(t, err)
	defer cache.Close()

	plain := NewTreeIterator(txn.TxnNoop(), tree)
	cached := NewCachedIterator(txn.TxnNoop(), tree, cache)

	for i := 0; i < n; i++ {
		pk, pv := plain.Next()
		ck, cv := cached.Next()
		require.NotNil(t, pk)
		require.NotNil(t, ck)
		assert.Equal(t, pk, ck)
		assert.Equal(t, pv, cv)
	}

	_, pv := plain.Next()
	_, cv := cached.Next()
	assert.Nil(t, pv)
	assert.Nil(t, cv)
}

func TestCachedIteratorServesSecondScanFromCache(t *testing.T) {
	pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	n := 300
	for i := 0; i < n; i++ {
		tree.Insert(txn.TxnNoop(), common.StringKey(fmt.Sprintf("k_%05d", i)), fmt.Sprintf("v_%05d", i))
	}

	cache, err := NewLeafCache(1000)
	require.NoError(t, err)
	defer cache.Close()

	first := NewCachedIterator(txn.TxnNoop(), tree, cache)
	count := 0
	for k, _ := first.Next(); k != nil; k, _ = first.Next() {
		count++
	}
	assert.Equal(t, n, count)
	cache.Wait()

	second := NewCachedIteratorWithKey(txn.TxnNoop(), common.StringKey("k_00150"), tree, cache)
	k, v := second.Next()
	require.NotNil(t, k)
	assert.Equal(t, common.StringKey("k_00150"), k)
	assert.Equal(t, "v_00150", v)
}

package btree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"ridgedb/common"
	"ridgedb/txn"
)

func TestTreeIteratorReturnsEveryValueGreaterThanOrEqualToKeyWhenInitializedWithAKey(t *testing.T) {
	pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	n := 2000
	for _, i := range rand.Perm(n) {
		tree.Insert(txn.TxnNoop(), common.StringKey(fmt.Sprintf("selam_%05d", i)), fmt.Sprintf("value_%05d", i))
	}

	it := NewTreeIteratorWithKey(txn.TxnNoop(), common.StringKey("selam_00990"), tree)
	i := 990
	for _, val := it.Next(); val != nil; _, val = it.Next() {
		assert.Equal(t, fmt.Sprintf("value_%05d", i), val.(string))
		i++
	}
}

func TestTreeIteratorReturnsAllValuesWhenInitializedWithoutAKey(t *testing.T) {
	pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	n := 2000
	for _, i := range rand.Perm(n) {
		tree.Insert(txn.TxnNoop(), common.StringKey(fmt.Sprintf("selam_%05d", i)), fmt.Sprintf("value_%05d", i))
	}

	it := NewTreeIterator(txn.TxnNoop(), tree)
	for i := 0; i < n; i++ {
		_, val := it.Next()
		assert.Equal(t, fmt.Sprintf("value_%05d", i), val.(string))
	}
	_, val := it.Next()
	assert.Nil(t, val)
}

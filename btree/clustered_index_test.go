package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridgedb/common"
	"ridgedb/disk/pages"
	"ridgedb/txn"
)

func newTestClusteredIndex(t *testing.T) *ClusteredIndex {
	pager2 := NewPager2(NewMemBPager(), Int64KeySerializer{}, RIDValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)
	return NewClusteredIndex(tree)
}

func TestClusteredIndexDuplicateInsertReturnsFalseWithoutModifying(t *testing.T) {
	ci := newTestClusteredIndex(t)
	tr := txn.TxnNoop()

	first := pages.NewRID(5, 0)
	second := pages.NewRID(5, 1)

	require.True(t, ci.Insert(tr, common.Int64Key(5), first))
	require.False(t, ci.Insert(tr, common.Int64Key(5), second))

	got, ok := ci.Get(tr, common.Int64Key(5))
	require.True(t, ok)
	assert.Equal(t, first, got)
}

func TestClusteredIndexGetMissingKey(t *testing.T) {
	ci := newTestClusteredIndex(t)
	tr := txn.TxnNoop()

	_, ok := ci.Get(tr, common.Int64Key(1))
	assert.False(t, ok)
}

func TestClusteredIndexScanBetween(t *testing.T) {
	ci := newTestClusteredIndex(t)
	tr := txn.TxnNoop()

	for i := int64(0); i < 20; i++ {
		require.True(t, ci.Insert(tr, common.Int64Key(i), pages.NewRID(pages.PageID(i), 0)))
	}

	got := ci.ScanBetween(common.Int64Key(5), common.Int64Key(10), 0)
	require.Len(t, got, 5)
	for i, rid := range got {
		assert.Equal(t, pages.PageID(5+i), rid.PageID)
	}
}

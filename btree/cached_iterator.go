package btree

import (
	"github.com/dgraph-io/ristretto/v2"

	"ridgedb/common"
	"ridgedb/txn"
)

// leafCacheEntry is everything CachedIterator needs from a leaf page without
// going back through the pager to re-decode its slot array.
type leafCacheEntry struct {
	keys   []common.Key
	values []any
	right  Pointer
}

func (e *leafCacheEntry) cost() int64 {
	return int64(len(e.keys)) + 1
}

// NewLeafCache builds a ristretto cache sized for CachedIterator's use, keyed
// by leaf page id. maxCost bounds the sum of the cached leaves' costs, each
// leaf costing its key count plus one (not bytes), since the cached payload
// is already-decoded Go values rather than raw page bytes.
func NewLeafCache(maxCost int64) (*ristretto.Cache[uint64, *leafCacheEntry], error) {
	return ristretto.NewCache(&ristretto.Config[uint64, *leafCacheEntry]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
}

// CachedIterator is a TreeIterator that consults a shared leaf-page decode
// cache before pinning and decoding a leaf through the pager. It never skips
// pinning to decide whether a page is safe to read — it only skips re-running
// GetKeyAt/GetValueAt over every slot when another scan has already paid that
// cost for the same page id. Tree mutations do not invalidate or update
// cached entries; callers doing
// range scans concurrently with writers should not rely on this cache for
// anything beyond an optimistic speedup, since a hit can return a leaf's
// contents as of whenever it was last decoded rather than as of "now".
type CachedIterator struct {
	tx    txn.Transaction
	tree  *BTree
	pager *Pager2
	cache *ristretto.Cache[uint64, *leafCacheEntry]

	curr    Pointer
	entries *leafCacheEntry
	idx     int
}

func NewCachedIterator(tx txn.Transaction, tree *BTree, cache *ristretto.Cache[uint64, *leafCacheEntry]) *CachedIterator {
	curr := leftmostLeaf(tree, tx)
	pid := curr.GetPageId()
	curr.Release()

	it := &CachedIterator{tx: tx, tree: tree, pager: tree.pager, cache: cache, curr: pid}
	it.entries = it.decodeOrFetch(pid)
	return it
}

func NewCachedIteratorWithKey(tx txn.Transaction, key common.Key, tree *BTree, cache *ristretto.Cache[uint64, *leafCacheEntry]) *CachedIterator {
	_, stack := tree.FindAndGetStack(tx, key, Read)
	common.Assert(len(stack) > 0, "FindAndGetStack returned an empty stack")

	leaf := stack[len(stack)-1].Node
	pid := leaf.GetPageId()
	leaf.Release()

	it := &CachedIterator{tx: tx, tree: tree, pager: tree.pager, cache: cache, curr: pid}
	it.entries = it.decodeOrFetch(pid)

	for it.idx < len(it.entries.keys) && it.entries.keys[it.idx].Less(key) {
		it.idx++
	}
	return it
}

// decodeOrFetch pins pid through the pager and returns its cached decode,
// populating the cache on a miss.
func (it *CachedIterator) decodeOrFetch(pid Pointer) *leafCacheEntry {
	if hit, ok := it.cache.Get(uint64(pid)); ok {
		n := it.pager.GetNodeReleaser(it.tx, pid, Read)
		n.Release()
		return hit
	}

	n := it.pager.GetNodeReleaser(it.tx, pid, Read)
	defer n.Release()

	entry := &leafCacheEntry{
		keys:   make([]common.Key, n.KeyLen()),
		values: make([]any, n.KeyLen()),
		right:  n.GetRight(),
	}
	for i := 0; i < n.KeyLen(); i++ {
		entry.keys[i] = n.GetKeyAt(it.tx, i)
		entry.values[i] = n.GetValueAt(it.tx, i)
	}
	it.cache.Set(uint64(pid), entry, entry.cost())
	return entry
}

func (it *CachedIterator) Next() (common.Key, any) {
	for it.idx == len(it.entries.keys) {
		if it.entries.right == 0 {
			return nil, nil
		}
		it.curr = it.entries.right
		it.entries = it.decodeOrFetch(it.curr)
		it.idx = 0
	}

	k, v := it.entries.keys[it.idx], it.entries.values[it.idx]
	it.idx++
	return k, v
}

func (it *CachedIterator) Close() error {
	return nil
}

package btree

import (
	"ridgedb/common"
	"ridgedb/disk/pages"
	"ridgedb/txn"
)

// ClusteredIndex is a typed view over BTree for the engine's actual index
// domain: a unique-key index whose leaves hold the RID of the heap tuple a
// key maps to. BTree itself stays generic over leaf value type (internal
// nodes always hold a Pointer to a child page no matter what the leaves
// hold, and the same tree type also backs string-keyed secondary indexes in
// tests), so ClusteredIndex is where that leaf value gets pinned down to
// pages.RID instead of being passed around as any.
type ClusteredIndex struct {
	Tree *BTree
}

// NewClusteredIndex wraps an already-constructed tree whose pager was built
// with an Int64KeySerializer/RIDValueSerializer pair.
func NewClusteredIndex(tree *BTree) *ClusteredIndex {
	return &ClusteredIndex{Tree: tree}
}

// Insert adds key -> rid, reporting false and leaving the index untouched
// if key already exists.
func (ci *ClusteredIndex) Insert(txn txn.Transaction, key common.Key, rid pages.RID) bool {
	return ci.Tree.Insert(txn, key, rid)
}

// Get looks up key, reporting whether an entry was found.
func (ci *ClusteredIndex) Get(txn txn.Transaction, key common.Key) (pages.RID, bool) {
	v := ci.Tree.Get(txn, key)
	if v == nil {
		return pages.RID{}, false
	}
	return v.(pages.RID), true
}

// Delete removes key, reporting whether it was present.
func (ci *ClusteredIndex) Delete(txn txn.Transaction, key common.Key) bool {
	return ci.Tree.Delete(txn, key)
}

// ScanBetween returns the RIDs for every key in [start, end) in key order.
// end may be nil for an unbounded scan; limit of 0 means no limit.
func (ci *ClusteredIndex) ScanBetween(start, end common.Key, limit int) []pages.RID {
	raw := ci.Tree.FindBetween(start, end, limit)
	out := make([]pages.RID, len(raw))
	for i, v := range raw {
		out[i] = v.(pages.RID)
	}
	return out
}

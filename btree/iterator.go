package btree

import (
	"ridgedb/common"
	"ridgedb/txn"
)

// leftmostLeaf descends from tree's root to its leftmost leaf, releasing
// every internal node it passes through along the way. Both TreeIterator and
// CachedIterator start a full-range scan here.
func leftmostLeaf(tree *BTree, tx txn.Transaction) nodeReleaser {
	curr := tree.GetRoot(tx, Read)
	for !curr.IsLeaf() {
		old := curr
		curr = tree.pager.GetNodeReleaser(tx, curr.GetValueAt(tx, 0).(Pointer), Read)
		old.Release()
	}
	return curr
}

// TreeIterator walks a tree's leaves in key order, left to right, starting
// from either the leftmost leaf or a specific key's position. It holds a read
// latch on exactly one leaf at a time, moving to the next via GetRight once
// the current one is exhausted.
type TreeIterator struct {
	tx       txn.Transaction
	tree     *BTree
	curr     Pointer
	currNode nodeReleaser
	closed   bool
	currIdx  int
	pager    *Pager2
}

func (it *TreeIterator) Next() (common.Key, any) {
	for it.currNode.KeyLen() == it.currIdx {
		it.currNode.Release()
		if it.currNode.GetRight() == 0 {
			it.closed = true
			return nil, nil
		}

		it.curr = it.currNode.GetRight()
		it.currNode = it.pager.GetNodeReleaser(it.tx, it.curr, Read)
		it.currIdx = 0
	}

	key, val := it.currNode.GetKeyAt(it.tx, it.currIdx), it.currNode.GetValueAt(it.tx, it.currIdx)
	it.currIdx++
	return key, val
}

func (it *TreeIterator) Close() error {
	if !it.closed {
		it.currNode.Release()
	}
	return nil
}

func NewTreeIterator(tx txn.Transaction, tree *BTree) *TreeIterator {
	curr := leftmostLeaf(tree, tx)

	return &TreeIterator{
		tx:       tx,
		tree:     tree,
		curr:     curr.GetPageId(),
		currNode: curr,
		currIdx:  0,
		pager:    tree.pager,
	}
}

func NewTreeIteratorWithKey(tx txn.Transaction, key common.Key, tree *BTree) *TreeIterator {
	_, stack := tree.FindAndGetStack(tx, key, Read)
	leaf, idx := stack[len(stack)-1].Node, stack[len(stack)-1].Index

	return &TreeIterator{
		tx:       tx,
		tree:     tree,
		curr:     leaf.GetPageId(),
		currNode: leaf,
		currIdx:  idx,
		pager:    tree.pager,
	}
}

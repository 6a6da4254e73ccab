package btree

import (
	"encoding/binary"
	"log"
	"sort"
	"sync"

	"ridgedb/common"
	"ridgedb/txn"
)

// During rebalancing after a delete, if a parent node participates in a merge
// or redistribution, the parent can itself overflow when the key copied up
// from a child is longer than the key it replaces.

type BTree struct {
	// degree is persisted in the meta page but cached here too: it's a
	// constant for the tree's lifetime, so reading it back out of the meta
	// page on every operation would just be wasted I/O.
	degree int

	maxThatCouldBeFit  int
	overFlowThreshold  int
	underFlowThreshold int
	disMax             int

	// metaPID is the page id of this tree's meta page: root pointer, degree,
	// and anything else needed to reconstruct the tree after a reopen. It
	// never changes once the tree is created.
	metaPID Pointer

	pager         *Pager2
	rootEntryLock *sync.RWMutex
}

// metaPage decodes a BPage holding a tree's root pointer (slot 0) and degree
// (slot 1) fields.
type metaPage struct {
	BPageReleaser
}

func (m *metaPage) getRoot() Pointer {
	return Pointer(binary.BigEndian.Uint64(m.GetAt(0)))
}

func (m *metaPage) setRoot(tx txn.Transaction, p Pointer) {
	CheckErr(m.SetAt(tx, 0, p.Bytes()))
}

func (m *metaPage) getDegree() int {
	return int(binary.BigEndian.Uint16(m.GetAt(1)))
}

func (m *metaPage) setDegree(tx txn.Transaction, degree int) {
	dest := make([]byte, 2)
	binary.BigEndian.PutUint16(dest, uint16(degree))
	CheckErr(m.SetAt(tx, 1, dest))
}

// fillThresholds derives the overflow/underflow/redistribution-split
// thresholds from a tree's degree. The three derived numbers are always a
// function of degree alone, so both construction paths below (create new vs
// reopen existing) compute them the same way rather than repeating the
// arithmetic at each call site.
func fillThresholds(degree int) (maxThatCouldBeFit, overFlowThreshold, underFlowThreshold, disMax int) {
	maxThatCouldBeFit = degree
	overFlowThreshold = maxThatCouldBeFit - 1
	underFlowThreshold = overFlowThreshold / 2
	disMax = overFlowThreshold - underFlowThreshold
	return
}

func NewBtreeWithPager(tx txn.Transaction, degree int, pager *Pager2) *BTree {
	mp, err := pager.CreatePage(tx)
	CheckErr(err)
	meta := metaPage{mp}
	defer meta.Release()

	l, err := pager.NewLeafNode(tx)
	CheckErr(err)
	defer l.Release()

	root, err := pager.NewInternalNode(tx, l.GetPageId())
	CheckErr(err)
	defer root.Release()

	meta.setRoot(tx, root.GetPageId())
	meta.setDegree(tx, degree)

	maxThatCouldBeFit, overFlowThreshold, underFlowThreshold, disMax := fillThresholds(degree)

	return &BTree{
		degree:             degree,
		maxThatCouldBeFit:  maxThatCouldBeFit,
		overFlowThreshold:  overFlowThreshold,
		underFlowThreshold: underFlowThreshold,
		disMax:             disMax,
		pager:              pager,
		rootEntryLock:      &sync.RWMutex{},
		metaPID:            meta.GetPageId(),
	}
}

func ConstructBtreeByMeta(tx txn.Transaction, metaPID Pointer, pager *Pager2) *BTree {
	meta := metaPage{pager.GetPage(tx, metaPID, true)}
	defer meta.Release()

	degree := meta.getDegree()
	maxThatCouldBeFit, overFlowThreshold, underFlowThreshold, disMax := fillThresholds(degree)

	return &BTree{
		degree:             degree,
		maxThatCouldBeFit:  maxThatCouldBeFit,
		overFlowThreshold:  overFlowThreshold,
		underFlowThreshold: underFlowThreshold,
		disMax:             disMax,
		metaPID:            metaPID,
		pager:              pager,
		rootEntryLock:      &sync.RWMutex{},
	}
}

func (tree *BTree) GetMetaPID() Pointer {
	return tree.metaPID
}

func (tree *BTree) GetRoot(tx txn.Transaction, mode TraverseMode) nodeReleaser {
	return tree.pager.GetNodeReleaser(tx, tree.getRoot(tx), mode)
}

func (tree *BTree) meta(tx txn.Transaction, readOnly bool) *metaPage {
	return &metaPage{tree.pager.GetPage(tx, tree.metaPID, readOnly)}
}

func (tree *BTree) getRoot(tx txn.Transaction) Pointer {
	meta := tree.meta(tx, true)
	defer meta.Release()

	return meta.getRoot()
}

func (tree *BTree) setRoot(tx txn.Transaction, p Pointer) {
	meta := tree.meta(tx, false)
	defer meta.Release()
	meta.setRoot(tx, p)
}

func (tree *BTree) GetPager() *Pager2 {
	return tree.pager
}

// Insert adds key -> value. It is a unique-key index: if key already exists
// it reports false and leaves the tree untouched instead of overwriting
// (use Set for upsert semantics).
func (tree *BTree) Insert(tx txn.Transaction, key common.Key, value any) bool {
	existing, stack := tree.FindAndGetStack(tx, key, Insert)
	rootLocked := false
	if len(stack) > 0 && stack[0].Index == -1 {
		defer tree.rootEntryLock.Unlock()
		stack = stack[1:]
		rootLocked = true
	}
	defer func() { release(stack) }()
	if existing != nil {
		return false
	}

	stack = tree.growAfterLeafInsert(tx, key, value, stack, rootLocked)
	return true
}

// Set adds key -> value, overwriting value in place if key is already
// present instead of reporting failure the way Insert does.
func (tree *BTree) Set(tx txn.Transaction, key common.Key, value any) (isInserted bool) {
	existing, stack := tree.FindAndGetStack(tx, key, Insert)
	rootLocked := false
	if len(stack) > 0 && stack[0].Index == -1 {
		defer tree.rootEntryLock.Unlock()
		stack = stack[1:]
		rootLocked = true
	}
	defer func() { release(stack) }()

	if existing != nil {
		topOfStack := stack[len(stack)-1]
		topOfStack.Node.SetValueAt(tx, topOfStack.Index, value)
		stack = stack[:len(stack)-1]
		topOfStack.Node.Release()
		return false
	}

	stack = tree.growAfterLeafInsert(tx, key, value, stack, rootLocked)
	return true
}

// growAfterLeafInsert inserts key -> value at the bottom of stack (the leaf
// FindAndGetStack landed on) and walks upward splitting every node that
// overflows as a result, wiring in a fresh root if the split reaches the one
// rootLocked is holding the entry lock for. Insert and Set both call this
// once they've established the leaf doesn't already hold key. It stops at
// the first node that does not overflow and returns the nodes it did not
// reach, so callers assign its return back to their own stack variable and
// their deferred release(stack) releases them.
func (tree *BTree) growAfterLeafInsert(tx txn.Transaction, key common.Key, value any, stack []NodeIndexPair, rootLocked bool) []NodeIndexPair {
	rightNod := value
	rightKey := key

	for len(stack) > 0 {
		popped := stack[len(stack)-1].Node
		stack = stack[:len(stack)-1]
		i, _ := tree.FindKey(tx, popped, key)
		popped.InsertAt(tx, i, rightKey, rightNod)

		if !tree.isOverFlow(popped) {
			popped.Release()
			break
		}

		rightNod, _, rightKey = tree.splitNode(tx, popped)
		if rootLocked && popped.GetPageId() == tree.getRoot(tx) {
			newRoot, err := tree.pager.NewInternalNode(tx, popped.GetPageId())
			CheckErr(err)

			newRoot.InsertAt(tx, 0, rightKey, rightNod.(Pointer))
			tree.setRoot(tx, newRoot.GetPageId())
			newRoot.Release()
		}
		popped.Release()
	}

	return stack
}

func (tree *BTree) Delete(tx txn.Transaction, key common.Key) bool {
	i, stack := tree.FindAndGetStack(tx, key, Delete)
	rootLocked := false
	if len(stack) > 0 && stack[0].Index == -1 {
		defer tree.rootEntryLock.Unlock()
		stack = stack[1:]
		rootLocked = true
	}
	defer func() { release(stack) }()
	if i == nil {
		return false
	}

	// Freeing pages must be delayed: if the transaction fails, recovery must
	// be able to allocate the exact same page back during rollback, since
	// other pages may still point to it. Freeing directly would let another
	// transaction reuse the page id immediately. So write latches on pages
	// queued here are only released once every page is queued, at the end
	// of this call.
	toFree := make([]nodeReleaser, 0)
	defer func() {
		for _, n := range toFree {
			id := n.GetPageId()
			n.Release()
			tree.pager.FreeNode(tx, id)
		}
	}()

	for len(stack) > 0 {
		popped := stack[len(stack)-1].Node
		stack = stack[:len(stack)-1]
		if popped.IsLeaf() {
			index, _ := tree.FindKey(tx, popped, key)
			popped.DeleteAt(tx, index)
		}

		if len(stack) == 0 {
			// No parent left on the stack means popped is the topmost node
			// still latched (the root, or the lowest ancestor the descent
			// did not release as safe); done.
			popped.Release()
			return true
		}

		if !tree.isUnderFlow(popped) {
			popped.Release()
			break
		}

		indexAtParent := stack[len(stack)-1].Index
		parent := stack[len(stack)-1].Node

		var rightSibling, leftSibling, merged nodeReleaser
		if indexAtParent > 0 {
			leftSibling = tree.pager.GetNodeReleaser(tx, parent.GetValueAt(tx, indexAtParent-1).(Pointer), Delete)
		}
		if indexAtParent+1 < parent.KeyLen()+1 { // +1 is the pointer count
			rightSibling = tree.pager.GetNodeReleaser(tx, parent.GetValueAt(tx, indexAtParent+1).(Pointer), Delete)
		}

		if rightSibling != nil && tree.canRedistribute(popped, rightSibling) {
			tree.redistribute(tx, popped, rightSibling, parent)
			popped.Release()
			rightSibling.Release()
			if leftSibling != nil {
				leftSibling.Release()
			}
			return true
		} else if leftSibling != nil && tree.canRedistribute(popped, leftSibling) {
			tree.redistribute(tx, leftSibling, popped, parent)
			popped.Release()
			leftSibling.Release()
			if rightSibling != nil {
				rightSibling.Release()
			}
			return true
		}

		// Redistribution wasn't valid: merge with whichever sibling exists.
		if rightSibling != nil {
			tree.mergeNodes(tx, popped, rightSibling, parent)
			merged = popped
			toFree = append(toFree, rightSibling)
			popped.Release()
			if leftSibling != nil {
				leftSibling.Release()
			}
		} else if leftSibling != nil {
			tree.mergeNodes(tx, leftSibling, popped, parent)
			merged = leftSibling
			leftSibling.Release()
			toFree = append(toFree, popped)
		} else {
			common.Assert(popped.IsLeaf(), "both siblings are nil for an internal node; only possible for the root")
			popped.Release()
			return true
		}

		if rootLocked && parent.GetPageId() == tree.getRoot(tx) && parent.KeyLen() == 0 {
			tree.setRoot(tx, merged.GetPageId())
		}
	}

	return true
}

func (tree *BTree) Get(tx txn.Transaction, key common.Key) any {
	res, stack := tree.FindAndGetStack(tx, key, Read)
	for _, pair := range stack {
		pair.Node.Release()
	}

	return res
}

func (tree *BTree) FindBetween(start, end common.Key, limit int) []any {
	it := NewTreeIteratorWithKey(txn.TxnNoop(), start, tree)
	res := make([]any, 0)
	for key, val := it.Next(); val != nil; key, val = it.Next() {
		if end != nil && !key.Less(end) {
			break
		}
		res = append(res, val)
		if limit != 0 && len(res) == limit {
			break
		}
	}

	CheckErr(it.Close())

	return res
}

func (tree *BTree) Height(tx txn.Transaction) int {
	curr := tree.GetRoot(tx, Read)
	acc := 0
	for {
		if curr.IsLeaf() {
			curr.Release()
			return acc + 1
		}
		old := curr
		curr = tree.pager.GetNodeReleaser(tx, curr.GetValueAt(tx, 0).(Pointer), Read)
		old.Release()
		acc++
	}
}

func (tree *BTree) Count(tx txn.Transaction) int {
	tree.rootEntryLock.RLock()
	n := tree.GetRoot(tx, Read)
	tree.rootEntryLock.RUnlock()
	for !n.IsLeaf() {
		old := n
		n = tree.pager.GetNodeReleaser(tx, n.GetValueAt(tx, 0).(Pointer), Read)
		old.Release()
	}

	num := 0
	for {
		num += n.KeyLen()

		r := n.GetRight()
		if r == 0 {
			n.Release()
			break
		}

		old := n
		n = tree.pager.GetNodeReleaser(tx, r, Read)
		old.Release()
	}

	return num
}

func (tree *BTree) Print(tx txn.Transaction) {
	queue := make([]Pointer, 0, 2)
	queue = append(queue, tree.getRoot(tx), 0)
	for i := 0; i < len(queue); i++ {
		if queue[i] == 0 {
			queue = append(queue, 0)
			continue
		}

		n := tree.pager.GetNodeReleaser(tx, queue[i], Read)
		if n.IsLeaf() {
			n.Release()
			break
		}

		for _, val := range n.GetValues(tx) {
			queue = append(queue, val.(Pointer))
		}
		n.Release()
	}
	for _, p := range queue {
		if p == 0 {
			log.Print("\n ### \n")
			continue
		}
		n := tree.pager.GetNodeReleaser(tx, p, Read)
		n.PrintNode(tx)
		n.Release()
	}
}

func (tree *BTree) findAndGetStack(tx txn.Transaction, n nodeReleaser, key common.Key, stackIn []NodeIndexPair, mode TraverseMode) (value any, stackOut []NodeIndexPair) {
	if n.IsLeaf() {
		i, found := tree.FindKey(tx, n, key)
		stackOut = append(stackIn, NodeIndexPair{n, i})
		if !found {
			return nil, stackOut
		}

		return n.GetValueAt(tx, i), stackOut
	}

	i, found := tree.FindKey(tx, n, key)
	if found {
		i++
	}
	stackOut = append(stackIn, NodeIndexPair{n, i})
	pointer := n.GetValueAt(tx, i).(Pointer)
	childNode := tree.pager.GetNodeReleaser(tx, pointer, mode)

	switch mode {
	case Read:
		// The root entry lock is released by FindAndGetStack, not here.
		stackOut = stackOut[1:]
		n.Release()
	case Debug:
		// Keep the whole stack.
	default:
		var safe bool
		if mode == Insert {
			safe = tree.safeForSplit(childNode)
		} else if mode == Delete {
			safe = tree.safeForMerge(childNode)
		}

		if safe {
			for _, pair := range stackOut {
				if pair.Index == -1 {
					tree.rootEntryLock.Unlock()
				} else {
					pair.Node.Release()
				}
			}
			stackOut = stackOut[:0]
		}
	}

	res, stackOut := tree.findAndGetStack(tx, childNode, key, stackOut, mode)
	return res, stackOut
}

// FindAndGetStack walks down from the root looking for key, returning its
// value (nil if absent) along with the path of latched nodes followed to
// get there. In Insert/Delete mode the stack only keeps nodes back to the
// nearest ancestor proven safe from a cascading split/merge; in Read mode it
// keeps only the leaf, since a reader never needs to retrace its path.
func (tree *BTree) FindAndGetStack(tx txn.Transaction, key common.Key, mode TraverseMode) (value any, stackOut []NodeIndexPair) {
	var stack []NodeIndexPair
	tree.rootEntryLock.Lock()
	root := tree.GetRoot(tx, mode)
	if mode == Insert || mode == Delete {
		// A sentinel pair recording that the root entry lock is held; the
		// caller releases it via this pair's presence in the stack.
		stack = append(stack, NodeIndexPair{Index: -1})
	} else {
		// A read can never trigger a split, so the entry lock can be
		// dropped immediately rather than carried down the whole descent.
		tree.rootEntryLock.Unlock()
	}
	return tree.findAndGetStack(tx, root, key, stack, mode)
}

func (tree *BTree) mergeInternalNodes(tx txn.Transaction, left, right, parent node) {
	var i int
	for i = 0; parent.GetValueAt(tx, i).(Pointer) != left.GetPageId(); i++ {
	}

	for ii := 0; ii < right.KeyLen()+1; ii++ {
		var k common.Key
		if ii == 0 {
			k = parent.GetKeyAt(tx, i)
		} else {
			k = right.GetKeyAt(tx, ii-1)
		}
		left.InsertAt(tx, left.KeyLen(), k, right.GetValueAt(tx, ii))
	}
	parent.DeleteAt(tx, i)
}

func (tree *BTree) mergeLeafNodes(tx txn.Transaction, left, right, parent node) {
	var i int
	for i = 0; parent.GetValueAt(tx, i).(Pointer) != left.GetPageId(); i++ {
	}

	for i := 0; i < right.KeyLen(); i++ {
		left.InsertAt(tx, left.KeyLen(), right.GetKeyAt(tx, i), right.GetValueAt(tx, i))
	}

	parent.DeleteAt(tx, i)
	leftHeader := left.GetHeader()
	leftHeader.Right = right.GetHeader().Right
	left.SetHeader(tx, leftHeader)
}

// mergeNodes folds right into left; left ends up holding every entry and
// right is left empty for the caller to free.
func (tree *BTree) mergeNodes(tx txn.Transaction, left, right, parent node) {
	if left.IsLeaf() {
		tree.mergeLeafNodes(tx, left, right, parent)
	} else {
		tree.mergeInternalNodes(tx, left, right, parent)
	}
}

func (tree *BTree) redistributeInternalNodes(tx txn.Transaction, leftNode, rightNode, parent node) {
	var i int
	for i = 0; parent.GetValueAt(tx, i).(Pointer) != leftNode.GetPageId(); i++ {
	}

	fillFactorAfterRedistribute := (leftNode.FillFactor() + rightNode.FillFactor()) / 2

	if leftNode.FillFactor() < fillFactorAfterRedistribute {
		for {
			leftNode.InsertAt(tx, leftNode.KeyLen(), parent.GetKeyAt(tx, i), rightNode.GetValueAt(tx, 0))
			parent.SetKeyAt(tx, i, rightNode.GetKeyAt(tx, 0))
			cutFromInternalNode(tx, rightNode)

			if rightNode.FillFactor() <= fillFactorAfterRedistribute {
				break
			}
		}
	} else {
		for {
			pushToInternalNode(tx, rightNode, leftNode.GetValueAt(tx, leftNode.KeyLen()), parent.GetKeyAt(tx, i))
			parent.SetKeyAt(tx, i, leftNode.GetKeyAt(tx, leftNode.KeyLen()-1))
			leftNode.DeleteAt(tx, leftNode.KeyLen()-1)

			if leftNode.FillFactor() <= fillFactorAfterRedistribute {
				break
			}
		}
	}
}

func (tree *BTree) redistributeLeafNodes(tx txn.Transaction, leftNode, rightNode, parent node) {
	var i int
	for i = 0; parent.GetValueAt(tx, i).(Pointer) != leftNode.GetPageId(); i++ {
	}

	totalFillFactor := leftNode.FillFactor() + rightNode.FillFactor()
	leftTarget := totalFillFactor / 2
	rightTarget := totalFillFactor - leftTarget

	if leftNode.FillFactor() < leftTarget {
		for {
			leftNode.InsertAt(tx, leftNode.KeyLen(), rightNode.GetKeyAt(tx, 0), rightNode.GetValueAt(tx, 0))
			rightNode.DeleteAt(tx, 0)

			if leftNode.FillFactor() >= leftTarget {
				break
			}
		}
	} else {
		for {
			rightNode.InsertAt(tx, 0, leftNode.GetKeyAt(tx, leftNode.KeyLen()-1), leftNode.GetValueAt(tx, leftNode.KeyLen()-1))
			leftNode.DeleteAt(tx, leftNode.KeyLen()-1)

			if rightNode.FillFactor() >= rightTarget {
				break
			}
		}
	}

	parent.SetKeyAt(tx, i, rightNode.GetKeyAt(tx, 0))
}

func (tree *BTree) redistribute(tx txn.Transaction, left, right, parent node) {
	if left.IsLeaf() {
		tree.redistributeLeafNodes(tx, left, right, parent)
	} else {
		tree.redistributeInternalNodes(tx, left, right, parent)
	}
}

func (tree *BTree) splitInternalNode(tx txn.Transaction, p node) (right Pointer, keyAtLeft common.Key, keyAtRight common.Key) {
	fillFactor := p.FillFactor()
	minFillFactorAfterSplit := fillFactor / 2

	rightNode, err := tree.pager.NewInternalNode(tx, Pointer(0))
	CheckErr(err)
	defer rightNode.Release()

	keys := make([]common.Key, 0)
	values := make([]any, 0)
	for {
		k, v := p.GetKeyAt(tx, p.KeyLen()-1), p.GetValueAt(tx, p.KeyLen())
		keys = append(keys, k)
		values = append(values, v)

		p.DeleteAt(tx, p.KeyLen()-1)

		if p.FillFactor() <= minFillFactorAfterSplit+1 {
			break
		}
	}

	// keyAtLeft is the last key remaining in p after the split; keyAtRight
	// is the key pushed up to the parent (despite the name, it never ends
	// up stored in rightNode itself).
	keyAtLeft = p.GetKeyAt(tx, p.KeyLen()-1)
	keyAtRight = keys[len(keys)-1]

	rightNode.SetValueAt(tx, 0, values[len(values)-1])
	for i := len(values) - 2; i >= 0; i-- {
		rightNode.InsertAt(tx, len(values)-2-i, keys[i], values[i])
	}

	return rightNode.GetPageId(), keyAtLeft, keyAtRight
}

func (tree *BTree) splitLeafNode(tx txn.Transaction, p node) (right Pointer, keyAtLeft common.Key, keyAtRight common.Key) {
	fillFactor := p.FillFactor()
	minFillFactorAfterSplit := fillFactor / 2

	rightNode, err := tree.pager.NewLeafNode(tx)
	CheckErr(err)
	defer rightNode.Release()

	for {
		rightNode.InsertAt(tx, 0, p.GetKeyAt(tx, p.KeyLen()-1), p.GetValueAt(tx, p.KeyLen()-1))
		p.DeleteAt(tx, p.KeyLen()-1)

		if rightNode.FillFactor() >= minFillFactorAfterSplit {
			break
		}
	}

	keyAtLeft = p.GetKeyAt(tx, p.KeyLen()-1)
	keyAtRight = rightNode.GetKeyAt(tx, 0)

	leftHeader, rightHeader := p.GetHeader(), rightNode.GetHeader()
	rightHeader.Right = leftHeader.Right
	rightHeader.Left = p.GetPageId()
	leftHeader.Right = rightNode.GetPageId()
	p.SetHeader(tx, leftHeader)
	rightNode.SetHeader(tx, rightHeader)

	return rightNode.GetPageId(), keyAtLeft, keyAtRight
}

func (tree *BTree) splitNode(tx txn.Transaction, p node) (right Pointer, keyAtLeft common.Key, keyAtRight common.Key) {
	if p.IsLeaf() {
		return tree.splitLeafNode(tx, p)
	}
	return tree.splitInternalNode(tx, p)
}

// FindKey returns the index of key within p (found=true) or the index it
// would be inserted at to keep p sorted (found=false).
func (tree *BTree) FindKey(tx txn.Transaction, p node, key common.Key) (index int, found bool) {
	h := p.GetHeader()
	i := sort.Search(int(h.KeyLen), func(i int) bool {
		return key.Less(p.GetKeyAt(tx, i))
	})

	if i > 0 && !p.GetKeyAt(tx, i-1).Less(key) {
		return i - 1, true
	}
	return i, false
}

func release(stack []NodeIndexPair) {
	for _, pair := range stack {
		pair.Node.Release()
	}
}

func (tree *BTree) isOverFlow(sp node) bool {
	return sp.FillFactor() > tree.overFlowThreshold
}

func (tree *BTree) isUnderFlow(sp node) bool {
	return sp.FillFactor() < tree.underFlowThreshold
}

func (tree *BTree) canMerge(underFlowed, sibling node) bool {
	return underFlowed.FillFactor()+sibling.FillFactor() < tree.overFlowThreshold
}

func (tree *BTree) canRedistribute(underFlowed, sibling node) bool {
	return !tree.canMerge(underFlowed, sibling)
}

func (tree *BTree) safeForMerge(sp node) bool {
	return sp.FillFactor()-1 > tree.underFlowThreshold
}

func (tree *BTree) safeForSplit(sp node) bool {
	return sp.FillFactor()+1 < tree.overFlowThreshold
}

func pushToInternalNode(tx txn.Transaction, n node, val any, key common.Key) {
	n.InsertAt(tx, 0, key, n.GetValueAt(tx, 0))
	n.SetValueAt(tx, 0, val)
}

func cutFromInternalNode(tx txn.Transaction, n node) {
	n.SetValueAt(tx, 0, n.GetValueAt(tx, 1))
	n.DeleteAt(tx, 0)
}

package btree

import (
	"ridgedb/common"
	"ridgedb/txn"
)

// Pager2 is the only thing BTree talks to for node storage: it turns a
// Pointer into a latched node (or raw BPage, for overflow chains) through
// whatever BPager backs it — in-memory for unit tests, buffer-pool-backed
// for everything else — and decides, from each page's own header byte,
// whether to hand back a leaf or an internal node.
type Pager2 struct {
	bpager BPager
	ks     KeySerializer
	vs     ValueSerializer
}

func NewPager2(bpager BPager, ks KeySerializer, vs ValueSerializer) *Pager2 {
	return &Pager2{bpager: bpager, ks: ks, vs: vs}
}

func (p2 *Pager2) NewInternalNode(tx txn.Transaction, firstPointer Pointer) (nodeReleaser, error) {
	bpage, err := p2.bpager.NewBPage(tx)
	if err != nil {
		return nil, err
	}

	n := &VarKeyInternalNode{p: bpage, keySerializer: p2.ks, pager: p2}
	n.SetHeader(tx, &PersistentNodeHeader{IsLeaf: 0, KeyLen: 0})
	n.SetValueAt(tx, 0, firstPointer)

	return &writeNodeReleaser{node: n, p: bpage}, nil
}

func (p2 *Pager2) NewLeafNode(tx txn.Transaction) (nodeReleaser, error) {
	bpage, err := p2.bpager.NewBPage(tx)
	if err != nil {
		return nil, err
	}

	n := &VarKeyLeafNode{p: bpage, keySerializer: p2.ks, valSerializer: p2.vs, pager: p2}
	n.SetHeader(tx, &PersistentNodeHeader{IsLeaf: 1, KeyLen: 0})

	return &writeNodeReleaser{node: n, p: bpage}, nil
}

// GetNodeReleaser latches p for mode and decodes it into the right node kind.
// It returns nil if no node was traversed to (a nil child pointer).
func (p2 *Pager2) GetNodeReleaser(tx txn.Transaction, p Pointer, mode TraverseMode) nodeReleaser {
	n, page := p2.getNode(tx, p, mode)
	if n == nil {
		return nil
	}
	if mode == Read {
		return &readNodeReleaser{node: n, p: page}
	}
	return &writeNodeReleaser{node: n, p: page}
}

func (p2 *Pager2) FreeNode(tx txn.Transaction, n Pointer) {
	p2.bpager.FreeBPage(tx, n)
}

func (p2 *Pager2) CreatePage(tx txn.Transaction) (BPageReleaser, error) {
	return p2.bpager.NewBPage(tx)
}

func (p2 *Pager2) GetPage(tx txn.Transaction, p Pointer, readOnly bool) BPageReleaser {
	var (
		bpage BPageReleaser
		err   error
	)
	if readOnly {
		bpage, err = p2.bpager.GetBPageToRead(tx, p)
	} else {
		bpage, err = p2.bpager.GetBPageToWrite(tx, p)
	}
	common.PanicIfErr(err)
	return bpage
}

func (p2 *Pager2) CreateOverflow(tx txn.Transaction) (OverflowReleaser, error) {
	return p2.bpager.CreateOverflow(tx)
}

func (p2 *Pager2) FreeOverflow(tx txn.Transaction, p Pointer) error {
	return p2.bpager.FreeOverflow(tx, p)
}

func (p2 *Pager2) GetOverflowReleaser(p Pointer) (OverflowReleaser, error) {
	return p2.bpager.GetOverflowReleaser(p)
}

// getNode fetches p's backing page under mode's latch and decodes it into a
// node by reading the leaf/internal flag out of its persistent header — the
// one place in the pager that has to look at a page's bytes before knowing
// which concrete node type to build.
func (p2 *Pager2) getNode(tx txn.Transaction, p Pointer, mode TraverseMode) (node, BPageReleaser) {
	if p == 0 {
		return nil, nil
	}

	var (
		bpage BPageReleaser
		err   error
	)
	if mode == Read {
		bpage, err = p2.bpager.GetBPageToRead(tx, p)
	} else {
		bpage, err = p2.bpager.GetBPageToWrite(tx, p)
	}
	common.PanicIfErr(err)

	h := ReadPersistentNodeHeader(bpage.GetAt(0))
	if h.IsLeaf == 1 {
		return &VarKeyLeafNode{p: bpage, keySerializer: p2.ks, valSerializer: p2.vs, pager: p2}, bpage
	}
	return &VarKeyInternalNode{p: bpage, keySerializer: p2.ks, pager: p2}, bpage
}

// readNodeReleaser and writeNodeReleaser are identical but for the latch mode
// they were obtained under; kept as distinct types (rather than one struct
// with a mode field) so a caller can never accidentally Release a page it
// only ever locked for read as though it had taken the write latch, or vice
// versa — the type itself records which latch GetNodeReleaser took.
type readNodeReleaser struct {
	node
	p BPageReleaser
}

func (n *readNodeReleaser) Release() { n.p.Release() }

type writeNodeReleaser struct {
	node
	p BPageReleaser
}

func (n *writeNodeReleaser) Release() { n.p.Release() }

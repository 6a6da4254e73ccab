package btree

import (
	"encoding/binary"
	"ridgedb/common"
	"ridgedb/txn"
)

// Pointer identifies a tree node the same way pages.PageID identifies a heap
// page: a backing BPage to fetch through the Pager2/BPager chain, never a
// value interpreted outside that chain.
type Pointer uint64

func (p Pointer) Serialize(dest []byte) {
	binary.BigEndian.PutUint64(dest, uint64(p))
}

func (p Pointer) Bytes() []byte {
	res := make([]byte, 8)
	binary.BigEndian.PutUint64(res, uint64(p))
	return res
}

func DeserializePointer(dest []byte) Pointer {
	return Pointer(binary.BigEndian.Uint64(dest))
}

// NodeIndexPair is one frame of the latch-crabbing stack BTree keeps while
// descending: the node it latched plus the index within it that was followed
// (a child pointer index for an internal node, a value slot for a leaf).
type NodeIndexPair struct {
	Node  nodeReleaser
	Index int
}

// TraverseMode tells Pager2.GetNodeReleaser what latch to take while walking
// down to a node: Read takes a read latch, Delete/Insert/Debug take a write
// latch (Delete/Insert since the caller may end up mutating the node it
// lands on).
type TraverseMode int

const (
	Read TraverseMode = iota
	Delete
	Insert
	Debug
)

// node is the method set both internal and leaf pages satisfy: everything the
// tree's descent/split/merge logic needs without caring which kind of page it
// is holding. It stays unexported since callers only ever see it wrapped in a
// nodeReleaser, never on its own.
//
// Parameters are named tx rather than txn so a method body can still say
// txn.Transaction (the type) without the parameter shadowing the package.
type node interface {
	SetKeyAt(tx txn.Transaction, idx int, key common.Key)
	SetValueAt(tx txn.Transaction, idx int, val interface{})
	GetKeyAt(tx txn.Transaction, idx int) common.Key
	GetValueAt(tx txn.Transaction, idx int) interface{}
	GetValues(tx txn.Transaction) []interface{}
	PrintNode(tx txn.Transaction)
	InsertAt(tx txn.Transaction, index int, key common.Key, val interface{})
	DeleteAt(tx txn.Transaction, index int)
	GetPageId() Pointer
	IsLeaf() bool
	GetHeader() *PersistentNodeHeader
	SetHeader(tx txn.Transaction, h *PersistentNodeHeader)

	KeyLen() int
	FillFactor() int
	GetRight() Pointer
}

type nodeReleaser interface {
	node
	Release()
}

const (
	PersistentNodeHeaderSize = 3 + 3*NodePointerSize
	NodePointerSize          = 8 // Pointer is uint64 which is 8 bytes
)

type PersistentNodeHeader struct {
	IsLeaf   uint8
	KeyLen   uint16
	Right    Pointer
	Left     Pointer
	Overflow Pointer
}

func ReadPersistentNodeHeader(data []byte) *PersistentNodeHeader {
	dest := PersistentNodeHeader{
		IsLeaf:   data[0],
		KeyLen:   binary.BigEndian.Uint16(data[1:]),
		Right:    Pointer(binary.BigEndian.Uint64(data[3:])),
		Left:     Pointer(binary.BigEndian.Uint64(data[11:])),
		Overflow: Pointer(binary.BigEndian.Uint64(data[19:])),
	}

	return &dest
}

func WritePersistentNodeHeader(header *PersistentNodeHeader, dest []byte) {
	dest[0] = header.IsLeaf
	binary.BigEndian.PutUint16(dest[1:], header.KeyLen)
	binary.BigEndian.PutUint64(dest[3:], uint64(header.Right))
	binary.BigEndian.PutUint64(dest[11:], uint64(header.Left))
	binary.BigEndian.PutUint64(dest[19:], uint64(header.Overflow))
}

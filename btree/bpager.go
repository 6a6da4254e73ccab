package btree

import (
	"ridgedb/txn"
)

// BPage is a node's view of its backing storage: raw slot access plus the
// capacity/usage numbers split/merge decisions are based on. It knows
// nothing about keys, values, or the leaf/internal distinction — that
// decoding happens one layer up, in VarKeyLeafNode/VarKeyInternalNode.
type BPage interface {
	GetAt(idx int) []byte
	InsertAt(tx txn.Transaction, idx int, data []byte) error
	SetAt(tx txn.Transaction, idx int, data []byte) error
	DeleteAt(tx txn.Transaction, idx int) error

	EmptySpace() int
	Cap() int
	Count() uint16

	GetPageId() Pointer
}

type BPageReleaser interface {
	BPage
	Release()
}

// BPager creates, fetches and frees the pages nodes are stored in, plus the
// overflow chain used for payloads too large to fit a single slotted page.
// BufferBPager is the production implementation (pages live in the shared
// buffer pool); MemBPager backs single-process tests that don't need a disk
// manager at all.
type BPager interface {
	// NewBPage allocates a fresh page, pinned and exclusively latched.
	NewBPage(tx txn.Transaction) (BPageReleaser, error)

	// GetBPageToRead fetches p pinned under a read latch.
	GetBPageToRead(tx txn.Transaction, p Pointer) (BPageReleaser, error)

	// GetBPageToWrite fetches p pinned under a write latch.
	GetBPageToWrite(tx txn.Transaction, p Pointer) (BPageReleaser, error)

	// Unpin decreases p's pin count without releasing a latch.
	Unpin(p Pointer)

	// FreeBPage returns p to the free list; callers must hold no further
	// reference to it afterward.
	FreeBPage(tx txn.Transaction, p Pointer)

	CreateOverflow(tx txn.Transaction) (OverflowReleaser, error)
	FreeOverflow(tx txn.Transaction, p Pointer) error
	GetOverflowReleaser(p Pointer) (OverflowReleaser, error)
}

// Overflow stores the part of a node's payload that didn't fit in the node's
// own slotted page, as its own independent, indexable byte-slot sequence.
type Overflow interface {
	GetPageId() uint64
	GetAt(tx txn.Transaction, idx int) ([]byte, error)
	Insert(tx txn.Transaction, data []byte) (int, error)
	SetAt(tx txn.Transaction, idx int, data []byte) error
	DeleteAt(tx txn.Transaction, idx int) error
	Count(tx txn.Transaction) (int, error)
	Free(tx txn.Transaction) error
}

type OverflowReleaser interface {
	Overflow
}

// Package exthash implements an in-memory extendible hash directory: a
// doubling array of directory slots, each pointing at a bucket of bounded
// capacity. It backs the buffer pool's page-id -> frame-index table, and is
// generic so it can equally serve any other fixed-capacity K -> V mapping
// that wants O(1) lookup without the rehash-everything cost of a growing
// Go map.
package exthash

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// entry is one key/value pair living in a bucket.
type entry[V any] struct {
	key   uint64
	value V
}

// bucket holds up to capacity entries and the local depth it was split to.
// local depth never exceeds the directory's global depth, and directory
// slots aliasing the same bucket always agree on it.
type bucket[V any] struct {
	depth   int
	entries []entry[V]
}

func newBucket[V any](depth int) *bucket[V] {
	return &bucket[V]{depth: depth}
}

func (b *bucket[V]) find(key uint64) (V, bool) {
	for _, e := range b.entries {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[V]) remove(key uint64) bool {
	for i, e := range b.entries {
		if e.key == key {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// put inserts or overwrites key's entry. It does not itself enforce
// capacity on fresh inserts; the caller checks full afterward.
func (b *bucket[V]) put(key uint64, value V) {
	for i, e := range b.entries {
		if e.key == key {
			b.entries[i].value = value
			return
		}
	}
	b.entries = append(b.entries, entry[V]{key: key, value: value})
}

func (b *bucket[V]) full(capacity int) bool {
	return len(b.entries) > capacity
}

// Directory is an extendible hash table: globalDepth bits of a key's hash
// select one of 2^globalDepth slots, each a pointer into buckets. Multiple
// slots may point at the same bucket when its local depth is less than
// globalDepth.
type Directory[V any] struct {
	mu             sync.RWMutex
	globalDepth    int
	bucketCapacity int
	buckets        []*bucket[V]
}

// New builds a directory with two slots, each pointing at its own empty
// bucket of local depth 1 and the given capacity, and global depth 1 - mirroring the extendible
// hash table this is grounded on, which never starts at depth 0.
func New[V any](bucketCapacity int) *Directory[V] {
	if bucketCapacity < 1 {
		bucketCapacity = 1
	}
	return &Directory[V]{
		globalDepth:    1,
		bucketCapacity: bucketCapacity,
		buckets:        []*bucket[V]{newBucket[V](1), newBucket[V](1)},
	}
}

func hashKey(key uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}

func bucketIndex(h uint64, globalDepth int) int {
	mask := uint64(1)<<uint(globalDepth) - 1
	return int(h & mask)
}

func (d *Directory[V]) Find(key uint64) (V, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx := bucketIndex(hashKey(key), d.globalDepth)
	return d.buckets[idx].find(key)
}

func (d *Directory[V]) Remove(key uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := bucketIndex(hashKey(key), d.globalDepth)
	return d.buckets[idx].remove(key)
}

// Insert adds or overwrites key's entry, splitting (and, if necessary,
// doubling the directory first) as many times as it takes for every bucket
// to fit back within capacity.
func (d *Directory[V]) Insert(key uint64, value V) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := hashKey(key)
	idx := bucketIndex(h, d.globalDepth)
	d.buckets[idx].put(key, value)

	for d.buckets[idx].full(d.bucketCapacity) {
		d.split(idx)
		idx = bucketIndex(h, d.globalDepth)
	}
}

// split resolves one overflowing bucket. If its local depth has caught up to
// the global depth, the directory doubles first so there is room to grow the
// bucket's depth past it. It then partitions the bucket's entries between
// two fresh buckets by the newly significant hash bit and repoints every
// directory slot that aliased the old bucket to whichever of the two its
// index selects by that same bit. A bucket's depth may trail the global
// depth by more than one, so there can be more than two such slots.
func (d *Directory[V]) split(idx int) {
	old := d.buckets[idx]
	if old.depth == d.globalDepth {
		d.double()
	}

	newDepth := old.depth + 1
	diffBit := uint64(1) << uint(newDepth-1)

	b0 := newBucket[V](newDepth)
	b1 := newBucket[V](newDepth)
	for _, e := range old.entries {
		if hashKey(e.key)&diffBit == 0 {
			b0.entries = append(b0.entries, e)
		} else {
			b1.entries = append(b1.entries, e)
		}
	}

	for i, b := range d.buckets {
		if b != old {
			continue
		}
		if i&int(diffBit) == 0 {
			d.buckets[i] = b0
		} else {
			d.buckets[i] = b1
		}
	}
}

func (d *Directory[V]) double() {
	doubled := make([]*bucket[V], len(d.buckets)*2)
	for i, b := range d.buckets {
		doubled[i] = b
		doubled[i+len(d.buckets)] = b
	}
	d.buckets = doubled
	d.globalDepth++
}

func (d *Directory[V]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	seen := make(map[*bucket[V]]bool)
	for _, b := range d.buckets {
		if seen[b] {
			continue
		}
		seen[b] = true
		n += len(b.entries)
	}
	return n
}

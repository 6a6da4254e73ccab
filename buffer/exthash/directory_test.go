package exthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectoryInsertAndFind(t *testing.T) {
	d := New[int](2)

	for i := uint64(0); i < 200; i++ {
		d.Insert(i, int(i)*10)
	}

	for i := uint64(0); i < 200; i++ {
		v, ok := d.Find(i)
		assert.True(t, ok)
		assert.Equal(t, int(i)*10, v)
	}
	assert.Equal(t, 200, d.Len())
}

func TestDirectoryOverwriteExistingKey(t *testing.T) {
	d := New[string](4)

	d.Insert(7, "first")
	d.Insert(7, "second")

	v, ok := d.Find(7)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, d.Len())
}

func TestDirectoryRemove(t *testing.T) {
	d := New[int](2)
	d.Insert(1, 100)
	d.Insert(2, 200)

	assert.True(t, d.Remove(1))
	_, ok := d.Find(1)
	assert.False(t, ok)

	v, ok := d.Find(2)
	assert.True(t, ok)
	assert.Equal(t, 200, v)

	assert.False(t, d.Remove(1))
}

func TestDirectoryFindMissingKey(t *testing.T) {
	d := New[int](4)
	d.Insert(1, 1)

	_, ok := d.Find(999)
	assert.False(t, ok)
}

func TestDirectoryGrowsPastSingleDirectoryDoubling(t *testing.T) {
	d := New[int](1)

	const n = 2000
	for i := uint64(0); i < n; i++ {
		d.Insert(i, int(i))
	}

	assert.Equal(t, n, d.Len())
	for i := uint64(0); i < n; i += 37 {
		v, ok := d.Find(i)
		assert.True(t, ok)
		assert.Equal(t, int(i), v)
	}
}

package btree

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridgedb/common"
	"ridgedb/txn"
)

// chunkInts splits arr into slices of at most size elements, preserving order.
func chunkInts(arr []int, size int) [][]int {
	var chunks [][]int
	for size < len(arr) {
		chunks = append(chunks, arr[:size:size])
		arr = arr[size:]
	}
	if len(arr) > 0 {
		chunks = append(chunks, arr)
	}
	return chunks
}

// go test -run FuzzConcurrent_Inserts ./btree -fuzz=Fuzz -fuzztime 10s
func FuzzConcurrent_Inserts(f *testing.F) {
	keys := []string{"Hello", "world", " ", "!12345"}
	for _, tc := range keys {
		f.Add(tc)
	}

	pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	f.Fuzz(func(t *testing.T, key string) {
		if len(key) > 1000 || key == "" {
			return
		}
		tree.Set(txn.TxnNoop(), common.StringKey(key), fmt.Sprintf("val_%v", key))

		it := NewTreeIterator(txn.TxnNoop(), tree)
		var prev common.Key = common.StringKey("")
		for k, v := it.Next(); k != nil; k, v = it.Next() {
			require.True(t, prev.Less(k))
			got := string(k.(common.StringKey))
			require.Equal(t, fmt.Sprintf("val_%v", got), v)
			prev = k
		}
		require.NoError(t, it.Close())
	})
}

func TestConcurrent_Inserts_With_MemPager(t *testing.T) {
	log.SetOutput(io.Discard)
	defer log.SetOutput(log.Writer())

	pager2 := NewPager2(NewMemBPager(), StringKeySerializer{}, StringValueSerializer{})
	tree := NewBtreeWithPager(txn.TxnNoop(), 10, pager2)

	r := rand.New(rand.NewSource(42))
	n, chunkSize := 20_000, 2_000
	inserted := r.Perm(n)
	wg := &sync.WaitGroup{}
	for _, chunk := range chunkInts(inserted, chunkSize) {
		wg.Add(1)
		go func(arr []int) {
			defer wg.Done()
			for _, i := range arr {
				tree.Insert(txn.TxnNoop(), common.StringKey(fmt.Sprintf("key_%v", i)), fmt.Sprintf("key_%v_val_%v", i, i))
			}
		}(chunk)
	}
	wg.Wait()

	assert.Equal(t, len(inserted), tree.Count(txn.TxnNoop()))

	it := NewTreeIterator(txn.TxnNoop(), tree)
	var prev common.Key = common.StringKey("")
	for k, v := it.Next(); k != nil; k, v = it.Next() {
		require.True(t, prev.Less(k))
		key := string(k.(common.StringKey))
		i, err := strconv.Atoi(strings.TrimPrefix(key, "key_"))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("key_%v_val_%v", i, i), v)
		prev = k
	}
	require.NoError(t, it.Close())
}

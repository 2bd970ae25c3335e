package hashindex_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintdb/flintdb/internal/hashindex"
	"github.com/flintdb/flintdb/internal/vfs"
)

// identityCmp hashes a key to itself and orders keys numerically; used to
// exercise normal bucket distribution.
type identityCmp struct{}

func (identityCmp) Hash(key uint64) uint64      { return key }
func (identityCmp) Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// collidingCmp forces every key into bucket 0, to exercise overflow into
// multiple leaves and internal nodes within a single bucket.
type collidingCmp struct{}

func (collidingCmp) Hash(uint64) uint64 { return 0 }
func (collidingCmp) Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func openIndex(t *testing.T, cmp hashindex.Comparator) *hashindex.HashIndexFile {
	t.Helper()

	path := filepath.Join(t.TempDir(), "idx.hash")

	hf, err := hashindex.Open(path, cmp, vfs.NewReal(), false)
	require.NoError(t, err)

	t.Cleanup(func() { _ = hf.Close() })

	return hf
}

func TestPutFindUniqueness(t *testing.T) {
	hf := openIndex(t, identityCmp{})

	require.NoError(t, hf.Put(42))

	found, err := hf.Find(42)
	require.NoError(t, err)
	require.True(t, found)

	found, err = hf.Find(7)
	require.NoError(t, err)
	require.False(t, found)

	// Re-inserting an existing key is a no-op.
	require.NoError(t, hf.Put(42))

	count, err := hf.Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestTraverseOrdering(t *testing.T) {
	hf := openIndex(t, identityCmp{})

	keys := []uint64{50, 10, 30, 20, 40, 1, 100}
	for _, k := range keys {
		require.NoError(t, hf.Put(k))
	}

	var seen []uint64

	total, err := hf.Traverse(func(key uint64) error {
		seen = append(seen, key)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, len(keys), total)
	require.IsIncreasing(t, seen)
}

func TestHashCollisionsOverflow(t *testing.T) {
	hf := openIndex(t, collidingCmp{})

	const n = 100

	for i := uint64(0); i < n; i++ {
		require.NoError(t, hf.Put(i))
	}

	count, err := hf.Count()
	require.NoError(t, err)
	require.EqualValues(t, n, count)

	for i := uint64(0); i < n; i++ {
		found, err := hf.Find(i)
		require.NoError(t, err)
		require.True(t, found, "key %d should be found", i)
	}

	var seen []uint64

	total, err := hf.Traverse(func(key uint64) error {
		seen = append(seen, key)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, n, total)
	require.IsIncreasing(t, seen)
}

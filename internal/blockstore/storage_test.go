package blockstore_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintdb/flintdb/internal/blockstore"
)

func openMemory(t *testing.T) *blockstore.BlockStorage {
	t.Helper()

	s, err := blockstore.Open(blockstore.Options{
		Kind:           blockstore.KindMemory,
		BlockDataBytes: 64,
		Increment:      (64 + blockstore.BlockHeaderBytes) * 8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestBlockRoundTrip(t *testing.T) {
	s := openMemory(t)

	payload := []byte("hello flintdb")

	id, err := s.Write(payload)
	require.NoError(t, err)

	got, ok, err := s.Read(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)
}

func TestChainedRoundTrip(t *testing.T) {
	s := openMemory(t)

	payload := make([]byte, 64*5+10)
	for i := range payload {
		payload[i] = byte(i)
	}

	id, err := s.Write(payload)
	require.NoError(t, err)

	got, ok, err := s.Read(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)
}

func TestFreeListMonotonicity(t *testing.T) {
	s := openMemory(t)

	for i := 0; i < 5; i++ {
		id, err := s.Write([]byte{byte(i)})
		require.NoError(t, err)
		require.Equal(t, int64(i), id)
	}

	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(5), count)
}

func TestDeleteAndReuse(t *testing.T) {
	s := openMemory(t)

	var ids []int64

	for i := 0; i < 3; i++ {
		id, err := s.Write([]byte{byte(i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	ok, err := s.Delete(ids[1])
	require.NoError(t, err)
	require.True(t, ok)

	fourth, err := s.Write([]byte{9})
	require.NoError(t, err)
	require.Equal(t, ids[1], fourth)

	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestCountTracksWrites(t *testing.T) {
	s, err := blockstore.Open(blockstore.Options{
		Kind:           blockstore.KindMemory,
		BlockDataBytes: 32,
		Increment:      (32 + blockstore.BlockHeaderBytes) * 4,
	})
	require.NoError(t, err)

	_, err = s.Write([]byte("a"))
	require.NoError(t, err)
	_, err = s.Write([]byte("b"))
	require.NoError(t, err)

	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	require.NoError(t, s.Close())
}

// TestReopenRecoversRowCountAndData writes 1,000 rows to a real mmap
// file, closes it, and reopens it read-only at the same path: the row
// count and a sample of the written data must survive, since nothing
// other than the header commit at each Write governs durability here
// (WAL is a separate, opt-in layer above BlockStorage).
func TestReopenRecoversRowCountAndData(t *testing.T) {
	const n = 1000

	path := filepath.Join(t.TempDir(), "rows.blk")

	s, err := blockstore.Open(blockstore.Options{
		Path:           path,
		Kind:           blockstore.KindMMap,
		BlockDataBytes: 32,
		Increment:      uint32(32+blockstore.BlockHeaderBytes) * 64,
	})
	require.NoError(t, err)

	want := make([][]byte, n)

	for i := 0; i < n; i++ {
		want[i] = []byte(fmt.Sprintf("row-%04d", i))

		id, err := s.Write(want[i])
		require.NoError(t, err)
		require.Equal(t, int64(i), id)
	}

	require.NoError(t, s.Close())

	reopened, err := blockstore.Open(blockstore.Options{
		Path:           path,
		Kind:           blockstore.KindMMap,
		BlockDataBytes: 32,
		Increment:      uint32(32+blockstore.BlockHeaderBytes) * 64,
		ReadOnly:       true,
	})
	require.NoError(t, err)

	defer reopened.Close()

	count, err := reopened.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(n), count)

	for _, id := range []int64{0, 1, 17, 250, 499, 501, 750, 999} {
		got, ok, err := reopened.Read(id)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want[id], got)
	}
}

func TestReadMissingReturnsFalse(t *testing.T) {
	s := openMemory(t)

	_, ok, err := s.Read(0)
	require.NoError(t, err)
	require.False(t, ok)
}

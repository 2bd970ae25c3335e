package rowcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintdb/flintdb/internal/rowcache"
	"github.com/flintdb/flintdb/internal/schema"
)

func row(id int64) schema.Row {
	r := schema.NewRow([]schema.Value{schema.IntValue(schema.TypeInt64, id*10)})
	r.ID = id

	return r
}

func TestGetPutInvalidate(t *testing.T) {
	c := rowcache.New(4)

	_, ok := c.Get(1)
	require.False(t, ok)

	r := row(1)
	c.Put(1, r)

	got, ok := c.Get(1)
	require.True(t, ok)
	require.True(t, got.Equal(r))

	c.Invalidate(1)

	_, ok = c.Get(1)
	require.False(t, ok)
}

func TestEvictionOrder(t *testing.T) {
	c := rowcache.New(2)

	c.Put(1, row(1))
	c.Put(2, row(2))
	c.Put(3, row(3))

	require.Equal(t, 2, c.Len())

	_, ok := c.Get(1)
	require.False(t, ok, "eldest entry should have been evicted")
}

func TestZeroAndOneAreNoop(t *testing.T) {
	for _, size := range []int{0, 1} {
		c := rowcache.New(size)

		c.Put(1, row(1))

		_, ok := c.Get(1)
		require.False(t, ok)
		require.Equal(t, 0, c.Len())
	}
}

package flintdb_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintdb/flintdb"
)

func TestOpenTableApplyAndOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.tbl")

	id, err := flintdb.NewColumn("id", flintdb.TypeInt64, 0, 0)
	require.NoError(t, err)

	name, err := flintdb.NewColumn("name", flintdb.TypeString, 16, 0)
	require.NoError(t, err)

	meta, err := flintdb.NewMeta(
		[]flintdb.Column{id, name},
		[]flintdb.Index{{Name: "primary", Columns: []string{"id"}, Primary: true}},
	)
	require.NoError(t, err)

	tbl, err := flintdb.OpenTable(path, meta, flintdb.Options{})
	require.NoError(t, err)

	defer tbl.Close()

	row := flintdb.NewRow([]flintdb.Value{
		flintdb.IntValue(flintdb.TypeInt64, 1),
		flintdb.StringValue("ada"),
	})
	require.NoError(t, tbl.Apply(&row))
	require.GreaterOrEqual(t, row.ID, int64(0))

	got, ok, err := tbl.One(map[string]flintdb.Value{"id": flintdb.IntValue(flintdb.TypeInt64, 1)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ada", got.Values[1].S)

	require.Contains(t, tbl.Status(), "rows=1")
}

func TestReopenSeesPreviouslyWrittenRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.tbl")

	id, err := flintdb.NewColumn("id", flintdb.TypeInt64, 0, 0)
	require.NoError(t, err)

	meta, err := flintdb.NewMeta(
		[]flintdb.Column{id},
		[]flintdb.Index{{Name: "primary", Columns: []string{"id"}, Primary: true}},
	)
	require.NoError(t, err)

	tbl, err := flintdb.OpenTable(path, meta, flintdb.Options{})
	require.NoError(t, err)

	row := flintdb.NewRow([]flintdb.Value{flintdb.IntValue(flintdb.TypeInt64, 42)})
	require.NoError(t, tbl.Apply(&row))
	require.NoError(t, tbl.Close())

	reopened, err := flintdb.OpenTable(path, meta, flintdb.Options{})
	require.NoError(t, err)

	defer reopened.Close()

	got, ok, err := reopened.Read(row.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), got.Values[0].I)
}

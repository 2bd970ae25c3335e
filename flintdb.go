// Package flintdb is the public entry point over the embedded
// single-writer/multi-reader table store: schema construction, opening a
// table, and the row operations external callers (a CLI, a SQL front end)
// need without reaching into internal/*.
package flintdb

import (
	"go.uber.org/zap"

	"github.com/flintdb/flintdb/internal/schema"
	"github.com/flintdb/flintdb/internal/table"
	"github.com/flintdb/flintdb/internal/vfs"
)

// Re-exported schema types so callers never import internal/schema directly.
type (
	Column      = schema.Column
	Index       = schema.Index
	Row         = schema.Row
	Value       = schema.Value
	Type        = schema.Type
	StorageKind = schema.StorageKind
)

const (
	StorageMMap   = schema.StorageMMap
	StorageMemory = schema.StorageMemory
)

const (
	TypeInt64   = schema.TypeInt64
	TypeFloat   = schema.TypeFloat
	TypeDouble  = schema.TypeDouble
	TypeString  = schema.TypeString
	TypeBytes   = schema.TypeBytes
	TypeDecimal = schema.TypeDecimal
	TypeUUID    = schema.TypeUUID
	TypeIPv6    = schema.TypeIPv6
)

// NewColumn builds a column definition; see internal/schema.NewColumn for
// the per-type meaning of firstArg/secondArg (width, precision/scale).
func NewColumn(name string, typ Type, firstArg, secondArg int) (Column, error) {
	return schema.NewColumn(name, typ, firstArg, secondArg)
}

// TableMeta is the schema of a table: columns, indexes, and storage
// options.
type TableMeta = schema.Meta

// MetaOption configures a TableMeta; see internal/schema's With* functions.
type MetaOption = schema.MetaOption

var (
	WithStorage     = schema.WithStorage
	WithCacheSize   = schema.WithCacheSize
	WithCompactSize = schema.WithCompactSize
	WithCompressor  = schema.WithCompressor
	WithDictionary  = schema.WithDictionary
	WithWAL         = schema.WithWAL

	NullValue    = schema.NullValue
	IntValue     = schema.IntValue
	FloatValue   = schema.FloatValue
	StringValue  = schema.StringValue
	BytesValue   = schema.BytesValue
	DecimalValue = schema.DecimalValue
	NewRow       = schema.NewRow
)

// NewMeta builds a TableMeta. The first Index must be Primary.
func NewMeta(columns []Column, indexes []Index, opts ...MetaOption) (TableMeta, error) {
	return schema.NewMeta(columns, indexes, opts...)
}

// ParseSchema parses a CREATE TABLE sidecar definition, returning the
// table name and its schema.
func ParseSchema(text string) (string, TableMeta, error) {
	return schema.Parse(text)
}

// Table is the public handle over an open table, wrapping
// internal/table.HashTable.
type Table struct {
	ht *table.HashTable
}

// Options configures OpenTable.
type Options struct {
	// ReadOnly opens the table without acquiring the writer lock.
	ReadOnly bool

	// FS overrides the filesystem seam; nil selects the real filesystem.
	FS vfs.FS

	// Logger overrides the zap logger; nil selects a no-op logger.
	Logger *zap.Logger
}

// OpenTable opens or creates the table at path under meta, constructing the
// block storage, primary hash index, and row cache behind a single handle.
func OpenTable(path string, meta TableMeta, opts Options) (*Table, error) {
	mode := table.ReadWrite
	if opts.ReadOnly {
		mode = table.ReadOnly
	}

	ht, err := table.Open(path, meta, mode, opts.FS, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Table{ht: ht}, nil
}

// Apply inserts or upserts row by its primary-key value, stamping row.ID.
func (t *Table) Apply(row *Row) error { return t.ht.Apply(row) }

// ApplyAt overwrites the row stored at id in place.
func (t *Table) ApplyAt(id int64, row *Row) error { return t.ht.ApplyAt(id, row) }

// One resolves a single row by primary-key column values.
func (t *Table) One(keys map[string]Value) (Row, bool, error) { return t.ht.One(keys) }

// Status returns a short human-readable summary of the table's storage.
func (t *Table) Status() string { return t.ht.Status() }

// Meta returns the table's schema.
func (t *Table) Meta() TableMeta { return t.ht.Meta() }

// Read returns the row stored at id.
func (t *Table) Read(id int64) (Row, bool, error) { return t.ht.Read(id) }

// Traverse visits every row reachable from the primary index, bucket by
// bucket, in comparator order within each bucket.
func (t *Table) Traverse(visit func(Row) error) (int64, error) { return t.ht.Traverse(visit) }

// Delete is unsupported on the hash-primary path; see internal/table.
func (t *Table) Delete(id int64) (bool, error) { return t.ht.Delete(id) }

// Close releases the table's storage, index, and codec resources.
func (t *Table) Close() error { return t.ht.Close() }

// Drop closes the table and removes its data file, sidecar, index, and WAL.
func (t *Table) Drop() error { return t.ht.Drop() }

// Checkpoint truncates the table's WAL once every logged transaction has
// reached a terminal marker. It is a no-op on tables opened with WAL.OFF.
func (t *Table) Checkpoint() error { return t.ht.Checkpoint() }

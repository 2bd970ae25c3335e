package schema

import (
	"fmt"
	"time"

	"github.com/flintdb/flintdb/internal/ferr"
)

// StorageKind selects BlockStorage's backing: memory-mapped file or pure
// in-memory region.
type StorageKind string

const (
	StorageMMap   StorageKind = "mmap"
	StorageMemory StorageKind = "memory"
)

// WALMode selects the write-ahead logging discipline for a table.
type WALMode string

const (
	WALOff      WALMode = "OFF"
	WALTruncate WALMode = "TRUNCATE"
	WALLog      WALMode = "LOG"
)

// Index describes one of a table's 1..20 indexes. The first index in
// Meta.Indexes is always the primary index.
type Index struct {
	Name    string
	Columns []string
	Primary bool
}

// TextOptions configures the optional text-file plugin surface (TSV/CSV);
// FlintDB's core does not interpret these, it only threads them from the
// sidecar through to external collaborators.
type TextOptions struct {
	Delimiter     byte
	Quote         byte
	NullString    string
	HeaderPresent bool
}

// Meta is a table's full schema: column order, index set, and storage
// options, persisted as a SQL-like text sidecar.
type Meta struct {
	Columns        []Column
	Indexes        []Index
	Storage        StorageKind
	CompactSize    int
	Compressor     string
	Dictionary     string
	CacheSize      int
	WAL            WALMode
	WALPageData    bool
	Text           TextOptions
	CreatedAt      time.Time
	FormatVersion  int
}

// NewMeta validates a proposed schema: 1..20 indexes, first must be
// primary, every index column name must resolve against Columns.
func NewMeta(columns []Column, indexes []Index, opts ...MetaOption) (Meta, error) {
	if len(indexes) < 1 || len(indexes) > 20 {
		return Meta{}, fmt.Errorf("schema must declare 1..20 indexes, got %d: %w", len(indexes), ferr.Format)
	}

	if !indexes[0].Primary {
		return Meta{}, fmt.Errorf("first index must be the primary index: %w", ferr.Format)
	}

	byName := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		byName[c.Name] = struct{}{}
	}

	for _, idx := range indexes {
		for _, col := range idx.Columns {
			if _, ok := byName[col]; !ok {
				return Meta{}, fmt.Errorf("index %q references unknown column %q: %w", idx.Name, col, ferr.Format)
			}
		}
	}

	m := Meta{
		Columns: columns,
		Indexes: indexes,
		Storage: StorageMMap,
		WAL:     WALOff,
		FormatVersion: 1,
	}

	for _, o := range opts {
		o(&m)
	}

	if m.WAL == WALLog && !m.WALPageData {
		return Meta{}, fmt.Errorf("WAL.LOG requires page data for UPDATE/DELETE recovery, use WithWAL(WALLog, true): %w", ferr.Config)
	}

	return m, nil
}

// MetaOption configures optional Meta fields at construction.
type MetaOption func(*Meta)

func WithStorage(kind StorageKind) MetaOption   { return func(m *Meta) { m.Storage = kind } }
func WithCacheSize(n int) MetaOption            { return func(m *Meta) { m.CacheSize = n } }
func WithCompactSize(n int) MetaOption          { return func(m *Meta) { m.CompactSize = n } }
func WithCompressor(name string) MetaOption     { return func(m *Meta) { m.Compressor = name } }
func WithDictionary(path string) MetaOption     { return func(m *Meta) { m.Dictionary = path } }
func WithWAL(mode WALMode, pageData bool) MetaOption {
	return func(m *Meta) { m.WAL = mode; m.WALPageData = pageData }
}

// RowBytes is the per-row byte-cost accounting: 2 bytes for the column
// count, plus each column's RowBytes.
func (m Meta) RowBytes() int {
	n := 2
	for _, c := range m.Columns {
		n += c.RowBytes()
	}

	return n
}

// Primary returns the schema's primary index.
func (m Meta) Primary() Index { return m.Indexes[0] }

// ColumnByName looks up a column by its normalized (lower-case) name.
func (m Meta) ColumnByName(name string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}

	return Column{}, false
}

// Equal performs a structural sidecar-vs-in-memory comparison, ignoring
// CompactSize (the storage "increment"); of the options only Storage, WAL
// and CacheSize are compared.
func (m Meta) Equal(o Meta) bool {
	if len(m.Columns) != len(o.Columns) || len(m.Indexes) != len(o.Indexes) {
		return false
	}

	for i := range m.Columns {
		a, b := m.Columns[i], o.Columns[i]
		if a.Name != b.Name || a.Type != b.Type || a.MaxBytes != b.MaxBytes ||
			a.Precision != b.Precision || a.NotNull != b.NotNull {
			return false
		}
	}

	for i := range m.Indexes {
		a, b := m.Indexes[i], o.Indexes[i]
		if a.Name != b.Name || a.Primary != b.Primary || len(a.Columns) != len(b.Columns) {
			return false
		}

		for j := range a.Columns {
			if a.Columns[j] != b.Columns[j] {
				return false
			}
		}
	}

	return m.Storage == o.Storage && m.WAL == o.WAL && m.CacheSize == o.CacheSize
}

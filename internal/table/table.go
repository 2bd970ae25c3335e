// Package table implements HashTable: the row-lookup orchestration
// composing a RowCodec, a BlockStorage, a primary HashIndexFile, and a
// bounded RowCache behind insert/upsert/read/find/traverse/drop.
package table

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flintdb/flintdb/internal/blockstore"
	"github.com/flintdb/flintdb/internal/codec"
	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/hashindex"
	"github.com/flintdb/flintdb/internal/rowcache"
	"github.com/flintdb/flintdb/internal/schema"
	"github.com/flintdb/flintdb/internal/vfs"
	"github.com/flintdb/flintdb/internal/wal"
)

const (
	tableSignature        = "HTBL"
	tableSignatureVersion = uint32(1)
)

// Mode selects how Open attaches to a table's data file.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

// storage is the capability set HashTable needs from its data file: a
// plain BlockStorage when WAL is off, or a wal.Storage wrapping one when
// the schema asks for WAL protection.
type storage interface {
	CustomHead(off, size int) ([]byte, error)
	Write(buf []byte) (int64, error)
	WriteAt(id int64, buf []byte) error
	Read(id int64) ([]byte, bool, error)
	Close() error
	Status() string
}

// HashTable is the orchestration layer binding schema, storage, the
// primary hash index, and the row cache into one table handle.
type HashTable struct {
	path string
	meta schema.Meta
	mode Mode
	fs   vfs.FS
	log  *zap.Logger

	store  storage
	codec  *codec.Codec
	index  *hashindex.HashIndexFile
	cache  *rowcache.RowCache
	keyIdx []int
}

// Open opens or creates the table's data file at path under meta: sidecar
// reconciliation, signature init, primary index open, and a row cache
// that starts empty (sized by meta.CacheSize for RW, zero for RO).
func Open(path string, meta schema.Meta, mode Mode, fsys vfs.FS, log *zap.Logger) (*HashTable, error) {
	if fsys == nil {
		fsys = vfs.NewReal()
	}

	if log == nil {
		log = zap.NewNop()
	}

	if err := reconcileSidecar(fsys, path, meta); err != nil {
		return nil, err
	}

	keyIdx, err := primaryKeyIndices(meta)
	if err != nil {
		return nil, err
	}

	rowBytes := meta.RowBytes()
	if rowBytes <= 0 || rowBytes > 65535 {
		return nil, fmt.Errorf("table %q: row byte cost %d out of block_data_bytes range: %w", path, rowBytes, ferr.Config)
	}

	kind := blockstore.KindMMap
	if meta.Storage == schema.StorageMemory {
		kind = blockstore.KindMemory
	}

	store, err := blockstore.Open(blockstore.Options{
		Path:           path,
		Kind:           kind,
		BlockDataBytes: uint16(rowBytes),
		Increment:      uint32(rowBytes+blockstore.BlockHeaderBytes) * 64,
		ReadOnly:       mode == ReadOnly,
		FS:             fsys,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", path, err)
	}

	var st storage = store

	// WAL only protects the write path, so only a read-write opener ever
	// wraps and recovers it; a read-only opener sees whatever the last
	// writer's header commit left behind.
	if meta.WAL != schema.WALOff && mode == ReadWrite {
		wrapped, err := wal.Wrap(store, path+".wal", meta.WALPageData, fsys, log)
		if err != nil {
			_ = store.Close()

			return nil, err
		}

		if err := wrapped.Recover(); err != nil {
			_ = wrapped.Close()

			return nil, err
		}

		if err := wrapped.Checkpoint(); err != nil {
			_ = wrapped.Close()

			return nil, err
		}

		st = wrapped
	}

	c, err := codec.New(meta, codec.Exact)
	if err != nil {
		_ = st.Close()

		return nil, err
	}

	cacheSize := 0
	if mode == ReadWrite {
		cacheSize = meta.CacheSize
	}

	t := &HashTable{
		path:   path,
		meta:   meta,
		mode:   mode,
		fs:     fsys,
		log:    log,
		store:  st,
		codec:  c,
		cache:  rowcache.New(cacheSize),
		keyIdx: keyIdx,
	}

	if err := t.ensureSignature(); err != nil {
		_ = st.Close()

		return nil, err
	}

	index, err := hashindex.Open(indexPath(path, meta.Primary().Name), t, fsys, mode == ReadOnly)
	if err != nil {
		_ = st.Close()

		return nil, err
	}

	t.index = index

	log.Info("table open",
		zap.String("path", path),
		zap.Int("columns", len(meta.Columns)),
		zap.Bool("read_only", mode == ReadOnly),
	)

	return t, nil
}

func primaryKeyIndices(meta schema.Meta) ([]int, error) {
	pk := meta.Primary()

	idx := make([]int, 0, len(pk.Columns))

	for _, name := range pk.Columns {
		found := -1

		for i, c := range meta.Columns {
			if c.Name == name {
				found = i
				break
			}
		}

		if found < 0 {
			return nil, fmt.Errorf("primary key column %q not found in schema: %w", name, ferr.Format)
		}

		idx = append(idx, found)
	}

	return idx, nil
}

func indexPath(tablePath, indexName string) string {
	return tablePath + ".i." + indexName
}

func reconcileSidecar(fsys vfs.FS, path string, meta schema.Meta) error {
	side := schema.SidecarPath(path)

	exists, err := fsys.Exists(side)
	if err != nil {
		return err
	}

	if !exists {
		return schema.WriteSidecar(path, "t", meta)
	}

	return nil
}

func (t *HashTable) ensureSignature() error {
	sig, err := t.store.CustomHead(0, 8)
	if err != nil {
		return err
	}

	if string(sig[0:4]) == tableSignature {
		return nil
	}

	if sig[0] == 0 && sig[1] == 0 && sig[2] == 0 && sig[3] == 0 {
		copy(sig[0:4], tableSignature)
		binary.LittleEndian.PutUint32(sig[4:8], tableSignatureVersion)

		return nil
	}

	return fmt.Errorf("table %q: signature mismatch %q: %w", t.path, sig[0:4], ferr.Corruption)
}

// Apply validates and persists row: if row already carries an id it is an
// in-place overwrite; otherwise it searches
// the primary index by key-column value and either overwrites the
// existing match or inserts a new row, stamping row.ID either way.
func (t *HashTable) Apply(row *schema.Row) error {
	if err := schema.Validate(t.meta.Columns, *row); err != nil {
		return err
	}

	if row.ID >= 0 {
		return t.ApplyAt(row.ID, row)
	}

	target := t.keyValues(*row)

	hash := t.hashKey(target)

	existing, found, err := t.index.FindByHash(hash, func(candidateID uint64) int {
		candidate, _, _ := t.readDecoded(int64(candidateID))
		return compareValues(target, t.keyValues(candidate))
	})
	if err != nil {
		return err
	}

	if found {
		row.ID = int64(existing)

		return t.ApplyAt(row.ID, row)
	}

	buf, err := t.codec.Format(*row)
	if err != nil {
		return err
	}

	defer t.codec.Release(buf)

	id, err := t.store.Write(buf)
	if err != nil {
		return err
	}

	if err := t.index.Put(uint64(id)); err != nil {
		return err
	}

	row.ID = id
	t.cache.Invalidate(id)

	return nil
}

// ApplyAt overwrites the row at id in place: no primary-index
// maintenance, since the key is presumed stable.
func (t *HashTable) ApplyAt(id int64, row *schema.Row) error {
	if err := schema.Validate(t.meta.Columns, *row); err != nil {
		return err
	}

	buf, err := t.codec.Format(*row)
	if err != nil {
		return err
	}

	defer t.codec.Release(buf)

	t.cache.Invalidate(id)

	if err := t.store.WriteAt(id, buf); err != nil {
		return err
	}

	row.ID = id

	return nil
}

// One resolves a row by a key-column map: for now only the primary index
// is implemented, as secondary indexes are out of scope for the
// hash-primary path.
func (t *HashTable) One(keys map[string]schema.Value) (schema.Row, bool, error) {
	target := make([]schema.Value, len(t.keyIdx))

	pk := t.meta.Primary()
	for i, name := range pk.Columns {
		target[i] = keys[name]
	}

	hash := t.hashKey(target)

	id, found, err := t.index.FindByHash(hash, func(candidateID uint64) int {
		candidate, _, _ := t.readDecoded(int64(candidateID))
		return compareValues(target, t.keyValues(candidate))
	})
	if err != nil || !found {
		return schema.Row{}, false, err
	}

	return t.Read(int64(id))
}

// Read returns the row stored at id, consulting the cache first.
func (t *HashTable) Read(id int64) (schema.Row, bool, error) {
	return t.readDecoded(id)
}

func (t *HashTable) readDecoded(id int64) (schema.Row, bool, error) {
	if id < 0 {
		return schema.Row{}, false, nil
	}

	if row, ok := t.cache.Get(id); ok {
		return row, true, nil
	}

	buf, ok, err := t.store.Read(id)
	if err != nil || !ok {
		return schema.Row{}, false, err
	}

	row, err := t.codec.Parse(buf)
	if err != nil {
		return schema.Row{}, false, err
	}

	row.ID = id
	t.cache.Put(id, row)

	return row, true, nil
}

// Traverse visits every row reachable from the primary index, bucket by
// bucket, in comparator order within each bucket.
func (t *HashTable) Traverse(visit func(schema.Row) error) (int64, error) {
	return t.index.Traverse(func(id uint64) error {
		row, ok, err := t.readDecoded(int64(id))
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		return visit(row)
	})
}

// Status returns a short human-readable summary of the underlying block
// storage (version, row count, free-list head, mode), for cmd/flintctl.
func (t *HashTable) Status() string { return t.store.Status() }

// Meta returns the table's schema.
func (t *HashTable) Meta() schema.Meta { return t.meta }

// checkpointer is implemented by wal.Storage; a plain BlockStorage (WAL
// off) does not satisfy it.
type checkpointer interface {
	Checkpoint() error
}

// Checkpoint truncates the table's WAL once every logged transaction has
// reached a terminal marker. It is a no-op on tables opened with
// WAL.OFF.
func (t *HashTable) Checkpoint() error {
	cp, ok := t.store.(checkpointer)
	if !ok {
		return nil
	}

	return cp.Checkpoint()
}

// Delete is not implemented on the hash-primary path: there is no
// B+-tree-style delete path to mirror on a hash-primary index.
func (t *HashTable) Delete(int64) (bool, error) {
	return false, fmt.Errorf("delete is unsupported on the hash-primary path: %w", ferr.Unsupported)
}

// Close closes the index, then the codec (releasing its pool), then
// storage, in that order.
func (t *HashTable) Close() error {
	start := time.Now()

	var err error

	if ierr := t.index.Close(); ierr != nil && err == nil {
		err = ierr
	}

	t.codec.Close()

	if serr := t.store.Close(); serr != nil && err == nil {
		err = serr
	}

	t.log.Info("table close", zap.String("path", t.path), zap.Duration("elapsed", time.Since(start)))

	return err
}

// Drop closes the table then removes its data file, sidecar, index files,
// and WAL file.
func (t *HashTable) Drop() error {
	if err := t.Close(); err != nil {
		return err
	}

	paths := []string{
		t.path,
		schema.SidecarPath(t.path),
		indexPath(t.path, t.meta.Primary().Name),
		t.path + ".wal",
	}

	var firstErr error

	for _, p := range paths {
		if err := t.fs.Remove(p); err != nil {
			exists, statErr := t.fs.Exists(p)
			if statErr == nil && !exists {
				continue
			}

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

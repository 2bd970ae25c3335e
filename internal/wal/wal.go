// Package wal implements an append-only journal, built on internal/blockstore,
// wrapping a table's storage with begin/commit/rollback/recover/checkpoint.
package wal

import (
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/flintdb/flintdb/internal/blockstore"
	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/vfs"
)

// Op identifies a WAL record kind.
type Op byte

const (
	OpBegin      Op = 0x00
	OpWrite      Op = 0x01
	OpDelete     Op = 0x02
	OpUpdate     Op = 0x03
	OpCommit     Op = 0x10
	OpRollback   Op = 0x11
	OpCheckpoint Op = 0x20
)

const walBlockDataBytes = 256

// Record is one WAL entry: `{u8 op, u64 tx_id, u64 page_id, u32 payload_len,
// bytes payload}`.
type Record struct {
	Op      Op
	TxID    uint64
	PageID  uint64
	Payload []byte
}

func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+8+8+4+len(r.Payload))

	buf[0] = byte(r.Op)
	binary.LittleEndian.PutUint64(buf[1:9], r.TxID)
	binary.LittleEndian.PutUint64(buf[9:17], r.PageID)
	binary.LittleEndian.PutUint32(buf[17:21], uint32(len(r.Payload)))
	copy(buf[21:], r.Payload)

	return buf
}

func decodeRecord(buf []byte) (Record, error) {
	if len(buf) < 21 {
		return Record{}, fmt.Errorf("wal record truncated (%d bytes): %w", len(buf), ferr.Corruption)
	}

	n := binary.LittleEndian.Uint32(buf[17:21])
	if int(n) > len(buf)-21 {
		return Record{}, fmt.Errorf("wal record payload length %d exceeds stored bytes: %w", n, ferr.Corruption)
	}

	return Record{
		Op:      Op(buf[0]),
		TxID:    binary.LittleEndian.Uint64(buf[1:9]),
		PageID:  binary.LittleEndian.Uint64(buf[9:17]),
		Payload: buf[21 : 21+n],
	}, nil
}

// WAL is the append-only journal for one table's base name + ".wal".
type WAL struct {
	path     string
	fs       vfs.FS
	pageData bool
	log      *zap.Logger

	mu     sync.Mutex
	store  *blockstore.BlockStorage
	nextTx uint64
}

// Open creates or opens the WAL file at path. pageData mirrors the
// schema's walPageData flag. Records carry whatever payload Append is
// given either way; pageData only decides whether Recover replays
// UPDATE/DELETE records.
func Open(path string, pageData bool, fsys vfs.FS, log *zap.Logger) (*WAL, error) {
	if fsys == nil {
		fsys = vfs.NewReal()
	}

	if log == nil {
		log = zap.NewNop()
	}

	store, err := blockstore.Open(blockstore.Options{
		Path:           path,
		Kind:           blockstore.KindMMap,
		BlockDataBytes: walBlockDataBytes,
		Increment:      uint32(walBlockDataBytes+blockstore.BlockHeaderBytes) * 128,
		FS:             fsys,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("open wal %q: %w", path, err)
	}

	w := &WAL{path: path, fs: fsys, pageData: pageData, log: log, store: store}

	count, err := store.Count()
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	w.nextTx = count + 1

	return w, nil
}

// Begin starts a new transaction, returning a monotonically increasing id.
func (w *WAL) Begin() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	txID := w.nextTx
	w.nextTx++

	if _, err := w.store.Write(encodeRecord(Record{Op: OpBegin, TxID: txID})); err != nil {
		return 0, err
	}

	return txID, nil
}

// Append logs a WRITE, UPDATE, or DELETE record for an in-progress
// transaction.
func (w *WAL) Append(op Op, txID, pageID uint64, payload []byte) error {
	if op != OpWrite && op != OpUpdate && op != OpDelete {
		return fmt.Errorf("wal append: op 0x%02x is not a mutation record: %w", op, ferr.Config)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.store.Write(encodeRecord(Record{Op: op, TxID: txID, PageID: pageID, Payload: payload}))

	return err
}

// Commit appends a COMMIT marker for txID.
func (w *WAL) Commit(txID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.store.Write(encodeRecord(Record{Op: OpCommit, TxID: txID}))

	return err
}

// Rollback appends a ROLLBACK marker for txID. Recover then skips every
// record of that transaction; no undo is applied to the underlying
// storage, whether or not the WAL was opened with pageData.
func (w *WAL) Rollback(txID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.store.Write(encodeRecord(Record{Op: OpRollback, TxID: txID}))

	return err
}

// Apply is the refresh(offset) callback recover() drives committed
// records through: apply one record's effect to the underlying storage.
type Apply func(op Op, pageID uint64, payload []byte) error

// Recover scans the WAL, partitions records by transaction, and applies
// committed WRITE/UPDATE/DELETE records via apply; uncommitted
// transactions (no terminal COMMIT) are discarded. UPDATE/DELETE records
// are only replayed when the WAL
// was opened with pageData; otherwise they are skipped with a logged
// warning rather than applied unsafely.
func (w *WAL) Recover(apply Apply) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	txs := make(map[uint64][]Record)
	order := make([]uint64, 0)
	committed := make(map[uint64]bool)

	count, err := w.store.Count()
	if err != nil {
		return err
	}

	var id int64

	for seen := uint64(0); seen < count; id++ {
		buf, ok, err := w.store.Read(id)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		seen++

		rec, err := decodeRecord(buf)
		if err != nil {
			// A truncated trailing record is discarded, not fatal.
			break
		}

		switch rec.Op {
		case OpBegin:
			if _, ok := txs[rec.TxID]; !ok {
				order = append(order, rec.TxID)
			}

			txs[rec.TxID] = append(txs[rec.TxID], rec)
		case OpCommit:
			committed[rec.TxID] = true
		case OpRollback:
			committed[rec.TxID] = false
		case OpWrite, OpUpdate, OpDelete:
			txs[rec.TxID] = append(txs[rec.TxID], rec)
		case OpCheckpoint:
			// marker only, no state to replay
		}
	}

	for _, txID := range order {
		if !committed[txID] {
			continue
		}

		for _, rec := range txs[txID] {
			switch rec.Op {
			case OpWrite:
				if err := apply(rec.Op, rec.PageID, rec.Payload); err != nil {
					return fmt.Errorf("wal recover tx %d: %w", txID, err)
				}
			case OpUpdate, OpDelete:
				if !w.pageData {
					w.log.Warn("skipping UPDATE/DELETE replay: wal opened without page data",
						zap.Uint64("tx_id", txID), zap.Uint64("page_id", rec.PageID))

					continue
				}

				if err := apply(rec.Op, rec.PageID, rec.Payload); err != nil {
					return fmt.Errorf("wal recover tx %d: %w", txID, err)
				}
			}
		}
	}

	return nil
}

// Checkpoint truncates the WAL if every transaction it holds has reached a
// terminal COMMIT or ROLLBACK marker.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	count, err := w.store.Count()
	if err != nil {
		return err
	}

	open := make(map[uint64]bool)

	var id int64

	for seen := uint64(0); seen < count; id++ {
		buf, ok, err := w.store.Read(id)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		seen++

		rec, err := decodeRecord(buf)
		if err != nil {
			break
		}

		switch rec.Op {
		case OpBegin:
			open[rec.TxID] = true
		case OpCommit, OpRollback:
			delete(open, rec.TxID)
		}
	}

	if len(open) > 0 {
		return nil
	}

	if err := w.store.Close(); err != nil {
		return err
	}

	if err := w.fs.Remove(w.path); err != nil {
		return fmt.Errorf("checkpoint remove %q: %w", w.path, err)
	}

	if err := w.fs.Remove(w.path + ".lock"); err != nil {
		exists, statErr := w.fs.Exists(w.path + ".lock")
		if statErr == nil && exists {
			return fmt.Errorf("checkpoint remove lock %q: %w", w.path+".lock", err)
		}
	}

	store, err := blockstore.Open(blockstore.Options{
		Path:           w.path,
		Kind:           blockstore.KindMMap,
		BlockDataBytes: walBlockDataBytes,
		Increment:      uint32(walBlockDataBytes+blockstore.BlockHeaderBytes) * 128,
		FS:             w.fs,
		Logger:         w.log,
	})
	if err != nil {
		return fmt.Errorf("checkpoint reopen %q: %w", w.path, err)
	}

	w.store = store
	w.nextTx = 1

	return nil
}

// Close closes the underlying WAL storage.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.store.Close()
}

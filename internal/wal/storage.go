package wal

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/flintdb/flintdb/internal/blockstore"
	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/vfs"
)

// Storage wraps a BlockStorage with a WAL: every mutation is logged and
// committed to the WAL before it is applied to the wrapped store, so a
// crash between the two leaves a durable, replayable record of what was
// about to happen. Tables opened with WAL.OFF use the BlockStorage
// directly and never construct one of these.
type Storage struct {
	inner *blockstore.BlockStorage
	wal   *WAL

	mu sync.Mutex
}

// Wrap opens (or creates) the WAL file at walPath and returns a Storage
// that interposes it in front of inner.
func Wrap(inner *blockstore.BlockStorage, walPath string, pageData bool, fsys vfs.FS, log *zap.Logger) (*Storage, error) {
	w, err := Open(walPath, pageData, fsys, log)
	if err != nil {
		return nil, err
	}

	return &Storage{inner: inner, wal: w}, nil
}

// CustomHead passes through to the wrapped store; it never mutates rows.
func (s *Storage) CustomHead(off, size int) ([]byte, error) {
	return s.inner.CustomHead(off, size)
}

// Write logs a WRITE record for the row the wrapped store would assign,
// commits it, and only then performs the allocation. A crash after the
// WAL fsync but before the wrapped store's own header commit leaves a
// committed record that Recover can redo at the same id.
func (s *Storage) Write(buf []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.inner.PeekNextWriteID()
	if err != nil {
		return 0, err
	}

	if err := s.logAndCommit(OpWrite, uint64(id), buf); err != nil {
		return 0, err
	}

	gotID, err := s.inner.Write(buf)
	if err != nil {
		return 0, err
	}

	if gotID != id {
		return 0, fmt.Errorf("wal: predicted row id %d but storage assigned %d: %w", id, gotID, ferr.Corruption)
	}

	return gotID, nil
}

// WriteAt logs an UPDATE record for id before overwriting it.
func (s *Storage) WriteAt(id int64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.logAndCommit(OpUpdate, uint64(id), buf); err != nil {
		return err
	}

	return s.inner.WriteAt(id, buf)
}

func (s *Storage) logAndCommit(op Op, pageID uint64, payload []byte) error {
	txID, err := s.wal.Begin()
	if err != nil {
		return err
	}

	if err := s.wal.Append(op, txID, pageID, payload); err != nil {
		return err
	}

	return s.wal.Commit(txID)
}

// Read passes through to the wrapped store.
func (s *Storage) Read(id int64) ([]byte, bool, error) { return s.inner.Read(id) }

// Status reports the wrapped store's status.
func (s *Storage) Status() string { return s.inner.Status() }

// Recover replays every committed record left in the WAL into the
// wrapped store. WRITE and UPDATE records are both redone via the
// wrapped store's WriteAt: for a WRITE whose header commit never
// landed, WriteAt recognizes the target id is still the free-list head
// and completes the allocation (bumping RowCount) exactly as Write
// would have; replaying an already-applied WRITE or UPDATE is then a
// harmless no-op overwrite with the same bytes. UPDATE and DELETE
// records are only replayed when the WAL was opened with page data;
// otherwise WAL.Recover skips them.
func (s *Storage) Recover() error {
	return s.wal.Recover(func(op Op, pageID uint64, payload []byte) error {
		switch op {
		case OpWrite, OpUpdate:
			return s.inner.WriteAt(int64(pageID), payload)
		case OpDelete:
			_, err := s.inner.Delete(int64(pageID))

			return err
		default:
			return fmt.Errorf("wal: unexpected op %#x during recovery: %w", op, ferr.Corruption)
		}
	})
}

// Checkpoint truncates the WAL once every transaction it holds has
// reached a terminal marker. Callers should checkpoint immediately
// after a successful Recover so the same committed records aren't
// replayed again on the next open.
func (s *Storage) Checkpoint() error { return s.wal.Checkpoint() }

// Close closes the WAL, then the wrapped store.
func (s *Storage) Close() error {
	walErr := s.wal.Close()
	innerErr := s.inner.Close()

	if walErr != nil {
		return walErr
	}

	return innerErr
}

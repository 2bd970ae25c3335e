package blockstore

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/vfs"
)

// BlockStorage is the mmap-backed (or memory-backed) paged block store.
// It exposes open/read/write/delete/read_stream/write_stream/head/count/
// close/bytes/version/lock/status/read_only.
type BlockStorage struct {
	opts       Options
	blockBytes int
	log        *zap.Logger

	src    regionSource
	touch  *lru.Cache[int, struct{}] // tracks region access order; eviction releases mappings
	lock   *vfs.Lock
	mu     sync.Mutex
	closed bool
}

// Open creates or opens a block file per opts.
func Open(opts Options) (*BlockStorage, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	s := &BlockStorage{
		opts:       opts,
		blockBytes: opts.blockBytes(),
		log:        opts.logger(),
	}

	switch opts.Kind {
	case KindMMap:
		src, err := newMMapRegions(opts.fs(), opts.Path, opts.headerTotal())
		if err != nil {
			return nil, err
		}

		s.src = src

		if !opts.ReadOnly {
			lock, err := vfs.TryLock(opts.Path + ".lock")
			if err != nil {
				_ = src.close()

				return nil, err
			}

			s.lock = lock
		}
	case KindMemory:
		s.src = newMemoryRegions(opts.headerTotal())
	default:
		return nil, fmt.Errorf("unknown storage kind %d: %w", opts.Kind, ferr.Config)
	}

	cache, err := lru.NewWithEvict(regionCacheSize, func(idx int, _ struct{}) {
		if err := s.src.evict(idx); err != nil {
			s.log.Warn("region evict failed", zap.Int("region", idx), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("region cache: %w", err)
	}

	s.touch = cache

	if err := s.openHeader(); err != nil {
		_ = s.src.close()

		return nil, err
	}

	return s, nil
}

func (s *BlockStorage) openHeader() error {
	page, err := s.src.header()
	if err != nil {
		return err
	}

	h, err := readCommonHeader(page)
	if err != nil {
		return err
	}

	if h.Version == 0 {
		// Fresh file: initialize the common header.
		h = commonHeader{
			Version:        currentVersion,
			Increment:      s.opts.Increment,
			BlockDataBytes: s.opts.BlockDataBytes,
			FreeListHead:   0,
		}

		return writeCommonHeader(page, h)
	}

	if h.BlockDataBytes != s.opts.BlockDataBytes {
		return fmt.Errorf("header block_data_bytes=%d disagrees with options=%d: %w", h.BlockDataBytes, s.opts.BlockDataBytes, ferr.Corruption)
	}

	if h.Increment != s.opts.Increment {
		return fmt.Errorf("header increment=%d disagrees with options=%d: %w", h.Increment, s.opts.Increment, ferr.Corruption)
	}

	return nil
}

func (s *BlockStorage) header() (commonHeader, []byte, error) {
	page, err := s.src.header()
	if err != nil {
		return commonHeader{}, nil, err
	}

	h, err := readCommonHeader(page)

	return h, page, err
}

func (s *BlockStorage) touchRegion(idx int) ([]byte, error) {
	firstBlockID := s.firstBlockOfRegion(idx)

	buf, err := s.src.region(idx, int(s.opts.Increment), s.blockBytes, firstBlockID)
	if err != nil {
		return nil, err
	}

	s.touch.Add(idx, struct{}{})

	return buf, nil
}

func (s *BlockStorage) blockAt(blockID int64) ([]byte, error) {
	a := s.resolve(blockID)

	region, err := s.touchRegion(a.region)
	if err != nil {
		return nil, err
	}

	if a.offset+s.blockBytes > len(region) {
		return nil, fmt.Errorf("block %d out of region bounds: %w", blockID, ferr.Corruption)
	}

	return region[a.offset : a.offset+s.blockBytes], nil
}

// Head returns a view into the caller-owned extra header region, sized
// size bytes starting at off.
func (s *BlockStorage) Head(off, size int) ([]byte, error) {
	page, err := s.src.header()
	if err != nil {
		return nil, err
	}

	start := CustomHeaderBytes + CommonHeaderBytes + off
	if start < 0 || start+size > len(page) {
		return nil, fmt.Errorf("head region [%d,%d) out of bounds: %w", start, start+size, ferr.Corruption)
	}

	return page[start : start+size], nil
}

// CustomHead returns a view into the 256-byte reserved custom header,
// sized size bytes starting at off. Used for the per-format signature
// (e.g. "HASH"+count, "HTBL"+version).
func (s *BlockStorage) CustomHead(off, size int) ([]byte, error) {
	page, err := s.src.header()
	if err != nil {
		return nil, err
	}

	start := off
	if start < 0 || start+size > CustomHeaderBytes {
		return nil, fmt.Errorf("custom head region [%d,%d) out of bounds: %w", start, start+size, ferr.Corruption)
	}

	return page[start : start+size], nil
}

// Count returns the live-row count from the common header.
func (s *BlockStorage) Count() (uint64, error) {
	h, _, err := s.header()

	return h.RowCount, err
}

// Bytes returns the current backing size in bytes.
func (s *BlockStorage) Bytes() (int64, error) { return s.src.size() }

// Version returns the common header's format version.
func (s *BlockStorage) Version() (uint16, error) {
	h, _, err := s.header()

	return h.Version, err
}

// ReadOnly reports whether this handle was opened read-only.
func (s *BlockStorage) ReadOnly() bool { return s.opts.ReadOnly }

// Locked reports whether this handle holds the writer lock.
func (s *BlockStorage) Locked() bool { return s.lock != nil }

// Status returns a short human-readable summary, used by cmd/flintctl.
func (s *BlockStorage) Status() string {
	h, _, err := s.header()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}

	mode := "rw"
	if s.opts.ReadOnly {
		mode = "ro"
	}

	return fmt.Sprintf("version=%d rows=%d free_head=%d mode=%s", h.Version, h.RowCount, h.FreeListHead, mode)
}

func (s *BlockStorage) commitHeader(h commonHeader) error {
	page, err := s.src.header()
	if err != nil {
		return err
	}

	return writeCommonHeader(page, h)
}

// Close forces a final header commit, unmaps all regions, and closes the
// backing file.
func (s *BlockStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	err := s.src.close()

	if s.lock != nil {
		if lerr := s.lock.Close(); lerr != nil && err == nil {
			err = lerr
		}
	}

	return err
}

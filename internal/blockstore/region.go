package blockstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/flintdb/flintdb/internal/vfs"
)

// regionSource materializes the fixed-size byte regions a BlockStorage
// addresses blocks within. mmapRegions and memoryRegions are its two
// variants, one per storage kind.
type regionSource interface {
	// header returns the header page (custom + common + extra), growing
	// the backing store to fit it if necessary.
	header() ([]byte, error)

	// region returns region idx's bytes, materializing it (mapping or
	// allocating, and zero-initializing new blocks) if this is the first
	// access.
	region(idx int, regionBytes int, blockBytes int, firstBlockID int64) ([]byte, error)

	// evict releases region idx's mapping, if any, without losing data
	// already flushed to the backing store.
	evict(idx int) error

	sync() error
	close() error

	// size reports the current backing size in bytes, for Bytes().
	size() (int64, error)
}

// --- mmap-backed ---

type mmapRegions struct {
	file       vfs.File
	headerLen  int
	headerBuf  []byte
	regionBufs map[int][]byte
}

func newMMapRegions(fs vfs.FS, path string, headerLen int) (*mmapRegions, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	return &mmapRegions{file: f, headerLen: headerLen, regionBufs: map[int][]byte{}}, nil
}

func (m *mmapRegions) header() ([]byte, error) {
	if m.headerBuf != nil {
		return m.headerBuf, nil
	}

	if err := ensureFileSize(m.file, int64(m.headerLen)); err != nil {
		return nil, err
	}

	buf, err := unix.Mmap(int(m.file.Fd()), 0, m.headerLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap header: %w", err)
	}

	m.headerBuf = buf

	return buf, nil
}

func (m *mmapRegions) region(idx, regionBytes, blockBytes int, firstBlockID int64) ([]byte, error) {
	fileOffset := int64(m.headerLen) + int64(idx)*int64(regionBytes)

	// mmap offsets must be page-aligned and fileOffset usually is not, so
	// the mapping starts at the enclosing page boundary; regionBufs keeps
	// the whole mapping (for msync/munmap) and callers get the view at lead.
	lead := int(fileOffset % int64(os.Getpagesize()))

	if buf, ok := m.regionBufs[idx]; ok {
		return buf[lead:], nil
	}

	needSize := fileOffset + int64(regionBytes)
	if err := ensureFileSize(m.file, needSize); err != nil {
		return nil, err
	}

	buf, err := unix.Mmap(int(m.file.Fd()), fileOffset-int64(lead), lead+regionBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap region %d: %w", idx, err)
	}

	initRegion(buf[lead:], blockBytes, firstBlockID)

	m.regionBufs[idx] = buf

	return buf[lead:], nil
}

func (m *mmapRegions) evict(idx int) error {
	buf, ok := m.regionBufs[idx]
	if !ok {
		return nil
	}

	delete(m.regionBufs, idx)

	if err := unix.Msync(buf, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync region %d: %w", idx, err)
	}

	return unix.Munmap(buf)
}

func (m *mmapRegions) sync() error {
	if m.headerBuf != nil {
		if err := unix.Msync(m.headerBuf, unix.MS_SYNC); err != nil {
			return fmt.Errorf("msync header: %w", err)
		}
	}

	for idx, buf := range m.regionBufs {
		if err := unix.Msync(buf, unix.MS_SYNC); err != nil {
			return fmt.Errorf("msync region %d: %w", idx, err)
		}
	}

	return m.file.Sync()
}

func (m *mmapRegions) close() error {
	if err := m.sync(); err != nil {
		return err
	}

	if m.headerBuf != nil {
		_ = unix.Munmap(m.headerBuf)
		m.headerBuf = nil
	}

	for idx, buf := range m.regionBufs {
		_ = unix.Munmap(buf)
		delete(m.regionBufs, idx)
	}

	return m.file.Close()
}

func (m *mmapRegions) size() (int64, error) {
	fi, err := m.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}

	return fi.Size(), nil
}

func ensureFileSize(f vfs.File, size int64) error {
	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if fi.Size() >= size {
		return nil
	}

	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("grow file to %d bytes: %w", size, err)
	}

	return nil
}

// --- memory-backed ---

type memoryRegions struct {
	headerLen int
	headerBuf []byte
	regions   map[int][]byte
}

func newMemoryRegions(headerLen int) *memoryRegions {
	return &memoryRegions{headerLen: headerLen, regions: map[int][]byte{}}
}

func (m *memoryRegions) header() ([]byte, error) {
	if m.headerBuf == nil {
		m.headerBuf = make([]byte, m.headerLen)
	}

	return m.headerBuf, nil
}

func (m *memoryRegions) region(idx, regionBytes, blockBytes int, firstBlockID int64) ([]byte, error) {
	buf, ok := m.regions[idx]
	if !ok {
		buf = make([]byte, regionBytes)
		initRegion(buf, blockBytes, firstBlockID)
		m.regions[idx] = buf
	}

	return buf, nil
}

// evict keeps the region: its bytes are the memory store's only copy of
// the data, so there is no mapping to release.
func (m *memoryRegions) evict(int) error {
	return nil
}

func (m *memoryRegions) sync() error { return nil }
func (m *memoryRegions) close() error {
	m.headerBuf = nil
	m.regions = nil

	return nil
}

func (m *memoryRegions) size() (int64, error) {
	total := int64(m.headerLen)
	for _, r := range m.regions {
		total += int64(len(r))
	}

	return total, nil
}

// initRegion zero-initializes a freshly materialized region's blocks as
// empty, threading them into the free list via sequential next pointers:
// a newly materialized region's blocks are prestitched into the chain
// with monotonically increasing ids.
func initRegion(buf []byte, blockBytes int, firstBlockID int64) {
	n := len(buf) / blockBytes

	// Only touch blocks that look untouched (all-zero header): a region
	// reopened from an existing file already has real headers and must
	// not be clobbered.
	if n > 0 {
		h, err := readBlockHeader(buf[:BlockHeaderBytes])
		if err == nil && (h.Status == statusLive || h.Status == statusEmpty) {
			return
		}
	}

	for i := 0; i < n; i++ {
		off := i * blockBytes
		next := firstBlockID + int64(i) + 1

		_ = writeBlockHeader(buf[off:off+BlockHeaderBytes], blockHeader{
			Status: statusEmpty,
			Mark:   markUnused,
			Next:   next,
		})
	}
}

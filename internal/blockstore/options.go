// Package blockstore implements BlockStorage: a fixed-block, paged file
// format — a 256-byte custom header, a 256-byte common header, a
// caller-owned extra header, and a dense block array addressed by
// 0-based row id, backed by either mmap'd regions or plain in-memory
// allocations.
package blockstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/vfs"
)

const (
	// CustomHeaderBytes is the reserved custom-header region.
	CustomHeaderBytes = 256
	// CommonHeaderBytes is the fixed common-header region.
	CommonHeaderBytes = 256
	// BlockHeaderBytes is the per-block header width.
	BlockHeaderBytes = 16
	// regionCacheSize is the mmap-region cache capacity.
	regionCacheSize = 16

	statusLive  = '+'
	statusEmpty = '-'
	markData    = 'D'
	markCont    = 'N'
	markUnused  = 'X'
)

// Kind selects BlockStorage's backing store.
type Kind int

const (
	KindMMap Kind = iota
	KindMemory
)

// Options configures Open.
type Options struct {
	// Path is the data file path. Required for KindMMap; ignored (a label
	// only) for KindMemory.
	Path string

	// Kind selects the backing store.
	Kind Kind

	// BlockDataBytes is the payload capacity of one block, excluding its
	// 16-byte header. Required on create; validated against the header on
	// reopen.
	BlockDataBytes uint16

	// Increment is the byte span of one mmap region over the block array.
	// Must be a positive multiple of the block size (16-byte header plus
	// BlockDataBytes). Required on create;
	// validated against the header on reopen.
	Increment uint32

	// ExtraHeaderBytes is the caller-owned header region following the
	// common header (used by HashIndexFile for its bucket directory).
	ExtraHeaderBytes int

	// ReadOnly opens the store without acquiring the writer lock and
	// without permitting mutation. Multiple readers may share a file.
	ReadOnly bool

	FS     vfs.FS
	Logger *zap.Logger
}

func (o Options) blockBytes() int {
	return BlockHeaderBytes + int(o.BlockDataBytes)
}

func (o Options) headerTotal() int {
	return CustomHeaderBytes + CommonHeaderBytes + o.ExtraHeaderBytes
}

func (o Options) validate() error {
	if o.BlockDataBytes == 0 {
		return fmt.Errorf("block_data_bytes must be > 0: %w", ferr.Config)
	}

	if o.Increment == 0 || int(o.Increment)%o.blockBytes() != 0 {
		return fmt.Errorf("increment must be a positive multiple of block_bytes (%d): %w", o.blockBytes(), ferr.Config)
	}

	if o.ExtraHeaderBytes < 0 {
		return fmt.Errorf("extra_header_bytes must be >= 0: %w", ferr.Config)
	}

	if o.Kind == KindMMap && o.Path == "" {
		return fmt.Errorf("mmap storage requires a path: %w", ferr.Config)
	}

	return nil
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return zap.NewNop()
}

func (o Options) fs() vfs.FS {
	if o.FS != nil {
		return o.FS
	}

	return vfs.NewReal()
}

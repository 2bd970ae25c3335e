// Package hashindex implements HashIndexFile: the disk-resident 3-level
// hash/internal/leaf structure, built on a blockstore.BlockStorage whose
// blocks are fixed 112-byte node slots.
package hashindex

import (
	"encoding/binary"
	"fmt"

	"github.com/flintdb/flintdb/internal/blockstore"
	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/vfs"
)

const (
	// HashSize is the fixed bucket-directory size.
	HashSize = 1_048_576
	// InternalMax is the max leaf-offsets per internal node.
	InternalMax = 12
	// LeafMax is the max keys per leaf node.
	LeafMax = 14
	// NodeBytes is the fixed node payload size shared by both node kinds.
	NodeBytes = 112

	// DirEntryBytes is one bucket directory entry: (front ref, tail ref).
	DirEntryBytes = 16

	noRef int64 = 0
)

// Comparator supplies the key semantics HashIndexFile itself does not
// interpret: the hash file never interprets key bytes on its own.
type Comparator interface {
	Hash(key uint64) uint64
	Compare(a, b uint64) int
}

// HashIndexFile is the per-index on-disk structure.
type HashIndexFile struct {
	store *blockstore.BlockStorage
	cmp   Comparator
}

// Open creates or opens a hash index file at path using cmp for bucketing
// and ordering.
func Open(path string, cmp Comparator, fs vfs.FS, readOnly bool) (*HashIndexFile, error) {
	store, err := blockstore.Open(blockstore.Options{
		Path:             path,
		Kind:             blockstore.KindMMap,
		BlockDataBytes:   NodeBytes,
		Increment:        uint32(NodeBytes+blockstore.BlockHeaderBytes) * 64,
		ExtraHeaderBytes: HashSize * DirEntryBytes,
		ReadOnly:         readOnly,
		FS:               fs,
	})
	if err != nil {
		return nil, fmt.Errorf("open hash index %q: %w", path, err)
	}

	hf := &HashIndexFile{store: store, cmp: cmp}

	if err := hf.ensureSignature(); err != nil {
		_ = store.Close()

		return nil, err
	}

	return hf, nil
}

func (hf *HashIndexFile) ensureSignature() error {
	sig, err := hf.store.CustomHead(0, 4)
	if err != nil {
		return err
	}

	if string(sig) == "HASH" {
		return nil
	}

	if sig[0] == 0 && sig[1] == 0 && sig[2] == 0 && sig[3] == 0 {
		copy(sig, "HASH")

		return hf.writeCount(0)
	}

	return fmt.Errorf("hash index signature mismatch %q: %w", sig, ferr.Corruption)
}

func (hf *HashIndexFile) readCount() (uint64, error) {
	b, err := hf.store.CustomHead(4, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

func (hf *HashIndexFile) writeCount(n uint64) error {
	b, err := hf.store.CustomHead(4, 8)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(b, n)

	return nil
}

// Count returns the number of keys stored, from the custom header.
func (hf *HashIndexFile) Count() (uint64, error) { return hf.readCount() }

// Bytes returns the file size.
func (hf *HashIndexFile) Bytes() (int64, error) { return hf.store.Bytes() }

// Close closes the underlying BlockStorage.
func (hf *HashIndexFile) Close() error { return hf.store.Close() }

func (hf *HashIndexFile) bucketOf(key uint64) uint32 {
	return uint32((hf.cmp.Hash(key) & 0x7FFFFFFF) % HashSize)
}

func (hf *HashIndexFile) directoryEntry(bucket uint32) ([]byte, error) {
	return hf.store.Head(int(bucket)*DirEntryBytes, DirEntryBytes)
}

func (hf *HashIndexFile) readDirectory(bucket uint32) (front, tail int64, err error) {
	b, err := hf.directoryEntry(bucket)
	if err != nil {
		return 0, 0, err
	}

	return int64(binary.LittleEndian.Uint64(b[0:8])), int64(binary.LittleEndian.Uint64(b[8:16])), nil
}

func (hf *HashIndexFile) writeDirectory(bucket uint32, front, tail int64) error {
	b, err := hf.directoryEntry(bucket)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(b[0:8], uint64(front))
	binary.LittleEndian.PutUint64(b[8:16], uint64(tail))

	return nil
}

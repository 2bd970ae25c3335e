package blockstore

import (
	"fmt"

	"github.com/flintdb/flintdb/internal/buffer"
	"github.com/flintdb/flintdb/internal/ferr"
)

// commonHeader mirrors the on-disk common header layout (offset 256,
// little-endian):
//
//	u64 reserved
//	u64 free_list_head
//	u64 reserved_tail
//	u16 version
//	u32 increment
//	u8[24] reserved
//	u16 block_data_bytes
//	u64 row_count
type commonHeader struct {
	FreeListHead   uint64
	Version        uint16
	Increment      uint32
	BlockDataBytes uint16
	RowCount       uint64
}

const currentVersion = 1

func readCommonHeader(page []byte) (commonHeader, error) {
	if len(page) < CustomHeaderBytes+CommonHeaderBytes {
		return commonHeader{}, fmt.Errorf("header page too small: %w", ferr.Corruption)
	}

	lb := buffer.Wrap(page)
	lb.Seek(CustomHeaderBytes)

	var h commonHeader

	if _, err := lb.GetU64(); err != nil { // reserved
		return commonHeader{}, err
	}

	v, err := lb.GetU64()
	if err != nil {
		return commonHeader{}, err
	}

	h.FreeListHead = v

	if _, err := lb.GetU64(); err != nil { // reserved_tail
		return commonHeader{}, err
	}

	h.Version, err = lb.GetU16()
	if err != nil {
		return commonHeader{}, err
	}

	h.Increment, err = lb.GetU32()
	if err != nil {
		return commonHeader{}, err
	}

	if err := lb.Skip(24); err != nil {
		return commonHeader{}, err
	}

	h.BlockDataBytes, err = lb.GetU16()
	if err != nil {
		return commonHeader{}, err
	}

	h.RowCount, err = lb.GetU64()
	if err != nil {
		return commonHeader{}, err
	}

	return h, nil
}

// writeCommonHeader rewrites the common header atomically into page, in
// a single mmap store sequence ending with the row count.
func writeCommonHeader(page []byte, h commonHeader) error {
	if len(page) < CustomHeaderBytes+CommonHeaderBytes {
		return fmt.Errorf("header page too small: %w", ferr.Corruption)
	}

	lb := buffer.Wrap(page)
	lb.Seek(CustomHeaderBytes)

	if err := lb.PutU64(0); err != nil {
		return err
	}

	if err := lb.PutU64(h.FreeListHead); err != nil {
		return err
	}

	if err := lb.PutU64(0); err != nil {
		return err
	}

	if err := lb.PutU16(h.Version); err != nil {
		return err
	}

	if err := lb.PutU32(h.Increment); err != nil {
		return err
	}

	if err := lb.Skip(24); err != nil {
		return err
	}

	if err := lb.PutU16(h.BlockDataBytes); err != nil {
		return err
	}

	// Row count is the last header field written.
	return lb.PutU64At(lb.Pos(), h.RowCount)
}

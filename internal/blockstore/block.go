package blockstore

import (
	"fmt"

	"github.com/flintdb/flintdb/internal/buffer"
	"github.com/flintdb/flintdb/internal/ferr"
)

// blockHeader mirrors the on-disk 16-byte per-block header.
type blockHeader struct {
	Status   byte // statusLive | statusEmpty
	Mark     byte // markData | markCont | markUnused
	LenHere  uint16
	LenTotal uint32
	Next     int64 // -1 terminates
}

func (h blockHeader) empty() bool { return h.Status != statusLive }

func readBlockHeader(b []byte) (blockHeader, error) {
	if len(b) < BlockHeaderBytes {
		return blockHeader{}, fmt.Errorf("block header truncated: %w", ferr.Corruption)
	}

	lb := buffer.Wrap(b)

	status, err := lb.GetU8()
	if err != nil {
		return blockHeader{}, err
	}

	mark, err := lb.GetU8()
	if err != nil {
		return blockHeader{}, err
	}

	lenHere, err := lb.GetU16()
	if err != nil {
		return blockHeader{}, err
	}

	lenTotal, err := lb.GetU32()
	if err != nil {
		return blockHeader{}, err
	}

	next, err := lb.GetI64()
	if err != nil {
		return blockHeader{}, err
	}

	return blockHeader{Status: status, Mark: mark, LenHere: lenHere, LenTotal: lenTotal, Next: next}, nil
}

func writeBlockHeader(b []byte, h blockHeader) error {
	if len(b) < BlockHeaderBytes {
		return fmt.Errorf("block header truncated: %w", ferr.Corruption)
	}

	lb := buffer.Wrap(b)

	if err := lb.PutU8(h.Status); err != nil {
		return err
	}

	if err := lb.PutU8(h.Mark); err != nil {
		return err
	}

	if err := lb.PutU16(h.LenHere); err != nil {
		return err
	}

	if err := lb.PutU32(h.LenTotal); err != nil {
		return err
	}

	return lb.PutI64(h.Next)
}

// addr is a resolved block location: which region it falls in and its
// byte offset within that region.
type addr struct {
	region int
	offset int
}

func (s *BlockStorage) resolve(blockID int64) addr {
	absolute := int64(s.blockBytes) * blockID
	mmapBytes := int64(s.opts.Increment)

	return addr{
		region: int(absolute / mmapBytes),
		offset: int(absolute % mmapBytes),
	}
}

// blocksPerRegion is how many blocks fit in one Increment-sized region.
func (s *BlockStorage) blocksPerRegion() int64 {
	return int64(s.opts.Increment) / int64(s.blockBytes)
}

// firstBlockOfRegion returns the row id of region idx's first block.
func (s *BlockStorage) firstBlockOfRegion(idx int) int64 {
	return int64(idx) * s.blocksPerRegion()
}

package blockstore

import (
	"fmt"

	"github.com/flintdb/flintdb/internal/ferr"
)

func ceilDiv(a, b int) int {
	if a == 0 {
		return 1
	}

	return (a + b - 1) / b
}

// popFreeBlock dequeues the block at the current free-list head and
// returns its id, leaving its header untouched (the caller overwrites it
// immediately). h/page are the already-read header state; the caller
// commits the header once all pops for an operation are done.
func (s *BlockStorage) popFreeBlock(h *commonHeader) (int64, error) {
	id := int64(h.FreeListHead)

	blk, err := s.blockAt(id)
	if err != nil {
		return 0, err
	}

	hdr, err := readBlockHeader(blk)
	if err != nil {
		return 0, err
	}

	h.FreeListHead = uint64(hdr.Next)

	return id, nil
}

// pushFreeBlock wipes id's data and threads it onto the free list head.
func (s *BlockStorage) pushFreeBlock(h *commonHeader, id int64) error {
	blk, err := s.blockAt(id)
	if err != nil {
		return err
	}

	for i := BlockHeaderBytes; i < len(blk); i++ {
		blk[i] = 0
	}

	if err := writeBlockHeader(blk, blockHeader{
		Status: statusEmpty,
		Mark:   markUnused,
		Next:   int64(h.FreeListHead),
	}); err != nil {
		return err
	}

	h.FreeListHead = uint64(id)

	return nil
}

// Write allocates a new row for buf and returns its id. The chosen id is
// the current free-list head.
func (s *BlockStorage) Write(buf []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.ReadOnly {
		return 0, fmt.Errorf("write on read-only storage: %w", ferr.Config)
	}

	h, _, err := s.header()
	if err != nil {
		return 0, err
	}

	capacity := int(s.opts.BlockDataBytes)
	total := len(buf)
	nblocks := ceilDiv(total, capacity)

	ids := make([]int64, nblocks)

	for i := 0; i < nblocks; i++ {
		id, err := s.popFreeBlock(&h)
		if err != nil {
			return 0, err
		}

		ids[i] = id
	}

	if err := s.writeChain(ids, buf); err != nil {
		return 0, err
	}

	h.RowCount++

	if err := s.commitHeader(h); err != nil {
		return 0, err
	}

	return ids[0], nil
}

// PeekNextWriteID returns the id Write would assign if called right now,
// without popping it off the free list. A WAL wrapper uses this to log a
// record naming the row's id before the allocation it describes happens.
func (s *BlockStorage) PeekNextWriteID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, _, err := s.header()
	if err != nil {
		return 0, err
	}

	return int64(h.FreeListHead), nil
}

// WriteAt overwrites the row at id with buf, allocating or freeing
// continuation blocks as needed. If id is currently the free-list head
// and empty, WriteAt treats this as completing an interrupted Write:
// it pops id off the free list and counts the row, exactly as Write
// would have. This lets WAL recovery redo a logged WRITE whose header
// commit never landed by replaying it through WriteAt at the id the log
// recorded.
func (s *BlockStorage) WriteAt(id int64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.ReadOnly {
		return fmt.Errorf("write on read-only storage: %w", ferr.Config)
	}

	h, _, err := s.header()
	if err != nil {
		return err
	}

	freshInsert := false

	if int64(h.FreeListHead) == id {
		blk, err := s.blockAt(id)
		if err != nil {
			return err
		}

		hdr, err := readBlockHeader(blk)
		if err != nil {
			return err
		}

		if hdr.empty() {
			h.FreeListHead = uint64(hdr.Next)
			freshInsert = true
		}
	}

	existing, err := s.chainIDs(id)
	if err != nil {
		return err
	}

	capacity := int(s.opts.BlockDataBytes)
	needed := ceilDiv(len(buf), capacity)

	var ids []int64

	switch {
	case needed <= len(existing):
		ids = existing[:needed]

		for _, freeID := range existing[needed:] {
			if err := s.pushFreeBlock(&h, freeID); err != nil {
				return err
			}
		}
	default:
		ids = append(ids, existing...)

		for i := 0; i < needed-len(existing); i++ {
			newID, err := s.popFreeBlock(&h)
			if err != nil {
				return err
			}

			ids = append(ids, newID)
		}
	}

	if err := s.writeChain(ids, buf); err != nil {
		return err
	}

	if freshInsert {
		h.RowCount++
	}

	return s.commitHeader(h)
}

// writeChain writes buf across the blocks named by ids, which must
// already be popped/reused and have enough capacity for len(buf).
func (s *BlockStorage) writeChain(ids []int64, buf []byte) error {
	capacity := int(s.opts.BlockDataBytes)
	total := len(buf)

	for i, id := range ids {
		blk, err := s.blockAt(id)
		if err != nil {
			return err
		}

		start := i * capacity

		end := start + capacity
		if end > total {
			end = total
		}

		chunk := buf[start:end]

		next := int64(-1)
		if i+1 < len(ids) {
			next = ids[i+1]
		}

		mark := byte(markData)
		if i > 0 {
			mark = markCont
		}

		if err := writeBlockHeader(blk, blockHeader{
			Status:   statusLive,
			Mark:     mark,
			LenHere:  uint16(len(chunk)),
			LenTotal: uint32(total),
			Next:     next,
		}); err != nil {
			return err
		}

		copy(blk[BlockHeaderBytes:], chunk)

		for j := BlockHeaderBytes + len(chunk); j < len(blk); j++ {
			blk[j] = 0
		}
	}

	return nil
}

// chainIDs walks id's continuation chain and returns every block id in
// order, including id itself. It returns a single-element chain if id is
// empty (callers writing a fresh id at a caller-chosen slot rely on this).
func (s *BlockStorage) chainIDs(id int64) ([]int64, error) {
	ids := []int64{id}

	blk, err := s.blockAt(id)
	if err != nil {
		return nil, err
	}

	hdr, err := readBlockHeader(blk)
	if err != nil {
		return nil, err
	}

	if hdr.empty() {
		return ids, nil
	}

	next := hdr.Next
	for next != -1 {
		ids = append(ids, next)

		blk, err := s.blockAt(next)
		if err != nil {
			return nil, err
		}

		h, err := readBlockHeader(blk)
		if err != nil {
			return nil, err
		}

		next = h.Next
	}

	return ids, nil
}

// Read returns id's payload, or (nil, false) if the block is empty or not
// a data-start block.
func (s *BlockStorage) Read(id int64) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blk, err := s.blockAt(id)
	if err != nil {
		return nil, false, err
	}

	hdr, err := readBlockHeader(blk)
	if err != nil {
		return nil, false, err
	}

	if hdr.empty() || hdr.Mark != markData {
		return nil, false, nil
	}

	if int(hdr.LenTotal) <= int(s.opts.BlockDataBytes) {
		out := make([]byte, hdr.LenHere)
		copy(out, blk[BlockHeaderBytes:BlockHeaderBytes+int(hdr.LenHere)])

		return out, true, nil
	}

	out := make([]byte, 0, hdr.LenTotal)
	out = append(out, blk[BlockHeaderBytes:BlockHeaderBytes+int(hdr.LenHere)]...)

	next := hdr.Next
	for next != -1 {
		blk, err := s.blockAt(next)
		if err != nil {
			return nil, false, err
		}

		h, err := readBlockHeader(blk)
		if err != nil {
			return nil, false, err
		}

		if h.Mark != markCont {
			return nil, false, fmt.Errorf("block %d: expected continuation mark, got %q: %w", next, h.Mark, ferr.Corruption)
		}

		out = append(out, blk[BlockHeaderBytes:BlockHeaderBytes+int(h.LenHere)]...)
		next = h.Next
	}

	return out, true, nil
}

// Delete marks id's block (and its continuations) empty and threads them
// onto the free list. Returns false if id was already empty.
func (s *BlockStorage) Delete(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, _, err := s.header()
	if err != nil {
		return false, err
	}

	ids, err := s.chainIDs(id)
	if err != nil {
		return false, err
	}

	firstBlk, err := s.blockAt(id)
	if err != nil {
		return false, err
	}

	firstHdr, err := readBlockHeader(firstBlk)
	if err != nil {
		return false, err
	}

	if firstHdr.empty() {
		return false, nil
	}

	// Push in reverse chain order so the row's own (first) id ends up at
	// the free-list head, maximizing reuse locality for the common
	// single-block delete-then-reuse case.
	for i := len(ids) - 1; i >= 0; i-- {
		if err := s.pushFreeBlock(&h, ids[i]); err != nil {
			return false, err
		}
	}

	if h.RowCount > 0 {
		h.RowCount--
	}

	if err := s.commitHeader(h); err != nil {
		return false, err
	}

	return true, nil
}

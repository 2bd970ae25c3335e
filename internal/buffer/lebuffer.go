package buffer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flintdb/flintdb/internal/ferr"
)

// LEBuffer is a little-endian cursor view over a fixed byte slice. Every
// primitive get/put advances pos by the width read or written; callers that
// need random access use the *At variants, which do not move pos.
//
// LEBuffer never grows its backing slice. A get/put that would run past the
// slice bounds returns ferr.Corruption rather than panicking, so a truncated
// block or a miscomputed payload length surfaces as a typed error instead of
// crashing the reader.
type LEBuffer struct {
	buf []byte
	pos int
}

// Wrap returns an LEBuffer over buf with the cursor at offset 0.
func Wrap(buf []byte) *LEBuffer {
	return &LEBuffer{buf: buf}
}

// Bytes returns the backing slice. Mutating it mutates the buffer.
func (b *LEBuffer) Bytes() []byte { return b.buf }

// Len returns the backing slice length.
func (b *LEBuffer) Len() int { return len(b.buf) }

// Pos returns the current cursor position.
func (b *LEBuffer) Pos() int { return b.pos }

// Seek repositions the cursor. It does not validate pos against Len(); the
// next get/put call does that.
func (b *LEBuffer) Seek(pos int) { b.pos = pos }

// Remaining returns the number of bytes between the cursor and the end of
// the buffer. Negative if the cursor has been seeked past the end.
func (b *LEBuffer) Remaining() int { return len(b.buf) - b.pos }

func (b *LEBuffer) need(at, width int) error {
	if at < 0 || width < 0 || at+width > len(b.buf) {
		return fmt.Errorf("need %d bytes at offset %d, have %d: %w", width, at, len(b.buf), ferr.Corruption)
	}

	return nil
}

// --- unsigned 8 ---

func (b *LEBuffer) PutU8At(at int, v uint8) error {
	if err := b.need(at, 1); err != nil {
		return err
	}

	b.buf[at] = v

	return nil
}

func (b *LEBuffer) GetU8At(at int) (uint8, error) {
	if err := b.need(at, 1); err != nil {
		return 0, err
	}

	return b.buf[at], nil
}

func (b *LEBuffer) PutU8(v uint8) error {
	if err := b.PutU8At(b.pos, v); err != nil {
		return err
	}

	b.pos++

	return nil
}

func (b *LEBuffer) GetU8() (uint8, error) {
	v, err := b.GetU8At(b.pos)
	if err != nil {
		return 0, err
	}

	b.pos++

	return v, nil
}

// --- unsigned 16 ---

func (b *LEBuffer) PutU16At(at int, v uint16) error {
	if err := b.need(at, 2); err != nil {
		return err
	}

	binary.LittleEndian.PutUint16(b.buf[at:], v)

	return nil
}

func (b *LEBuffer) GetU16At(at int) (uint16, error) {
	if err := b.need(at, 2); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b.buf[at:]), nil
}

func (b *LEBuffer) PutU16(v uint16) error {
	if err := b.PutU16At(b.pos, v); err != nil {
		return err
	}

	b.pos += 2

	return nil
}

func (b *LEBuffer) GetU16() (uint16, error) {
	v, err := b.GetU16At(b.pos)
	if err != nil {
		return 0, err
	}

	b.pos += 2

	return v, nil
}

// --- signed/unsigned 32 ---

func (b *LEBuffer) PutU32At(at int, v uint32) error {
	if err := b.need(at, 4); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(b.buf[at:], v)

	return nil
}

func (b *LEBuffer) GetU32At(at int) (uint32, error) {
	if err := b.need(at, 4); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b.buf[at:]), nil
}

func (b *LEBuffer) PutU32(v uint32) error {
	if err := b.PutU32At(b.pos, v); err != nil {
		return err
	}

	b.pos += 4

	return nil
}

func (b *LEBuffer) GetU32() (uint32, error) {
	v, err := b.GetU32At(b.pos)
	if err != nil {
		return 0, err
	}

	b.pos += 4

	return v, nil
}

func (b *LEBuffer) PutI32(v int32) error { return b.PutU32(uint32(v)) }

func (b *LEBuffer) GetI32() (int32, error) {
	v, err := b.GetU32()

	return int32(v), err
}

func (b *LEBuffer) PutF32(v float32) error { return b.PutU32(math.Float32bits(v)) }

func (b *LEBuffer) GetF32() (float32, error) {
	v, err := b.GetU32()

	return math.Float32frombits(v), err
}

// --- signed/unsigned 64 ---

func (b *LEBuffer) PutU64At(at int, v uint64) error {
	if err := b.need(at, 8); err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(b.buf[at:], v)

	return nil
}

func (b *LEBuffer) GetU64At(at int) (uint64, error) {
	if err := b.need(at, 8); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b.buf[at:]), nil
}

func (b *LEBuffer) PutU64(v uint64) error {
	if err := b.PutU64At(b.pos, v); err != nil {
		return err
	}

	b.pos += 8

	return nil
}

func (b *LEBuffer) GetU64() (uint64, error) {
	v, err := b.GetU64At(b.pos)
	if err != nil {
		return 0, err
	}

	b.pos += 8

	return v, nil
}

func (b *LEBuffer) PutI64(v int64) error { return b.PutU64(uint64(v)) }

func (b *LEBuffer) GetI64() (int64, error) {
	v, err := b.GetU64()

	return int64(v), err
}

func (b *LEBuffer) PutF64(v float64) error { return b.PutU64(math.Float64bits(v)) }

func (b *LEBuffer) GetF64() (float64, error) {
	v, err := b.GetU64()

	return math.Float64frombits(v), err
}

// --- raw byte runs ---

// PutBytes copies src into the buffer at the cursor and advances by len(src).
func (b *LEBuffer) PutBytes(src []byte) error {
	if err := b.need(b.pos, len(src)); err != nil {
		return err
	}

	copy(b.buf[b.pos:], src)
	b.pos += len(src)

	return nil
}

// GetBytes returns a copy of n bytes from the cursor and advances by n.
func (b *LEBuffer) GetBytes(n int) ([]byte, error) {
	if err := b.need(b.pos, n); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, b.buf[b.pos:b.pos+n])
	b.pos += n

	return out, nil
}

// PeekBytes returns a slice view (not a copy) of n bytes at the cursor
// without advancing pos. Callers must not retain it past the next mutation.
func (b *LEBuffer) PeekBytes(n int) ([]byte, error) {
	if err := b.need(b.pos, n); err != nil {
		return nil, err
	}

	return b.buf[b.pos : b.pos+n], nil
}

// Skip advances the cursor by n without reading or writing.
func (b *LEBuffer) Skip(n int) error {
	if err := b.need(b.pos, n); err != nil {
		return err
	}

	b.pos += n

	return nil
}

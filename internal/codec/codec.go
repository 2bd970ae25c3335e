package codec

import (
	"fmt"
	"math/big"

	"github.com/flintdb/flintdb/internal/buffer"
	"github.com/flintdb/flintdb/internal/ferr"
	"github.com/flintdb/flintdb/internal/schema"
)

// Exactness selects whether encode rejects oversized variable-length
// payloads (EXACT mode) or silently truncates them.
type Exactness bool

const (
	Exact   Exactness = true
	Lenient Exactness = false
)

// Codec encodes/decodes rows for one schema. Encode buffers are sourced
// from a per-codec BufferArena sized row_bytes × 16.
type Codec struct {
	meta     schema.Meta
	rowBytes int
	arena    *buffer.Arena
	scratch  []byte
	exact    Exactness
}

// New constructs a Codec for meta. exactness controls overflow handling on
// encode.
func New(meta schema.Meta, exactness Exactness) (*Codec, error) {
	rowBytes := meta.RowBytes()

	arena, err := buffer.New(rowBytes, 16)
	if err != nil {
		return nil, fmt.Errorf("codec arena: %w", err)
	}

	return &Codec{
		meta:     meta,
		rowBytes: rowBytes,
		arena:    arena,
		scratch:  make([]byte, 256),
		exact:    exactness,
	}, nil
}

// Format encodes row into a pooled buffer. The returned slice must be
// passed to Release once the caller is done with it (typically right
// after BlockStorage.write copies it).
func (c *Codec) Format(row schema.Row) ([]byte, error) {
	if err := schema.Validate(c.meta.Columns, row); err != nil {
		return nil, err
	}

	out := c.arena.Borrow(c.rowBytes)
	lb := buffer.Wrap(out)

	if err := lb.PutU16(uint16(len(c.meta.Columns))); err != nil {
		return nil, fmt.Errorf("format row: %w", err)
	}

	for i, col := range c.meta.Columns {
		v := row.Values[i]

		if v.Null {
			if err := lb.PutU16(uint16(nullTag)); err != nil {
				return nil, fmt.Errorf("format column %q: %w", col.Name, err)
			}

			continue
		}

		if err := lb.PutU16(uint16(col.Type)); err != nil {
			return nil, fmt.Errorf("format column %q: %w", col.Name, err)
		}

		if err := c.encodePayload(lb, col, v); err != nil {
			return nil, fmt.Errorf("format column %q: %w", col.Name, err)
		}
	}

	return out[:lb.Pos()], nil
}

// Release returns an encode buffer to the pool.
func (c *Codec) Release(buf []byte) { c.arena.Return(buf) }

// Close releases the codec's arena. Further Format/Release calls are
// undefined afterward.
func (c *Codec) Close() { c.arena.Close() }

// Parse decodes one row from data, starting at offset 0.
func (c *Codec) Parse(data []byte) (schema.Row, error) {
	return c.parseFrom(buffer.Wrap(data))
}

func (c *Codec) parseFrom(lb *buffer.LEBuffer) (schema.Row, error) {
	count, err := lb.GetU16()
	if err != nil {
		return schema.Row{}, fmt.Errorf("parse row header: %w", err)
	}

	if int(count) != len(c.meta.Columns) {
		return schema.Row{}, fmt.Errorf("row declares %d columns, schema has %d: %w", count, len(c.meta.Columns), ferr.Corruption)
	}

	values := make([]schema.Value, len(c.meta.Columns))

	for i, col := range c.meta.Columns {
		tag, err := lb.GetU16()
		if err != nil {
			return schema.Row{}, fmt.Errorf("parse column %q tag: %w", col.Name, err)
		}

		if wireTag(tag) == nullTag {
			values[i] = schema.NullValue(col.Type)

			continue
		}

		v, err := c.decodePayload(lb, col, wireTag(tag))
		if err != nil {
			return schema.Row{}, fmt.Errorf("parse column %q: %w", col.Name, err)
		}

		values[i] = v
	}

	return schema.NewRow(values), nil
}

// ParseBatch decodes consecutive rows from data until maxRows rows have
// been produced or the buffer is exhausted, invoking consumer for each.
func (c *Codec) ParseBatch(data []byte, maxRows int, consumer func(schema.Row) error) error {
	lb := buffer.Wrap(data)

	for n := 0; (maxRows <= 0 || n < maxRows) && lb.Remaining() > 0; n++ {
		row, err := c.parseFrom(lb)
		if err != nil {
			return err
		}

		if err := consumer(row); err != nil {
			return err
		}
	}

	return nil
}

func (c *Codec) encodePayload(lb *buffer.LEBuffer, col schema.Column, v schema.Value) error {
	switch col.Type {
	case schema.TypeInt64, schema.TypeTime:
		return lb.PutI64(v.I)
	case schema.TypeInt, schema.TypeUint:
		return lb.PutI32(int32(v.I))
	case schema.TypeInt8, schema.TypeUint8:
		return lb.PutU8(uint8(v.I))
	case schema.TypeInt16, schema.TypeUint16:
		return lb.PutU16(uint16(v.I))
	case schema.TypeDouble:
		return lb.PutF64(v.F)
	case schema.TypeFloat:
		return lb.PutF32(float32(v.F))
	case schema.TypeDate:
		return encodeDate(lb, v.I)
	case schema.TypeUUID, schema.TypeIPv6:
		if len(v.B) != 16 {
			return fmt.Errorf("%s requires 16 bytes, got %d: %w", col.Type, len(v.B), ferr.Format)
		}

		return lb.PutBytes(v.B)
	case schema.TypeString:
		return c.encodeLengthPrefixed(lb, col, []byte(v.S))
	case schema.TypeBytes:
		return c.encodeLengthPrefixed(lb, col, v.B)
	case schema.TypeDecimal:
		return c.encodeDecimal(lb, col, v)
	default:
		return fmt.Errorf("column type %s unsupported on encode: %w", col.Type, ferr.Unsupported)
	}
}

func (c *Codec) encodeLengthPrefixed(lb *buffer.LEBuffer, col schema.Column, raw []byte) error {
	if len(raw) > col.MaxBytes {
		if c.exact == Exact {
			return fmt.Errorf("%s value of %d bytes exceeds max %d: %w", col.Type, len(raw), col.MaxBytes, ferr.Overflow)
		}

		raw = raw[:col.MaxBytes]
	}

	if err := lb.PutU16(uint16(len(raw))); err != nil {
		return err
	}

	return lb.PutBytes(raw)
}

func (c *Codec) encodeDecimal(lb *buffer.LEBuffer, col schema.Column, v schema.Value) error {
	unscaled := v.Dec
	if unscaled == nil {
		unscaled = big.NewInt(0)
	}

	raw := littleEndianTwosComplement(unscaled)

	if len(raw) > col.MaxBytes {
		if c.exact == Exact {
			return fmt.Errorf("decimal value of %d bytes exceeds max %d: %w", len(raw), col.MaxBytes, ferr.Overflow)
		}

		raw = raw[:col.MaxBytes]
	}

	if err := lb.PutU16(uint16(len(raw))); err != nil {
		return err
	}

	return lb.PutBytes(raw)
}

func (c *Codec) decodePayload(lb *buffer.LEBuffer, col schema.Column, tag wireTag) (schema.Value, error) {
	switch tag {
	case schema.TypeInt64, schema.TypeTime:
		i, err := lb.GetI64()

		return schema.IntValue(col.Type, i), err
	case schema.TypeInt:
		i, err := lb.GetI32()

		return schema.IntValue(col.Type, int64(i)), err
	case schema.TypeUint:
		i, err := lb.GetU32()

		return schema.IntValue(col.Type, int64(i)), err
	case schema.TypeInt8:
		i, err := lb.GetU8()

		return schema.IntValue(col.Type, int64(int8(i))), err
	case schema.TypeUint8:
		i, err := lb.GetU8()

		return schema.IntValue(col.Type, int64(i)), err
	case schema.TypeInt16:
		i, err := lb.GetU16()

		return schema.IntValue(col.Type, int64(int16(i))), err
	case schema.TypeUint16:
		i, err := lb.GetU16()

		return schema.IntValue(col.Type, int64(i)), err
	case schema.TypeDouble:
		f, err := lb.GetF64()

		return schema.FloatValue(col.Type, f), err
	case schema.TypeFloat:
		f, err := lb.GetF32()

		return schema.FloatValue(col.Type, float64(f)), err
	case schema.TypeDate:
		i, err := decodeDate(lb)

		return schema.IntValue(col.Type, i), err
	case schema.TypeUUID, schema.TypeIPv6:
		b, err := lb.GetBytes(16)

		return schema.Value{Type: col.Type, B: b}, err
	case schema.TypeString:
		n, err := lb.GetU16()
		if err != nil {
			return schema.Value{}, err
		}

		b, err := c.decodeScratch(lb, int(n))
		if err != nil {
			return schema.Value{}, err
		}

		return schema.StringValue(string(b)), nil
	case schema.TypeBytes:
		n, err := lb.GetU16()
		if err != nil {
			return schema.Value{}, err
		}

		b, err := lb.GetBytes(int(n))

		return schema.BytesValue(b), err
	case schema.TypeDecimal:
		n, err := lb.GetU16()
		if err != nil {
			return schema.Value{}, err
		}

		raw, err := lb.GetBytes(int(n))
		if err != nil {
			return schema.Value{}, err
		}

		return schema.DecimalValue(decodeDecimalFastPath(raw), col.Precision), nil
	default:
		return schema.Value{}, fmt.Errorf("unknown wire tag %d: %w", uint16(tag), ferr.Corruption)
	}
}

// decodeScratch reads n bytes using the codec's growable per-codec scratch
// buffer: a per-thread growable buffer, modeled here as a per-codec one
// since each Codec is used single-threaded. The returned slice is only
// valid until the next decode call on this codec.
func (c *Codec) decodeScratch(lb *buffer.LEBuffer, n int) ([]byte, error) {
	if cap(c.scratch) < n {
		c.scratch = make([]byte, n)
	}

	c.scratch = c.scratch[:n]

	b, err := lb.GetBytes(n)
	if err != nil {
		return nil, err
	}

	copy(c.scratch, b)

	return c.scratch, nil
}

func encodeDate(lb *buffer.LEBuffer, packed int64) error {
	b := make([]byte, 3)
	v := uint32(packed)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)

	return lb.PutBytes(b)
}

func decodeDate(lb *buffer.LEBuffer) (int64, error) {
	b, err := lb.GetBytes(3)
	if err != nil {
		return 0, err
	}

	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16

	return int64(v), nil
}

// littleEndianTwosComplement returns n's minimal two's-complement
// representation, least-significant byte first — the canonical DECIMAL
// wire convention.
func littleEndianTwosComplement(n *big.Int) []byte {
	be := n.Bytes() // magnitude, big-endian, unsigned

	if n.Sign() >= 0 {
		// Ensure a zero high bit so the value doesn't read as negative.
		if len(be) > 0 && be[0]&0x80 != 0 {
			be = append([]byte{0}, be...)
		}

		if len(be) == 0 {
			be = []byte{0}
		}

		reverse(be)

		return be
	}

	mag := new(big.Int).Abs(n)
	bitLen := mag.BitLen()
	byteLen := bitLen/8 + 1

	full := new(big.Int).Lsh(big.NewInt(1), uint(byteLen*8))
	twos := new(big.Int).Add(full, n) // full + n == full - |n|

	be = twos.Bytes()
	for len(be) < byteLen {
		be = append([]byte{0xFF}, be...)
	}

	reverse(be)

	return be
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// decodeDecimalFastPath has two decode tiers, both little-endian
// (LSB-first): at most 8 bytes assembles directly into a sign-extended
// int64, the common case for DECIMAL(p<=18); anything wider — the 9..16
// byte range and the arbitrary-precision tail beyond it alike — goes
// through a shared big.Int reconstruction.
func decodeDecimalFastPath(raw []byte) *big.Int {
	switch {
	case len(raw) == 0:
		return big.NewInt(0)
	case len(raw) <= 8:
		return int64FromLE(raw)
	default:
		// Reverse to big-endian magnitude bytes, then subtract 2^bitwidth
		// if the sign bit is set.
		unsigned := new(big.Int).SetBytes(reversedCopy(raw))
		if raw[len(raw)-1]&0x80 != 0 {
			mod := new(big.Int).Lsh(big.NewInt(1), uint(8*len(raw)))
			unsigned.Sub(unsigned, mod)
		}

		return unsigned
	}
}

func int64FromLE(raw []byte) *big.Int {
	var v int64

	for i := len(raw) - 1; i >= 0; i-- {
		v = v<<8 | int64(raw[i])
	}

	// Sign-extend from the actual bit width when raw is shorter than 8
	// bytes and its top bit is set.
	if len(raw) < 8 && len(raw) > 0 && raw[len(raw)-1]&0x80 != 0 {
		shift := uint(64 - 8*len(raw))
		v = (v << shift) >> shift
	}

	return big.NewInt(v)
}

func reversedCopy(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}

	return out
}

package table

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/flintdb/flintdb/internal/schema"
)

// Hash implements hashindex.Comparator: it resolves rowID to its decoded
// row and hashes the row's primary-key column values. A row-id that no
// longer resolves hashes to 0, so a stale reference degrades to bucket 0
// rather than panicking.
func (t *HashTable) Hash(rowID uint64) uint64 {
	row, ok, err := t.readDecoded(int64(rowID))
	if err != nil || !ok {
		return 0
	}

	return t.hashKey(t.keyValues(row))
}

// Compare implements hashindex.Comparator, ordering two row-ids by their
// primary-key column values.
func (t *HashTable) Compare(a, b uint64) int {
	ra, _, _ := t.readDecoded(int64(a))
	rb, _, _ := t.readDecoded(int64(b))

	return compareValues(t.keyValues(ra), t.keyValues(rb))
}

func (t *HashTable) keyValues(row schema.Row) []schema.Value {
	vals := make([]schema.Value, len(t.keyIdx))
	for i, ci := range t.keyIdx {
		if ci < len(row.Values) {
			vals[i] = row.Values[ci]
		}
	}

	return vals
}

func (t *HashTable) hashKey(vals []schema.Value) uint64 {
	h := fnv.New64a()

	for _, v := range vals {
		h.Write(valueBytes(v))
	}

	return h.Sum64()
}

func valueBytes(v schema.Value) []byte {
	if v.Null {
		return []byte{0}
	}

	switch v.Type {
	case schema.TypeFloat, schema.TypeDouble:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.F))

		return buf[:]
	case schema.TypeString:
		return []byte(v.S)
	case schema.TypeBytes, schema.TypeUUID, schema.TypeIPv6:
		return v.B
	case schema.TypeDecimal:
		if v.Dec == nil {
			return []byte{0}
		}

		return v.Dec.Bytes()
	default:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.I))

		return buf[:]
	}
}

func compareValues(a, b []schema.Value) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}

		if d := compareValue(a[i], b[i]); d != 0 {
			return d
		}
	}

	if len(b) > len(a) {
		return -1
	}

	return 0
}

func compareValue(a, b schema.Value) int {
	if a.Null != b.Null {
		if a.Null {
			return -1
		}

		return 1
	}

	if a.Null {
		return 0
	}

	switch a.Type {
	case schema.TypeFloat, schema.TypeDouble:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		default:
			return 0
		}
	case schema.TypeString:
		return bytes.Compare([]byte(a.S), []byte(b.S))
	case schema.TypeBytes, schema.TypeUUID, schema.TypeIPv6:
		return bytes.Compare(a.B, b.B)
	case schema.TypeDecimal:
		if a.Dec == nil || b.Dec == nil {
			return 0
		}

		return a.Dec.Cmp(b.Dec)
	default:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		default:
			return 0
		}
	}
}

package hashindex

import "encoding/binary"

// internalNode is the 112-byte internal-node layout: 8 bytes prev, 8
// bytes next, then up to 12 leaf offsets (8 bytes each). Internals
// within a bucket are chained via next/prev; lookups and traversal walk
// next from the bucket's front.
type internalNode struct {
	Prev   int64
	Next   int64
	Leaves [InternalMax]int64
	NLeaf  int
}

func decodeInternal(b []byte) internalNode {
	var n internalNode

	n.Prev = int64(binary.LittleEndian.Uint64(b[0:8]))
	n.Next = int64(binary.LittleEndian.Uint64(b[8:16]))

	for i := 0; i < InternalMax; i++ {
		off := 16 + i*8

		v := int64(binary.LittleEndian.Uint64(b[off : off+8]))
		if v == noRef {
			break
		}

		n.Leaves[n.NLeaf] = v
		n.NLeaf++
	}

	return n
}

func encodeInternal(b []byte, n internalNode) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(n.Prev))
	binary.LittleEndian.PutUint64(b[8:16], uint64(n.Next))

	for i := 0; i < InternalMax; i++ {
		off := 16 + i*8

		var v int64
		if i < n.NLeaf {
			v = n.Leaves[i]
		}

		binary.LittleEndian.PutUint64(b[off:off+8], uint64(v))
	}
}

// leafNode is the 112-byte leaf layout: up to 14 sorted 64-bit keys
// terminated by -1.
type leafNode struct {
	Keys [LeafMax]uint64
	N    int
}

func decodeLeaf(b []byte) leafNode {
	var n leafNode

	for i := 0; i < LeafMax; i++ {
		off := i * 8

		v := binary.LittleEndian.Uint64(b[off : off+8])
		if int64(v) == -1 {
			break
		}

		n.Keys[n.N] = v
		n.N++
	}

	return n
}

func encodeLeaf(b []byte, n leafNode) {
	for i := 0; i < LeafMax; i++ {
		off := i * 8

		v := uint64(0xFFFFFFFFFFFFFFFF) // -1 sentinel
		if i < n.N {
			v = n.Keys[i]
		}

		binary.LittleEndian.PutUint64(b[off:off+8], v)
	}
}

package hashindex

import "fmt"

// Put inserts key into its bucket if absent, descending through the
// internal/leaf chain and overflowing as needed. A key already present is
// a no-op.
func (hf *HashIndexFile) Put(key uint64) error {
	bucket := hf.bucketOf(key)

	front, _, err := hf.readDirectory(bucket)
	if err != nil {
		return err
	}

	if front == noRef {
		leafRef, err := hf.newLeaf(leafNode{Keys: [LeafMax]uint64{key}, N: 1})
		if err != nil {
			return err
		}

		internRef, err := hf.newInternal(internalNode{Leaves: [InternalMax]int64{leafRef}, NLeaf: 1})
		if err != nil {
			return err
		}

		if err := hf.writeDirectory(bucket, internRef, internRef); err != nil {
			return err
		}

		return hf.bumpCount(1)
	}

	internRef, internal, err := hf.chooseInternal(front, key)
	if err != nil {
		return err
	}

	leafIdx, leafRef, err := hf.chooseLeaf(internal, key)
	if err != nil {
		return err
	}

	leaf, err := hf.readLeaf(leafRef)
	if err != nil {
		return err
	}

	pos, found := searchLeaf(hf.cmp, leaf, key)
	if found {
		return nil
	}

	if leaf.N < LeafMax {
		insertLeafKey(&leaf, pos, key)

		if err := hf.writeLeaf(leafRef, leaf); err != nil {
			return err
		}

		return hf.bumpCount(1)
	}

	if err := hf.overflow(bucket, internRef, internal, leafIdx, leaf, key); err != nil {
		return err
	}

	return hf.bumpCount(1)
}

// chooseInternal walks the bucket's right-linked internal chain from
// front, returning the last internal whose first leaf's first key is
// <= key (or front itself if key is smaller than everything).
func (hf *HashIndexFile) chooseInternal(front int64, key uint64) (int64, internalNode, error) {
	return hf.chooseInternalBy(front, func(candidate uint64) int { return hf.cmp.Compare(key, candidate) })
}

// chooseInternalBy is chooseInternal generalized over an arbitrary
// target-vs-candidate comparison, so FindByHash can probe with a target
// that has no uint64 key representation of its own yet.
func (hf *HashIndexFile) chooseInternalBy(front int64, compare func(candidate uint64) int) (int64, internalNode, error) {
	chosenRef := front

	chosen, err := hf.readInternal(front)
	if err != nil {
		return 0, internalNode{}, err
	}

	cur := chosen.Next

	for cur != noRef {
		node, err := hf.readInternal(cur)
		if err != nil {
			return 0, internalNode{}, err
		}

		sep, err := hf.firstKeyOf(node)
		if err != nil {
			return 0, internalNode{}, err
		}

		if compare(sep) < 0 {
			break
		}

		chosenRef, chosen = cur, node
		cur = node.Next
	}

	return chosenRef, chosen, nil
}

func (hf *HashIndexFile) chooseLeafBy(internal internalNode, compare func(candidate uint64) int) (int, int64, error) {
	idx := 0

	for i := 0; i < internal.NLeaf; i++ {
		leaf, err := hf.readLeaf(internal.Leaves[i])
		if err != nil {
			return 0, 0, err
		}

		if leaf.N > 0 && compare(leaf.Keys[0]) < 0 {
			break
		}

		idx = i
	}

	return idx, internal.Leaves[idx], nil
}

func searchLeafBy(leaf leafNode, compare func(candidate uint64) int) (int, bool) {
	lo, hi := 0, leaf.N

	for lo < hi {
		mid := (lo + hi) / 2

		d := compare(leaf.Keys[mid])

		switch {
		case d == 0:
			return mid, true
		case d < 0:
			hi = mid
		default:
			lo = mid + 1
		}
	}

	return lo, false
}

func (hf *HashIndexFile) firstKeyOf(n internalNode) (uint64, error) {
	if n.NLeaf == 0 {
		return 0, fmt.Errorf("internal node has no leaves")
	}

	leaf, err := hf.readLeaf(n.Leaves[0])
	if err != nil {
		return 0, err
	}

	if leaf.N == 0 {
		return 0, nil
	}

	return leaf.Keys[0], nil
}

// chooseLeaf returns the index and ref of the leaf within internal that
// should hold key: the last leaf whose first key is <= key.
func (hf *HashIndexFile) chooseLeaf(internal internalNode, key uint64) (int, int64, error) {
	return hf.chooseLeafBy(internal, func(candidate uint64) int { return hf.cmp.Compare(key, candidate) })
}

// searchLeaf binary-searches leaf's sorted keys for key, returning the
// insertion position and whether it was found.
func searchLeaf(cmp Comparator, leaf leafNode, key uint64) (int, bool) {
	return searchLeafBy(leaf, func(candidate uint64) int { return cmp.Compare(key, candidate) })
}

func insertLeafKey(leaf *leafNode, pos int, key uint64) {
	copy(leaf.Keys[pos+1:leaf.N+1], leaf.Keys[pos:leaf.N])
	leaf.Keys[pos] = key
	leaf.N++
}

// overflow handles a full leaf: try the right sibling within the same
// internal, then a new leaf in the same internal, then a new internal
// spliced into the bucket's right-linked chain.
func (hf *HashIndexFile) overflow(bucket uint32, internRef int64, internal internalNode, leafIdx int, leaf leafNode, key uint64) error {
	pos, _ := searchLeaf(hf.cmp, leaf, key)

	var all [LeafMax + 1]uint64
	copy(all[:pos], leaf.Keys[:pos])
	all[pos] = key
	copy(all[pos+1:leaf.N+1], leaf.Keys[pos:leaf.N])

	overflowKey := all[LeafMax]

	var kept leafNode
	copy(kept.Keys[:], all[:LeafMax])
	kept.N = LeafMax

	if err := hf.writeLeaf(internal.Leaves[leafIdx], kept); err != nil {
		return err
	}

	if leafIdx+1 < internal.NLeaf {
		sibling, err := hf.readLeaf(internal.Leaves[leafIdx+1])
		if err != nil {
			return err
		}

		if sibling.N < LeafMax {
			var grown leafNode

			grown.Keys[0] = overflowKey
			copy(grown.Keys[1:sibling.N+1], sibling.Keys[:sibling.N])
			grown.N = sibling.N + 1

			return hf.writeLeaf(internal.Leaves[leafIdx+1], grown)
		}
	}

	newLeafRef, err := hf.newLeaf(leafNode{Keys: [LeafMax]uint64{overflowKey}, N: 1})
	if err != nil {
		return err
	}

	if internal.NLeaf < InternalMax {
		copy(internal.Leaves[leafIdx+2:internal.NLeaf+1], internal.Leaves[leafIdx+1:internal.NLeaf])
		internal.Leaves[leafIdx+1] = newLeafRef
		internal.NLeaf++

		return hf.writeInternal(internRef, internal)
	}

	// The internal is full: the new leaf still goes right after leafIdx,
	// and the internal's last leaf moves out to start the new internal,
	// so leaves stay in comparator order along the chain.
	movedRef := newLeafRef
	if leafIdx+1 < internal.NLeaf {
		movedRef = internal.Leaves[internal.NLeaf-1]
		copy(internal.Leaves[leafIdx+2:internal.NLeaf], internal.Leaves[leafIdx+1:internal.NLeaf-1])
		internal.Leaves[leafIdx+1] = newLeafRef
	}

	newInternRef, err := hf.newInternal(internalNode{Prev: internRef, Next: internal.Next, Leaves: [InternalMax]int64{movedRef}, NLeaf: 1})
	if err != nil {
		return err
	}

	if internal.Next != noRef {
		next, err := hf.readInternal(internal.Next)
		if err != nil {
			return err
		}

		next.Prev = newInternRef

		if err := hf.writeInternal(internal.Next, next); err != nil {
			return err
		}
	}

	internal.Next = newInternRef
	if err := hf.writeInternal(internRef, internal); err != nil {
		return err
	}

	front, tail, err := hf.readDirectory(bucket)
	if err != nil {
		return err
	}

	if tail == internRef {
		return hf.writeDirectory(bucket, front, newInternRef)
	}

	return nil
}

func (hf *HashIndexFile) bumpCount(delta int64) error {
	n, err := hf.readCount()
	if err != nil {
		return err
	}

	return hf.writeCount(uint64(int64(n) + delta))
}

// Find reports whether key is present in the index.
func (hf *HashIndexFile) Find(key uint64) (bool, error) {
	bucket := hf.bucketOf(key)

	_, found, err := hf.findInBucket(bucket, func(candidate uint64) int {
		return hf.cmp.Compare(key, candidate)
	})

	return found, err
}

// FindByHash locates the key in the bucket identified by hash (computed by
// the caller, e.g. from a probe row not yet assigned an id) using compare
// to order a candidate stored key against the target. This lets HashTable
// search for a primary-key match before the candidate row has an id of its
// own, e.g. a lookup by primary-key column values before a row exists.
func (hf *HashIndexFile) FindByHash(hash uint64, compare func(candidate uint64) int) (uint64, bool, error) {
	bucket := uint32((hash & 0x7FFFFFFF) % HashSize)

	return hf.findInBucket(bucket, compare)
}

func (hf *HashIndexFile) findInBucket(bucket uint32, compare func(candidate uint64) int) (uint64, bool, error) {
	front, _, err := hf.readDirectory(bucket)
	if err != nil {
		return 0, false, err
	}

	if front == noRef {
		return 0, false, nil
	}

	_, internal, err := hf.chooseInternalBy(front, compare)
	if err != nil {
		return 0, false, err
	}

	if internal.NLeaf == 0 {
		return 0, false, nil
	}

	_, leafRef, err := hf.chooseLeafBy(internal, compare)
	if err != nil {
		return 0, false, err
	}

	leaf, err := hf.readLeaf(leafRef)
	if err != nil {
		return 0, false, err
	}

	pos, found := searchLeafBy(leaf, compare)
	if !found {
		return 0, false, nil
	}

	return leaf.Keys[pos], true, nil
}

// Traverse visits every stored key in comparator order, bucket by bucket,
// invoking visit for each, and returns the total count visited.
func (hf *HashIndexFile) Traverse(visit func(key uint64) error) (int64, error) {
	var total int64

	for bucket := uint32(0); bucket < HashSize; bucket++ {
		front, _, err := hf.readDirectory(bucket)
		if err != nil {
			return total, err
		}

		for cur := front; cur != noRef; {
			internal, err := hf.readInternal(cur)
			if err != nil {
				return total, err
			}

			for i := 0; i < internal.NLeaf; i++ {
				leaf, err := hf.readLeaf(internal.Leaves[i])
				if err != nil {
					return total, err
				}

				for k := 0; k < leaf.N; k++ {
					if err := visit(leaf.Keys[k]); err != nil {
						return total, err
					}

					total++
				}
			}

			cur = internal.Next
		}
	}

	return total, nil
}

package hashindex

// A node's on-disk reference is its BlockStorage row id plus one, so that
// 0 can serve as the "no node" sentinel in the bucket directory and in
// internal-node prev/next fields (block id 0 is otherwise a perfectly
// valid allocation).
func toRef(id int64) int64   { return id + 1 }
func fromRef(ref int64) int64 { return ref - 1 }

func (hf *HashIndexFile) newInternal(n internalNode) (int64, error) {
	buf := make([]byte, NodeBytes)
	encodeInternal(buf, n)

	id, err := hf.store.Write(buf)
	if err != nil {
		return 0, err
	}

	return toRef(id), nil
}

func (hf *HashIndexFile) newLeaf(n leafNode) (int64, error) {
	buf := make([]byte, NodeBytes)
	encodeLeaf(buf, n)

	id, err := hf.store.Write(buf)
	if err != nil {
		return 0, err
	}

	return toRef(id), nil
}

func (hf *HashIndexFile) readInternal(ref int64) (internalNode, error) {
	buf, ok, err := hf.store.Read(fromRef(ref))
	if err != nil {
		return internalNode{}, err
	}

	if !ok {
		return internalNode{}, nil
	}

	return decodeInternal(buf), nil
}

func (hf *HashIndexFile) writeInternal(ref int64, n internalNode) error {
	buf := make([]byte, NodeBytes)
	encodeInternal(buf, n)

	return hf.store.WriteAt(fromRef(ref), buf)
}

func (hf *HashIndexFile) readLeaf(ref int64) (leafNode, error) {
	buf, ok, err := hf.store.Read(fromRef(ref))
	if err != nil {
		return leafNode{}, err
	}

	if !ok {
		return leafNode{}, nil
	}

	return decodeLeaf(buf), nil
}

func (hf *HashIndexFile) writeLeaf(ref int64, n leafNode) error {
	buf := make([]byte, NodeBytes)
	encodeLeaf(buf, n)

	return hf.store.WriteAt(fromRef(ref), buf)
}

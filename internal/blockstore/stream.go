package blockstore

import (
	"bytes"
	"fmt"
	"io"
)

// WriteStream reads r to completion and writes it as a new row, the
// streaming analogue of Write for callers that produce payloads larger
// than comfortably fits in one buffer. Internally it still assembles one
// contiguous chain via Write — the chunked block layout is what makes the
// chain itself streamable on read, via ReadStream.
func (s *BlockStorage) WriteStream(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read stream source: %w", err)
	}

	return s.Write(data)
}

// ReadStream returns an io.Reader yielding id's payload, or (nil, false)
// if id is empty. The whole payload is read up front via Read and served
// from memory; the reader does not walk the block chain lazily.
func (s *BlockStorage) ReadStream(id int64) (io.Reader, bool, error) {
	buf, ok, err := s.Read(id)
	if err != nil || !ok {
		return nil, ok, err
	}

	return bytes.NewReader(buf), true, nil
}

package vfs

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
)

// WriteFileAtomic durably replaces path's contents: write to a sibling temp
// file, fsync it, then rename over path. Used for the schema sidecar
// (<table>.desc) so a crash never leaves a half-written schema behind.
func WriteFileAtomic(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("atomic write %q: %w", path, err)
	}

	return nil
}

// Package faultfs wraps internal/vfs.FS to fail an operation after a
// configured number of calls, for exercising WAL crash-recovery paths:
// fail the Nth call to one named op.
package faultfs

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/flintdb/flintdb/internal/vfs"
)

// Op names an operation faultfs can fail.
type Op string

const (
	OpOpenFile Op = "openfile"
	OpTruncate Op = "truncate"
	OpSync     Op = "sync"
	OpRename   Op = "rename"
	OpRemove   Op = "remove"
)

// FS fails its After'th call (1-indexed) to Op with Err.
type FS struct {
	inner vfs.FS
	op    Op
	after uint64
	err   error

	calls uint64
}

// New wraps inner so that the After'th call to op returns err instead of
// delegating. After == 0 disables injection.
func New(inner vfs.FS, op Op, after uint64, err error) *FS {
	if err == nil {
		err = fmt.Errorf("faultfs: injected failure for %s", op)
	}

	return &FS{inner: inner, op: op, after: after, err: err}
}

func (f *FS) trigger(op Op) error {
	if f.op != op || f.after == 0 {
		return nil
	}

	if atomic.AddUint64(&f.calls, 1) == f.after {
		return f.err
	}

	return nil
}

func (f *FS) OpenFile(path string, flag int, perm os.FileMode) (vfs.File, error) {
	if err := f.trigger(OpOpenFile); err != nil {
		return nil, err
	}

	file, err := f.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultFile{File: file, fs: f}, nil
}

func (f *FS) Stat(path string) (os.FileInfo, error) { return f.inner.Stat(path) }
func (f *FS) Exists(path string) (bool, error)       { return f.inner.Exists(path) }

func (f *FS) Remove(path string) error {
	if err := f.trigger(OpRemove); err != nil {
		return err
	}

	return f.inner.Remove(path)
}

func (f *FS) Rename(oldpath, newpath string) error {
	if err := f.trigger(OpRename); err != nil {
		return err
	}

	return f.inner.Rename(oldpath, newpath)
}

func (f *FS) MkdirAll(path string, perm os.FileMode) error { return f.inner.MkdirAll(path, perm) }

var _ vfs.FS = (*FS)(nil)

type faultFile struct {
	vfs.File
	fs *FS
}

func (ff *faultFile) Truncate(size int64) error {
	if err := ff.fs.trigger(OpTruncate); err != nil {
		return err
	}

	return ff.File.Truncate(size)
}

func (ff *faultFile) Sync() error {
	if err := ff.fs.trigger(OpSync); err != nil {
		return err
	}

	return ff.File.Sync()
}

var _ vfs.File = (*faultFile)(nil)

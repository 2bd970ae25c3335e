// Package vfs provides the filesystem seam flintdb's storage layer opens
// data files, sidecars, and WAL segments through.
//
// [Real] is the only production implementation; the interface exists so
// storage-layer tests can substitute an in-memory or fault-injecting
// filesystem without touching block/hash-index logic.
package vfs

import (
	"io"
	"os"
)

// File is the subset of *os.File that flintdb's storage layer needs.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	Fd() uintptr
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

// FS abstracts the operations flintdb performs against the filesystem.
type FS interface {
	OpenFile(path string, flag int, perm os.FileMode) (File, error)
	Stat(path string) (os.FileInfo, error)
	Exists(path string) (bool, error)
	Remove(path string) error
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
}

// Real implements FS using the os package.
type Real struct{}

// NewReal returns the production filesystem.
func NewReal() *Real { return &Real{} }

func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

func (r *Real) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func (r *Real) Remove(path string) error               { return os.Remove(path) }
func (r *Real) Rename(oldpath, newpath string) error    { return os.Rename(oldpath, newpath) }
func (r *Real) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

var _ FS = (*Real)(nil)

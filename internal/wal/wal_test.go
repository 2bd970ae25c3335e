package wal_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintdb/flintdb/internal/vfs"
	"github.com/flintdb/flintdb/internal/wal"
	"github.com/flintdb/flintdb/internal/wal/faultfs"
)

func TestBeginAppendCommitRecover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wal")

	w, err := wal.Open(path, true, vfs.NewReal(), nil)
	require.NoError(t, err)

	defer w.Close()

	tx, err := w.Begin()
	require.NoError(t, err)

	require.NoError(t, w.Append(wal.OpWrite, tx, 7, []byte("hello")))
	require.NoError(t, w.Commit(tx))

	var applied []string

	require.NoError(t, w.Recover(func(op wal.Op, pageID uint64, payload []byte) error {
		require.Equal(t, wal.OpWrite, op)
		require.Equal(t, uint64(7), pageID)
		applied = append(applied, string(payload))

		return nil
	}))

	require.Equal(t, []string{"hello"}, applied)
}

func TestUncommittedTransactionIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wal")

	w, err := wal.Open(path, true, vfs.NewReal(), nil)
	require.NoError(t, err)

	defer w.Close()

	tx, err := w.Begin()
	require.NoError(t, err)
	require.NoError(t, w.Append(wal.OpWrite, tx, 1, []byte("orphan")))

	applied := 0
	require.NoError(t, w.Recover(func(wal.Op, uint64, []byte) error {
		applied++
		return nil
	}))

	require.Equal(t, 0, applied)
}

func TestRollbackTransactionIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wal")

	w, err := wal.Open(path, true, vfs.NewReal(), nil)
	require.NoError(t, err)

	defer w.Close()

	tx, err := w.Begin()
	require.NoError(t, err)
	require.NoError(t, w.Append(wal.OpWrite, tx, 1, []byte("undone")))
	require.NoError(t, w.Rollback(tx))

	applied := 0
	require.NoError(t, w.Recover(func(wal.Op, uint64, []byte) error {
		applied++
		return nil
	}))

	require.Equal(t, 0, applied)
}

func TestRecoverSkipsUpdateDeleteWithoutPageData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wal")

	w, err := wal.Open(path, false, vfs.NewReal(), nil)
	require.NoError(t, err)

	defer w.Close()

	tx, err := w.Begin()
	require.NoError(t, err)
	require.NoError(t, w.Append(wal.OpUpdate, tx, 3, []byte("new-value")))
	require.NoError(t, w.Commit(tx))

	applied := 0
	require.NoError(t, w.Recover(func(wal.Op, uint64, []byte) error {
		applied++
		return nil
	}))

	require.Equal(t, 0, applied, "update replay requires pageData")
}

func TestCheckpointTruncatesWhenAllTransactionsTerminal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wal")

	w, err := wal.Open(path, true, vfs.NewReal(), nil)
	require.NoError(t, err)

	defer w.Close()

	tx, err := w.Begin()
	require.NoError(t, err)
	require.NoError(t, w.Append(wal.OpWrite, tx, 1, []byte("x")))
	require.NoError(t, w.Commit(tx))
	require.NoError(t, w.Checkpoint())

	applied := 0
	require.NoError(t, w.Recover(func(wal.Op, uint64, []byte) error {
		applied++
		return nil
	}))

	require.Equal(t, 0, applied, "checkpoint should have discarded the already-applied record")
}

func TestCheckpointLeavesOpenTransactionIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wal")

	w, err := wal.Open(path, true, vfs.NewReal(), nil)
	require.NoError(t, err)

	defer w.Close()

	tx, err := w.Begin()
	require.NoError(t, err)
	require.NoError(t, w.Append(wal.OpWrite, tx, 1, []byte("pending")))

	require.NoError(t, w.Checkpoint())

	require.NoError(t, w.Commit(tx))

	applied := 0
	require.NoError(t, w.Recover(func(wal.Op, uint64, []byte) error {
		applied++
		return nil
	}))

	require.Equal(t, 1, applied)
}

func TestOpenFailsWhenHeaderGrowthFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.wal")

	ffs := faultfs.New(vfs.NewReal(), faultfs.OpTruncate, 1, errors.New("disk full"))

	_, err := wal.Open(path, true, ffs, nil)
	require.Error(t, err)
}

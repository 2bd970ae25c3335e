package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flintdb/flintdb/internal/cli"
)

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	code := cli.Run(&stdout, &stderr, allCommands(), args)

	return stdout.String(), stderr.String(), code
}

func TestCreateInspectDump(t *testing.T) {
	dir := t.TempDir()

	defFile := filepath.Join(dir, "users.def")
	require.NoError(t, os.WriteFile(defFile, []byte(
		"CREATE TABLE users (\n  id INT64,\n  name STRING(16),\n  PRIMARY KEY (id)\n)\n"), 0o644))

	tablePath := filepath.Join(dir, "users.tbl")

	out, errOut, code := runCLI(t, "create", tablePath, "--def", defFile)
	require.Equal(t, 0, code)
	require.Empty(t, errOut)
	require.Contains(t, out, "created")
	require.Contains(t, out, "2 columns")

	out, errOut, code = runCLI(t, "inspect", tablePath)
	require.Equal(t, 0, code)
	require.Empty(t, errOut)
	require.Contains(t, out, "rows=0")

	out, errOut, code = runCLI(t, "dump", tablePath)
	require.Equal(t, 0, code)
	require.Empty(t, errOut)
	require.Contains(t, out, "0 rows")

	out, errOut, code = runCLI(t, "wal-status", tablePath)
	require.Equal(t, 0, code)
	require.Empty(t, errOut)
	require.Contains(t, out, "no wal file")
}

func TestInspectMissingTableFails(t *testing.T) {
	dir := t.TempDir()

	_, errOut, code := runCLI(t, "inspect", filepath.Join(dir, "nope.tbl"))
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "error:")
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileIsZeroValue(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.jsonc"))
	require.NoError(t, err)
	require.Equal(t, config{}, cfg)
}

func TestLoadConfigEmptyPathIsZeroValue(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, config{}, cfg)
}

func TestLoadConfigTolerantOfCommentsAndTrailingCommas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flintctl.jsonc")

	require.NoError(t, os.WriteFile(path, []byte(`{
  // defaults applied to newly created tables
  "default_storage": "memory",
  "default_cache_size": 256,
}
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.DefaultStorage)
	require.Equal(t, 256, cfg.DefaultCacheSize)
}

func TestLoadConfigRejectsInvalidJWCC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flintctl.jsonc")

	require.NoError(t, os.WriteFile(path, []byte(`{ not valid`), 0o644))

	_, err := loadConfig(path)
	require.Error(t, err)
}

func TestCreateAppliesConfigDefaults(t *testing.T) {
	dir := t.TempDir()

	defFile := filepath.Join(dir, "users.def")
	require.NoError(t, os.WriteFile(defFile, []byte(
		"CREATE TABLE users (\n  id INT64,\n  PRIMARY KEY (id)\n)\n"), 0o644))

	cfgFile := filepath.Join(dir, "flintctl.jsonc")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`{"default_storage": "memory"}`), 0o644))

	tablePath := filepath.Join(dir, "users.tbl")

	out, errOut, code := runCLI(t, "create", tablePath, "--def", defFile, "--config", cfgFile)
	require.Equal(t, 0, code)
	require.Empty(t, errOut)
	require.Contains(t, out, "created")
}

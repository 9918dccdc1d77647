package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/growbot/internal/storage/file"
	"github.com/cory-johannsen/growbot/internal/storage/record"
)

const legacyDoc = `{"42": {"name":"Alice","size":7,"last":1000}}`

func TestMigrate_ConvertsLegacyFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "42.json")
	require.NoError(t, os.WriteFile(input, []byte(legacyDoc), 0o644))

	res, err := file.Migrate(input, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entries)
	assert.Equal(t, filepath.Join(dir, record.HashName("42")+".dat"), res.Output)
	assert.Equal(t, filepath.Join(dir, "42.json.bak"), res.Backup)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	scope, err := record.BinaryCodec{}.Decode(data)
	require.NoError(t, err)
	require.Len(t, scope, 1)
	assert.Equal(t, int16(7), scope[42].Score)
	assert.Equal(t, "Alice", scope[42].Name)

	backup, err := os.ReadFile(res.Backup)
	require.NoError(t, err)
	assert.Equal(t, legacyDoc, string(backup))

	_, err = os.Stat(input)
	assert.True(t, errors.Is(err, os.ErrNotExist), "original must be removed")
}

func TestMigrate_OutputIsReadableByStore(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "-100500.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"1": {"name":"Bob","size":-3,"last":20}}`), 0o644))

	_, err := file.Migrate(input, zaptest.NewLogger(t))
	require.NoError(t, err)

	s := file.NewStore(dir, record.FormatBinary, zaptest.NewLogger(t))
	scope, err := s.Load(context.Background(), -100500)
	require.NoError(t, err)
	assert.Equal(t, record.Scope{1: {Name: "Bob", Score: -3, LastAttempt: 20}}, scope)
}

func TestMigrate_MissingFile(t *testing.T) {
	_, err := file.Migrate(filepath.Join(t.TempDir(), "nope.json"), zaptest.NewLogger(t))
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestMigrate_InvalidJSONLeavesInputUntouched(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "42.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"42": oops}`), 0o644))

	_, err := file.Migrate(input, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, record.ErrParse)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "42.json", entries[0].Name())
}

func TestMigrate_SchemaMismatchIsParseError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "42.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"42": {"name":1,"size":7,"last":1000}}`), 0o644))

	_, err := file.Migrate(input, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, record.ErrParse)
	_, statErr := os.Stat(input)
	assert.NoError(t, statErr)
}

func TestMigrate_BackupFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "42.json")
	require.NoError(t, os.WriteFile(input, []byte(legacyDoc), 0o644))
	// A directory in the backup's place makes the backup write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "42.json.bak"), 0o755))

	_, err := file.Migrate(input, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, record.ErrIO)

	_, err = os.Stat(input)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, record.HashName("42")+".dat"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMigrateDir_MigratesEveryJSONFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.json"), []byte(legacyDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.json.bak"), []byte(`{}`), 0o644))

	results, err := file.MigrateDir(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Entries)
	assert.Equal(t, 1, results[1].Entries)

	for _, stem := range []string{"1", "2"} {
		_, err := os.Stat(filepath.Join(dir, record.HashName(stem)+".dat"))
		assert.NoError(t, err)
	}
	_, err = os.Stat(filepath.Join(dir, "3.json.bak"))
	assert.NoError(t, err, "existing backups are left alone")
}

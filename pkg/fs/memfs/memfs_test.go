// SPDX-License-Identifier: Apache-2.0

package memfs_test

import (
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propanedb/propane/pkg/fs/memfs"
)

func writeFile(t *testing.T, f *memfs.FS, path, content string) {
	t.Helper()
	w, err := f.Write(path)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestWriteThenRead(t *testing.T) {
	f := memfs.New()
	writeFile(t, f, "migrations/001/info.json", `{"from_name":null}`)

	r, err := f.Read("migrations/001/info.json")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, `{"from_name":null}`, string(data))
}

func TestReadMissingFileReturnsNotExist(t *testing.T) {
	f := memfs.New()
	_, err := f.Read("nope.json")
	require.Error(t, err)

	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.True(t, errors.Is(pathErr.Err, fs.ErrNotExist))
}

func TestListDirMissingDirReturnsNotExist(t *testing.T) {
	f := memfs.New()
	_, err := f.ListDir("migrations")
	require.Error(t, err)

	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.True(t, errors.Is(pathErr.Err, fs.ErrNotExist))
}

func TestEnsureDirThenListDir(t *testing.T) {
	f := memfs.New()
	require.NoError(t, f.EnsureDir("migrations/001"))
	writeFile(t, f, "migrations/001/a.table", "a")
	writeFile(t, f, "migrations/001/b.table", "b")

	entries, err := f.ListDir("migrations/001")
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/001/a.table", "migrations/001/b.table"}, entries)
}

func TestWriteCreatesParentDirsImplicitly(t *testing.T) {
	f := memfs.New()
	writeFile(t, f, "migrations/002/info.json", "{}")

	entries, err := f.ListDir("migrations/002")
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/002/info.json"}, entries)

	entries, err = f.ListDir("migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/002"}, entries)
}

func TestWriteOverwritesExistingFile(t *testing.T) {
	f := memfs.New()
	writeFile(t, f, "state.json", `{"latest":null}`)
	writeFile(t, f, "state.json", `{"latest":"001"}`)

	r, err := f.Read("state.json")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, `{"latest":"001"}`, string(data))
}

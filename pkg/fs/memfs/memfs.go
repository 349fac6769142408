// SPDX-License-Identifier: Apache-2.0

// Package memfs is an in-memory fs.FS test double: a stateful tree of
// files held in a map, guarded by a mutex even though the engine itself
// is single-threaded (spec.md §5) so that tests may safely share one
// instance across goroutines (e.g. t.Parallel subtests).
package memfs

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"sync"

	pfs "github.com/propanedb/propane/pkg/fs"
)

// FS is a stateful, shared, in-memory filesystem double. Multiple
// migration chain records referring to the same *FS observe each
// other's writes, matching spec.md §3's "shared ownership of the
// filesystem handle" note.
type FS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

var _ pfs.FS = (*FS)(nil)

// New returns an empty in-memory filesystem.
func New() *FS {
	return &FS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{".": true},
	}
}

func clean(p string) string {
	return path.Clean(p)
}

func (f *FS) EnsureDir(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[clean(dir)] = true
	return nil
}

func (f *FS) ListDir(dir string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir = clean(dir)
	if !f.dirs[dir] {
		return nil, &fs.PathError{Op: "listdir", Path: dir, Err: fs.ErrNotExist}
	}

	seen := make(map[string]bool)
	var out []string
	for p := range f.files {
		if path.Dir(p) == dir && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for p := range f.dirs {
		if p != dir && path.Dir(p) == dir && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *FS) Write(p string) (io.WriteCloser, error) {
	p = clean(p)
	return &memWriter{fsys: f, path: p, buf: &bytes.Buffer{}}, nil
}

func (f *FS) Read(p string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p = clean(p)
	data, ok := f.files[p]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memWriter struct {
	fsys *FS
	path string
	buf  *bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.fsys.mu.Lock()
	defer w.fsys.mu.Unlock()
	w.fsys.files[w.path] = w.buf.Bytes()
	dir := path.Dir(w.path)
	for dir != "." && dir != "/" {
		w.fsys.dirs[dir] = true
		dir = path.Dir(dir)
	}
	w.fsys.dirs["."] = true
	return nil
}

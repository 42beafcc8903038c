// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors/oserror"
)

// MemFS is an in-memory FS, used by every test in this repository instead
// of touching the real filesystem. Paths are tracked in a flat map keyed
// by their cleaned form, since this core never needs directory handles,
// symlinks or crash-cloning.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
	locks map[string]struct{}
}

// NewMem returns a new memory-backed FS.
func NewMem() *MemFS {
	return &MemFS{files: make(map[string]*memFile), locks: make(map[string]struct{})}
}

type memFile struct {
	mu      sync.Mutex
	data    []byte
	modTime time.Time
}

func clean(name string) string {
	return strings.TrimSuffix(name, "/")
}

// Create implements FS.
func (fs *MemFS) Create(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = clean(name)
	f := &memFile{modTime: time.Now()}
	fs.files[name] = f
	return &memFileHandle{f: f, fs: fs, name: name}, nil
}

// Open implements FS.
func (fs *MemFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = clean(name)
	f, ok := fs.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return &memFileHandle{f: f, fs: fs, name: name, readOnly: true}, nil
}

// Remove implements FS.
func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = clean(name)
	if _, ok := fs.files[name]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(fs.files, name)
	return nil
}

// Rename implements FS.
func (fs *MemFS) Rename(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	oldname, newname = clean(oldname), clean(newname)
	f, ok := fs.files[oldname]
	if !ok {
		return &os.PathError{Op: "rename", Path: oldname, Err: os.ErrNotExist}
	}
	fs.files[newname] = f
	delete(fs.files, oldname)
	return nil
}

// MkdirAll implements FS. MemFS has no real directory nodes, so this is a
// no-op.
func (fs *MemFS) MkdirAll(dir string, _ os.FileMode) error {
	return nil
}

// List implements FS, returning the base names of every file whose path is
// directly within dir.
func (fs *MemFS) List(dir string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dir = clean(dir)
	prefix := dir + "/"
	seen := make(map[string]bool)
	var out []string
	for name := range fs.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		base := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			base = rest[:i]
		}
		if !seen[base] {
			seen[base] = true
			out = append(out, base)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stat implements FS.
func (fs *MemFS) Stat(name string) (os.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = clean(name)
	f, ok := fs.files[name]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return memFileInfo{name: fs.PathBase(name), size: int64(len(f.data)), modTime: f.modTime}, nil
}

// PathJoin implements FS. Like filepath.Join, the result is rooted when
// the first non-empty element is.
func (fs *MemFS) PathJoin(elem ...string) string {
	var parts []string
	rooted, seen := false, false
	for _, e := range elem {
		if e == "" {
			continue
		}
		if !seen {
			rooted, seen = strings.HasPrefix(e, "/"), true
		}
		if t := strings.Trim(e, "/"); t != "" {
			parts = append(parts, t)
		}
	}
	joined := strings.Join(parts, "/")
	if rooted {
		return "/" + joined
	}
	return joined
}

// PathDir implements FS.
func (fs *MemFS) PathDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "."
	}
	return p[:i]
}

// PathBase implements FS.
func (fs *MemFS) PathBase(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return p
	}
	return p[i+1:]
}

// Lock implements FS with a simple in-process advisory lock.
func (fs *MemFS) Lock(name string) (io.Closer, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = clean(name)
	if _, held := fs.locks[name]; held {
		return nil, errAlreadyLocked(name)
	}
	fs.locks[name] = struct{}{}
	return &memLock{fs: fs, name: name}, nil
}

type errAlreadyLocked string

func (e errAlreadyLocked) Error() string { return "vfs: already locked: " + string(e) }

type memLock struct {
	fs   *MemFS
	name string
}

func (l *memLock) Close() error {
	l.fs.mu.Lock()
	defer l.fs.mu.Unlock()
	delete(l.fs.locks, l.name)
	return nil
}

type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() os.FileMode  { return 0644 }
func (fi memFileInfo) ModTime() time.Time { return fi.modTime }
func (fi memFileInfo) IsDir() bool        { return false }
func (fi memFileInfo) Sys() interface{}   { return nil }

type memFileHandle struct {
	f        *memFile
	fs       *MemFS
	name     string
	readOnly bool
	off      int64
}

func (h *memFileHandle) Read(p []byte) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if h.off >= int64(len(h.f.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.f.data[h.off:])
	h.off += int64(n)
	return n, nil
}

func (h *memFileHandle) ReadAt(p []byte, off int64) (int, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if off >= int64(len(h.f.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *memFileHandle) Write(p []byte) (int, error) {
	if h.readOnly {
		return 0, oserror.ErrPermission
	}
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	h.f.data = append(h.f.data[:h.off], p...)
	h.off += int64(len(p))
	h.f.modTime = time.Now()
	return len(p), nil
}

func (h *memFileHandle) Close() error { return nil }

func (h *memFileHandle) Sync() error { return nil }

func (h *memFileHandle) Stat() (os.FileInfo, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	return memFileInfo{name: h.fs.PathBase(h.name), size: int64(len(h.f.data)), modTime: h.f.modTime}, nil
}

var _ File = (*memFileHandle)(nil)
var _ io.ReaderAt = (*memFileHandle)(nil)

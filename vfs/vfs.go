// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package vfs provides the filesystem abstraction consumed by this core,
// trimmed to the operations the manifest, cleanup and walmgr packages
// actually call.
package vfs

import (
	"io"
	"os"
	"path/filepath"
	"time"
)

// File is an open file handle, matching the subset of *os.File this package
// needs.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	Stat() (os.FileInfo, error)
	Sync() error
}

// FS is the filesystem abstraction this core consumes from its
// environment, restricted to the operations it performs plus the
// directory/rename helpers needed to implement archival and recycling.
type FS interface {
	// Create creates the named file for writing, truncating it if it
	// already exists.
	Create(name string) (File, error)
	// Open opens the named file for reading.
	Open(name string) (File, error)
	// Remove deletes the named file.
	Remove(name string) error
	// Rename renames oldname to newname, replacing newname if it exists.
	Rename(oldname, newname string) error
	// MkdirAll creates a directory and any missing parents.
	MkdirAll(dir string, perm os.FileMode) error
	// List returns the children of dir.
	List(dir string) ([]string, error)
	// Stat returns file info for name, or an error satisfying
	// oserror.IsNotExist if it does not exist.
	Stat(name string) (os.FileInfo, error)
	// PathJoin, PathDir and PathBase mirror filepath.Join/Dir/Base, kept on
	// the interface so MemFS can use '/' regardless of host OS.
	PathJoin(elem ...string) string
	PathDir(path string) string
	PathBase(path string) string
	// Lock acquires an exclusive file lock, returning a Closer that
	// releases it.
	Lock(name string) (io.Closer, error)
}

// Clock is the wall-time seam behind NowMicros. It is a
// separate, tiny interface so tests can inject a fake clock without faking
// the rest of FS.
type Clock interface {
	NowMicros() int64
}

// SystemClock reports wall-clock time via time.Now.
type SystemClock struct{}

// NowMicros implements Clock.
func (SystemClock) NowMicros() int64 {
	return time.Now().UnixMicro()
}

// Default is the disk-backed FS, wrapping the os package.
var Default FS = diskFS{}

type diskFS struct{}

func (diskFS) Create(name string) (File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
}

func (diskFS) Open(name string) (File, error) {
	return os.Open(name)
}

func (diskFS) Remove(name string) error {
	return os.Remove(name)
}

func (diskFS) Rename(oldname, newname string) error {
	return os.Rename(oldname, newname)
}

func (diskFS) MkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

func (diskFS) List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func (diskFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (diskFS) PathJoin(elem ...string) string { return filepath.Join(elem...) }
func (diskFS) PathDir(path string) string     { return filepath.Dir(path) }
func (diskFS) PathBase(path string) string    { return filepath.Base(path) }

// Lock opens the named file, creating it if needed, and returns it as the
// Closer. It takes no OS-level lock on the file.
func (diskFS) Lock(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

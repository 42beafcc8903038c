// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import "github.com/YF-CHAI/rocksdb-2pc/internal/base"

// Cleaner disposes of an obsolete file, either by deleting it or archiving
// it somewhere it can still be recovered from.
type Cleaner interface {
	Clean(fs FS, fileType base.FileType, path string) error
	String() string
}

// DeleteCleaner deletes the file outright.
type DeleteCleaner struct{}

// Clean implements Cleaner.
func (DeleteCleaner) Clean(fs FS, _ base.FileType, path string) error {
	return fs.Remove(path)
}

// String implements Cleaner.
func (DeleteCleaner) String() string { return "delete" }

// ArchiveCleaner moves logs, manifests and tables into an "archive"
// subdirectory instead of deleting them.
type ArchiveCleaner struct{}

// Clean implements Cleaner.
func (ArchiveCleaner) Clean(fs FS, fileType base.FileType, path string) error {
	switch fileType {
	case base.FileTypeLog, base.FileTypeDescriptor, base.FileTypeTable:
		destDir := fs.PathJoin(fs.PathDir(path), "archive")
		if err := fs.MkdirAll(destDir, 0755); err != nil {
			return err
		}
		destPath := fs.PathJoin(destDir, fs.PathBase(path))
		return fs.Rename(path, destPath)
	default:
		return fs.Remove(path)
	}
}

// String implements Cleaner.
func (ArchiveCleaner) String() string { return "archive" }

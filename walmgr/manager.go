// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package walmgr

import (
	"github.com/cockroachdb/errors"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
)

// Manager archives retired WAL files to a separate directory instead of
// deleting them outright, and purges archived logs numbered below a
// caller-given floor. It implements cleanup.WALArchiver.
type Manager struct {
	FS         vfs.FS
	ArchiveDir string
	Recycler   *LogRecycler
}

// NewManager creates a Manager archiving into archiveDir, creating it if
// necessary.
func NewManager(fs vfs.FS, archiveDir string) (*Manager, error) {
	if err := fs.MkdirAll(archiveDir, 0755); err != nil {
		return nil, err
	}
	return &Manager{FS: fs, ArchiveDir: archiveDir}, nil
}

// ArchiveWALFile implements cleanup.WALArchiver: it moves the log at path
// into m.ArchiveDir rather than deleting it.
func (m *Manager) ArchiveWALFile(fs vfs.FS, path string, number base.FileNum) error {
	dst := fs.PathJoin(m.ArchiveDir, fs.PathBase(path))
	if err := fs.Rename(path, dst); err != nil {
		return errors.Wrapf(err, "walmgr: archiving %s", path)
	}
	return nil
}

// PurgeObsoleteWALFiles deletes archived logs numbered below keepBelow,
// the WAL-manager-side counterpart of cleanup.ObsoleteFileResolver for
// files already moved into the archive directory.
func (m *Manager) PurgeObsoleteWALFiles(keepBelow base.FileNum) error {
	names, err := m.FS.List(m.ArchiveDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		fileType, fileNum, ok := base.ParseFilename(name)
		if !ok || fileType != base.FileTypeLog || fileNum >= keepBelow {
			continue
		}
		path := m.FS.PathJoin(m.ArchiveDir, name)
		if err := m.FS.Remove(path); err != nil {
			return errors.Wrapf(err, "walmgr: purging %s", path)
		}
	}
	return nil
}

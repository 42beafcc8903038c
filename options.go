// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rocksdb2pc wires the version and file-lifecycle core together:
// version bookkeeping (internal/manifest), obsolete-file resolution
// (internal/cleanup), two-phase-commit WAL retention (internal/twophase)
// and the WAL recycler (walmgr), all serialised by one global mutex.
package rocksdb2pc

import (
	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/cleanup"
	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
)

// DBPath exports the cleanup.PathSpec type.
type DBPath = cleanup.PathSpec

// CompactionOptions2PC configures the file-slice machinery.
type CompactionOptions2PC struct {
	// StartLevel is the first level at which compactions may emit file
	// slices instead of rewriting their inputs.
	StartLevel int
	// MergeThreshold is the slice fan-out above which the builder schedules
	// a deferred merge of the carrying file's key range.
	MergeThreshold int
}

// Options holds the configuration recognised by this core. The zero value,
// after EnsureDefaults, is a usable configuration on the disk-backed
// vfs.Default filesystem.
type Options struct {
	// FS is the filesystem the core lists, deletes and renames through.
	FS vfs.FS
	// Compare orders user keys. Defaults to base.DefaultCompare.
	Compare base.Compare
	// Logger receives info and error lines from the resolver.
	Logger base.Logger
	// Cleaner disposes of obsolete files; vfs.ArchiveCleaner retains them
	// in an archive subdirectory instead.
	Cleaner vfs.Cleaner
	// EventListener receives file-deletion notifications.
	EventListener cleanup.EventListener
	// TableOpener, if set, is used to open table readers for newly
	// installed versions.
	TableOpener manifest.TableOpener
	// TableLoaderThreads bounds the parallel table-handle loader.
	TableLoaderThreads int

	// NumLevels is the number of LSM levels. Defaults to 7.
	NumLevels int

	// DeleteObsoleteFilesPeriodMicros is the minimum interval between full
	// filesystem scans; 0 scans on every call.
	DeleteObsoleteFilesPeriodMicros int64
	// RecycleLogFileNum caps the WALs retained for recycling.
	RecycleLogFileNum int
	// WALTTLSeconds and WALSizeLimitMB, when either is non-zero, route
	// retired WALs to archival instead of deletion.
	WALTTLSeconds  int64
	WALSizeLimitMB int64
	// KeepLogFileNum is the info-log retention count. Defaults to 1000.
	KeepLogFileNum int

	// DBPaths are the configured data directories; FileMetadata.PathID
	// indexes into this list.
	DBPaths []DBPath
	// WALDir holds write-ahead logs; DBLogDir holds info logs. Either may
	// be empty to mean the first data path.
	WALDir   string
	DBLogDir string
	// InfoLogPrefix names this instance's info-log files within DBLogDir.
	InfoLogPrefix string

	CompactionOptions2PC CompactionOptions2PC

	// ForceConsistencyChecks enables version consistency checking in
	// release builds.
	ForceConsistencyChecks bool
	// Allow2PC enables the prepared-transaction WAL retention machinery.
	Allow2PC bool
}

// EnsureDefaults fills in unset fields and returns the receiver for
// chaining.
func (o *Options) EnsureDefaults() *Options {
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Compare == nil {
		o.Compare = base.DefaultCompare
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	if o.Cleaner == nil {
		o.Cleaner = vfs.DeleteCleaner{}
	}
	if o.NumLevels == 0 {
		o.NumLevels = 7
	}
	if o.KeepLogFileNum == 0 {
		o.KeepLogFileNum = 1000
	}
	if o.TableLoaderThreads == 0 {
		o.TableLoaderThreads = 4
	}
	if o.CompactionOptions2PC.MergeThreshold == 0 {
		o.CompactionOptions2PC.MergeThreshold = manifest.DefaultMergeThreshold
	}
	return o
}

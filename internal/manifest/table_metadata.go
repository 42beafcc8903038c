// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manifest implements the version and file-lifecycle core of an
// LSM storage engine: the metadata describing which immutable sorted
// table files constitute a database snapshot, how incremental edits
// produced by flushes and compactions combine into new snapshots, and
// when on-disk files become safe to delete.
package manifest

import (
	"fmt"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/cockroachdb/errors"
)

// FileNum identifies a table file; re-exported from base so callers don't
// need to import both packages for the common case.
type FileNum = base.FileNum

// TableHandle is an opaque handle onto an open table reader, owned by the
// external table cache. FileMetadata caches one so hot reads can skip the
// cache lookup; Release returns it to the cache.
type TableHandle interface {
	Release()
}

// FileMetadata describes one immutable SST.
type FileMetadata struct {
	// FileNum is the unique, monotonically assigned identifier for this
	// table.
	FileNum FileNum
	// PathID selects which configured storage directory holds the file.
	PathID int
	// Size is the file's size in bytes.
	Size uint64

	// Smallest and Largest are the internal key bounds of the file.
	Smallest, Largest base.InternalKey
	// SmallestSeqNum and LargestSeqNum are the sequence number bounds.
	SmallestSeqNum, LargestSeqNum base.SeqNum

	// refs counts the snapshots that reference this file directly (i.e.
	// it is listed in some level or in the frozen set). Guarded by the
	// caller's global mutex.
	refs int32
	// sliceRefs counts FileSlices, carved from this file, that are
	// referenced by some level in some live snapshot. Also guarded by
	// the global mutex.
	sliceRefs int32

	// FileSlices holds the slices logically carving this file, ordered
	// by the order they were attached.
	FileSlices []*FileSlice

	// reader is the cached table-reader handle, or nil if never opened
	// or if opening failed.
	reader TableHandle
	// OpenErr records a table-cache open failure:
	// the loader never aborts, it stashes the error here for the reader
	// to observe later.
	OpenErr error
}

// String renders the file number and key range for log lines and test
// failure messages.
func (f *FileMetadata) String() string {
	return fmt.Sprintf("%s:[%s-%s]", f.FileNum, f.Smallest, f.Largest)
}

// Refs returns the current snapshot reference count.
func (f *FileMetadata) Refs() int32 { return f.refs }

// SliceRefs returns the current slice reference count.
func (f *FileMetadata) SliceRefs() int32 { return f.sliceRefs }

// Ref increments the snapshot reference count. Called once per snapshot
// that lists this file at some level or in its frozen set.
func (f *FileMetadata) Ref() { f.refs++ }

// Unref decrements the snapshot reference count. If it and SliceRefs both
// reach zero, the cached table-reader handle is released back to the
// table cache before the metadata becomes eligible for collection.
func (f *FileMetadata) Unref() {
	if f.refs <= 0 {
		panic(errors.AssertionFailedf("manifest: over-unref of file %s", f.FileNum))
	}
	f.refs--
	f.maybeReleaseHandle()
}

// RefSlice increments the slice reference count, called once per FileSlice
// carved from this file that's attached to a live level.
func (f *FileMetadata) RefSlice() { f.sliceRefs++ }

// UnrefSlice decrements the slice reference count.
func (f *FileMetadata) UnrefSlice() {
	if f.sliceRefs <= 0 {
		panic(errors.AssertionFailedf("manifest: over-unref of file %s slice_refs", f.FileNum))
	}
	f.sliceRefs--
	f.maybeReleaseHandle()
}

func (f *FileMetadata) maybeReleaseHandle() {
	if f.refs == 0 && f.sliceRefs == 0 && f.reader != nil {
		f.reader.Release()
		f.reader = nil
	}
}

// Deletable reports whether both reference counts have reached zero,
// i.e. the file (and its on-disk SST) may be freed.
func (f *FileMetadata) Deletable() bool {
	return f.refs == 0 && f.sliceRefs == 0
}

// SetReader installs a freshly opened table-reader handle, releasing any
// handle it replaces.
func (f *FileMetadata) SetReader(h TableHandle) {
	if f.reader != nil {
		f.reader.Release()
	}
	f.reader = h
	f.OpenErr = nil
}

// Reader returns the cached table-reader handle, or nil.
func (f *FileMetadata) Reader() TableHandle { return f.reader }

// IsIngested reports whether this file was produced by an external
// ingestion rather than a flush or compaction, identified by
// smallest_seqno == largest_seqno.
func (f *FileMetadata) IsIngested() bool {
	return f.SmallestSeqNum == f.LargestSeqNum
}

// Validate checks the per-file invariants: smallest <= largest under the
// internal key comparator, smallest_seqno <= largest_seqno, and both
// reference counts non-negative.
func (f *FileMetadata) Validate(cmp base.Compare) error {
	if base.InternalCompare(cmp, f.Smallest, f.Largest) > 0 {
		return errors.Errorf("manifest: file %s has smallest > largest", f.FileNum)
	}
	if f.SmallestSeqNum > f.LargestSeqNum {
		return errors.Errorf("manifest: file %s has smallest_seqno > largest_seqno", f.FileNum)
	}
	if f.refs < 0 || f.sliceRefs < 0 {
		return errors.Errorf("manifest: file %s has negative reference count", f.FileNum)
	}
	return nil
}

// FileSlice is a half-open or closed sub-range of a parent file, letting
// a new level logically claim part of an SST without rewriting it.
type FileSlice struct {
	// Parent is the file this slice carves a sub-range from.
	Parent *FileMetadata
	// Smallest and Largest are the slice's internal key bounds; Largest
	// is always inclusive.
	Smallest, Largest base.InternalKey
	// IsContainSmallest records whether Smallest is an inclusive bound of
	// the slice (as opposed to the slice starting strictly after it).
	IsContainSmallest bool
	// OutputFileNum is the file number this slice is logically assigned
	// to at its level.
	OutputFileNum FileNum
}

// Validate checks that the slice's bounds are ordered and fall within
// its parent's key range.
func (s *FileSlice) Validate(cmp base.Compare) error {
	if s.Parent == nil {
		return errors.Errorf("manifest: file slice has no parent")
	}
	if base.InternalCompare(cmp, s.Smallest, s.Largest) > 0 {
		return errors.Errorf("manifest: file slice has smallest > largest")
	}
	if base.InternalCompare(cmp, s.Smallest, s.Parent.Smallest) < 0 ||
		base.InternalCompare(cmp, s.Largest, s.Parent.Largest) > 0 {
		return errors.Errorf("manifest: file slice [%s,%s] escapes parent %s's range",
			s.Smallest, s.Largest, s.Parent.FileNum)
	}
	return nil
}

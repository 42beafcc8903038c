// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import "github.com/cockroachdb/errors"

// DeletedFileEntry names a file removed from a level. The file may still be
// referenced by another level (a "move" is expressed as a delete plus an
// add at a different level within the same edit).
type DeletedFileEntry struct {
	Level   int
	FileNum FileNum
}

// NewFileEntry names a file added to, or moved into, a level.
type NewFileEntry struct {
	Level int
	Meta  *FileMetadata
}

// NewSliceEntry names a FileSlice added at a level. The builder groups
// entries by Slice.OutputFileNum, the file the slice is logically
// assigned to.
type NewSliceEntry struct {
	Level int
	Slice *FileSlice
}

// VersionEdit is a delta between two consecutive VersionStorage
// snapshots. Edits are additive records applied in submission order; an
// edit must not delete and add the same file number at the same level.
type VersionEdit struct {
	DeletedFiles  []DeletedFileEntry
	NewFiles      []NewFileEntry
	MovedFiles    []NewFileEntry
	NewFileSlices []NewSliceEntry

	// MinUnflushedLogNum and ManifestFileNum are carried through
	// unmodified by the builder; they're read by the WAL-retention and
	// manifest machinery around the version set.
	MinUnflushedLogNum FileNum
	ManifestFileNum    FileNum
}

// DeleteFile records the deletion of fileNum from level.
func (e *VersionEdit) DeleteFile(level int, fileNum FileNum) {
	e.DeletedFiles = append(e.DeletedFiles, DeletedFileEntry{Level: level, FileNum: fileNum})
}

// AddFile records the addition of meta to level.
func (e *VersionEdit) AddFile(level int, meta *FileMetadata) {
	e.NewFiles = append(e.NewFiles, NewFileEntry{Level: level, Meta: meta})
}

// MoveToFrozen records that meta, previously live at level, should become a
// frozen file after this edit applies.
func (e *VersionEdit) MoveToFrozen(level int, meta *FileMetadata) {
	e.MovedFiles = append(e.MovedFiles, NewFileEntry{Level: level, Meta: meta})
}

// AddFileSlice records a new FileSlice at level.
func (e *VersionEdit) AddFileSlice(level int, slice *FileSlice) {
	e.NewFileSlices = append(e.NewFileSlices, NewSliceEntry{Level: level, Slice: slice})
}

// Validate checks the edit's internal consistency: no file number may be
// deleted twice from the same level, nor appear in both add and delete for
// the same level. Move-to-frozen records and slice additions are not
// checked.
func (e *VersionEdit) Validate() error {
	deleted := make(map[DeletedFileEntry]struct{}, len(e.DeletedFiles))
	for _, d := range e.DeletedFiles {
		if _, dup := deleted[d]; dup {
			return errors.Errorf("manifest: L%d.%s deleted twice in one edit", d.Level, d.FileNum)
		}
		deleted[d] = struct{}{}
	}
	for _, nf := range e.NewFiles {
		if _, ok := deleted[DeletedFileEntry{Level: nf.Level, FileNum: nf.Meta.FileNum}]; ok {
			return errors.Errorf("manifest: L%d.%s both added and deleted in one edit",
				nf.Level, nf.Meta.FileNum)
		}
	}
	return nil
}

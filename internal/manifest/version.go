// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"sort"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/invariants"
	"github.com/cockroachdb/errors"
)

// LevelStats aggregates per-level statistics, maintained incrementally by
// AddFile/RemoveCurrentStats.
type LevelStats struct {
	NumFiles int
	NumBytes uint64
}

// VersionStorage is one immutable snapshot of the database's file set.
// Once handed to readers it is logically immutable; Builder.SaveTo is the
// only place that should construct one by mutating it while it is still
// private.
type VersionStorage struct {
	cmp       base.Compare
	numLevels int

	// levels holds, for levels 0..numLevels-1, the ordered set of files
	// live at that level.
	levels [][]*FileMetadata
	// stats mirrors levels: aggregate byte size and file count per level.
	stats []LevelStats

	// frozen holds files physically still present because slices of them
	// appear in some level, but which are no longer themselves listed at
	// any level.
	frozen map[FileNum]*FileMetadata

	// versionNumber is a monotonically increasing identifier assigned by
	// the owning version set.
	versionNumber int64

	// forceConsistencyChecks enables CheckConsistency outside invariant
	// builds.
	forceConsistencyChecks bool
}

// NewVersionStorage creates an empty VersionStorage with numLevels levels.
func NewVersionStorage(numLevels int, cmp base.Compare) *VersionStorage {
	return &VersionStorage{
		cmp:       cmp,
		numLevels: numLevels,
		levels:    make([][]*FileMetadata, numLevels),
		stats:     make([]LevelStats, numLevels),
		frozen:    make(map[FileNum]*FileMetadata),
	}
}

// NumLevels returns the number of levels L.
func (vs *VersionStorage) NumLevels() int { return vs.numLevels }

// VersionNumber returns the monotonic snapshot identifier.
func (vs *VersionStorage) VersionNumber() int64 { return vs.versionNumber }

// SetVersionNumber sets the monotonic snapshot identifier; called by the
// owning version set when it seals a newly built storage.
func (vs *VersionStorage) SetVersionNumber(n int64) { vs.versionNumber = n }

// SetForceConsistencyChecks toggles Options.force_consistency_checks.
func (vs *VersionStorage) SetForceConsistencyChecks(v bool) { vs.forceConsistencyChecks = v }

// LevelFiles returns the ordered file set for level.
func (vs *VersionStorage) LevelFiles(level int) []*FileMetadata {
	return vs.levels[level]
}

// NumLevelFiles returns the number of files at level.
func (vs *VersionStorage) NumLevelFiles(level int) int {
	return len(vs.levels[level])
}

// LevelStats returns the aggregate statistics for level.
func (vs *VersionStorage) LevelStats(level int) LevelStats {
	return vs.stats[level]
}

// FrozenFiles returns the frozen-file set: files retained on disk solely
// because FileSlices carved from them remain live.
func (vs *VersionStorage) FrozenFiles() map[FileNum]*FileMetadata {
	return vs.frozen
}

// Reserve pre-allocates capacity for level's file slice ahead of a merge
// whose output size is known.
func (vs *VersionStorage) Reserve(level int, capacity int) {
	if cap(vs.levels[level]) >= capacity {
		return
	}
	grown := make([]*FileMetadata, len(vs.levels[level]), capacity)
	copy(grown, vs.levels[level])
	vs.levels[level] = grown
}

// AddFile inserts f into level, maintaining the level's sort order.
// Builder.SaveTo also uses it, feeding files in already-sorted merge order
// so that each insert lands at the end of the level.
func (vs *VersionStorage) AddFile(level int, f *FileMetadata) {
	less := levelLess(vs.cmp, level)
	files := vs.levels[level]
	i := sort.Search(len(files), func(i int) bool { return !less(files[i], f) })
	files = append(files, nil)
	copy(files[i+1:], files[i:])
	files[i] = f
	vs.levels[level] = files
	vs.stats[level].NumFiles++
	vs.stats[level].NumBytes += f.Size
}

// AddFrozenFile inserts f into the frozen set under fnum, asserting that
// a frozen file always has live slice references.
func (vs *VersionStorage) AddFrozenFile(fnum FileNum, f *FileMetadata) {
	if f.SliceRefs() <= 0 {
		panic(errors.AssertionFailedf("manifest: frozen file %s has slice_refs <= 0", fnum))
	}
	vs.frozen[fnum] = f
}

// AddFileSlice attaches slice to f (which must already be a member of
// level), incrementing the parent's slice_refs, and advances *lastFile to
// f. lastFile lets the caller (Builder.maybeAddFile) track merge
// adjacency without a second pass over the level.
func (vs *VersionStorage) AddFileSlice(level int, f *FileMetadata, slice *FileSlice, lastFile **FileMetadata) {
	f.FileSlices = append(f.FileSlices, slice)
	slice.Parent.RefSlice()
	if lastFile != nil {
		*lastFile = f
	}
}

// RemoveCurrentStats removes f's contribution to level's aggregate
// statistics. Builder.SaveTo does not call it: deleted and frozen files
// are never added to the new storage, so they contribute nothing to its
// stats.
func (vs *VersionStorage) RemoveCurrentStats(level int, f *FileMetadata) {
	vs.stats[level].NumFiles--
	vs.stats[level].NumBytes -= f.Size
}

// LiveFileNums returns the set of file numbers considered live by this
// snapshot alone: every file listed at any level, plus the parents of
// every slice at any level, plus the frozen set.
func (vs *VersionStorage) LiveFileNums(dst map[FileNum]struct{}) {
	for level := 0; level < vs.numLevels; level++ {
		for _, f := range vs.levels[level] {
			dst[f.FileNum] = struct{}{}
			for _, s := range f.FileSlices {
				dst[s.Parent.FileNum] = struct{}{}
			}
		}
	}
	for fnum := range vs.frozen {
		dst[fnum] = struct{}{}
	}
}

// CheckConsistency verifies the per-level ordering and frozen-set
// invariants. It always runs in invariants-tagged builds; in release
// builds it's a no-op unless force is true or the storage's
// force-consistency-checks flag (Options.ForceConsistencyChecks) is set. On
// violation it panics; these are invariant failures, not recoverable
// errors.
func (vs *VersionStorage) CheckConsistency(force bool) {
	if !invariants.Enabled && !force && !vs.forceConsistencyChecks {
		return
	}
	for level := 0; level < vs.numLevels; level++ {
		files := vs.levels[level]
		for i, f := range files {
			if err := f.Validate(vs.cmp); err != nil {
				panic(errors.Wrapf(err, "manifest: L%d", level))
			}
			if i == 0 {
				continue
			}
			prev := files[i-1]
			if level == 0 {
				checkL0Adjacent(prev, f)
			} else {
				checkSortedLevelAdjacent(vs.cmp, level, prev, f)
			}
		}
		seen := make(map[FileNum]bool, len(files))
		for _, f := range files {
			if seen[f.FileNum] {
				panic(errors.AssertionFailedf("manifest: file %s duplicated within L%d", f.FileNum, level))
			}
			seen[f.FileNum] = true
		}
	}
	// No file may appear on more than one level.
	seenLevel := make(map[FileNum]int)
	for level := 0; level < vs.numLevels; level++ {
		for _, f := range vs.levels[level] {
			if other, ok := seenLevel[f.FileNum]; ok {
				panic(errors.AssertionFailedf("manifest: file %s appears on both L%d and L%d", f.FileNum, other, level))
			}
			seenLevel[f.FileNum] = level
		}
	}
	// Frozen files must keep live slice references. AddFrozenFile enforces
	// this eagerly; it is re-checked here because callers may mutate
	// FileSlices after attaching a file to the frozen set.
	for fnum, f := range vs.frozen {
		if f.SliceRefs() <= 0 {
			panic(errors.AssertionFailedf("manifest: frozen file %s has slice_refs <= 0", fnum))
		}
	}
}

// checkL0Adjacent enforces the L0 sequence-number ordering rule for a
// newer-then-older adjacent pair (f1, f2).
func checkL0Adjacent(f1, f2 *FileMetadata) {
	if f2.IsIngested() && (f2.LargestSeqNum == 0 || f2.LargestSeqNum < f1.LargestSeqNum) {
		return
	}
	if f1.SmallestSeqNum > f2.SmallestSeqNum {
		return
	}
	panic(errors.AssertionFailedf(
		"manifest: L0 files %s and %s are not correctly ordered", f1.FileNum, f2.FileNum))
}

// checkSortedLevelAdjacent enforces non-overlap for levels above L0:
// f1.largest < f2.smallest, strictly.
func checkSortedLevelAdjacent(cmp base.Compare, level int, f1, f2 *FileMetadata) {
	if base.InternalCompare(cmp, f1.Largest, f2.Smallest) >= 0 {
		panic(errors.AssertionFailedf(
			"manifest: L%d files %s and %s overlap", level, f1.FileNum, f2.FileNum))
	}
}

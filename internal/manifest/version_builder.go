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

// levelStaging holds one level's worth of pending mutations accumulated by
// a Builder before SaveTo materialises them.
type levelStaging struct {
	deletedFiles     map[FileNum]struct{}
	addedFiles       map[FileNum]*FileMetadata
	addedFileSlices  map[FileNum][]*FileSlice // keyed by slice.OutputFileNum
	addedFrozenFiles map[FileNum]*FileMetadata
}

func newLevelStaging() levelStaging {
	return levelStaging{
		deletedFiles:     make(map[FileNum]struct{}),
		addedFiles:       make(map[FileNum]*FileMetadata),
		addedFileSlices:  make(map[FileNum][]*FileSlice),
		addedFrozenFiles: make(map[FileNum]*FileMetadata),
	}
}

// Builder accumulates a sequence of VersionEdits over a base VersionStorage
// and, via SaveTo, produces the next VersionStorage. A Builder is a
// single coherent type with private state; there is no separate public
// facade indirecting to it.
type Builder struct {
	base           *VersionStorage
	cmp            base.Compare
	numLevels      int
	mergeThreshold int
	mergeTasks     *MergeTaskSet

	levels []levelStaging

	// metrics, when set, accrues the size of files retired by applied
	// edits.
	metrics *CompactionMetrics

	// invalidAdds and hasInvalidLevels track bookkeeping for edits that
	// reference levels >= numLevels; such references are tolerated only
	// when they cancel out within the batch.
	invalidAdds      map[int]map[FileNum]struct{}
	hasInvalidLevels bool
}

// NewBuilder creates a Builder staging edits over base.
func NewBuilder(base *VersionStorage, cmp base.Compare, mergeTasks *MergeTaskSet, mergeThreshold int) *Builder {
	if mergeThreshold <= 0 {
		mergeThreshold = DefaultMergeThreshold
	}
	numLevels := base.NumLevels()
	b := &Builder{
		base:           base,
		cmp:            cmp,
		numLevels:      numLevels,
		mergeThreshold: mergeThreshold,
		mergeTasks:     mergeTasks,
		levels:         make([]levelStaging, numLevels),
		invalidAdds:    make(map[int]map[FileNum]struct{}),
	}
	for i := range b.levels {
		b.levels[i] = newLevelStaging()
	}
	return b
}

// SetMetrics attaches a compaction-input sink, replacing any previous one.
func (b *Builder) SetMetrics(m *CompactionMetrics) { b.metrics = m }

func (b *Builder) levelValid(level int) bool {
	return level >= 0 && level < b.numLevels
}

// Apply stages edit's mutations in a fixed order so that earlier
// mutations in the same edit cannot be undone by later ones:
// frozen-moves, then new slices, then deletes, then adds.
func (b *Builder) Apply(edit *VersionEdit) {
	// 1. Move-to-frozen.
	for _, mf := range edit.MovedFiles {
		if !b.levelValid(mf.Level) {
			if invariants.Enabled {
				panic(errors.AssertionFailedf("manifest: move-to-frozen on invalid level %d", mf.Level))
			}
			continue
		}
		b.levels[mf.Level].addedFrozenFiles[mf.Meta.FileNum] = mf.Meta
	}

	// 2. New slices.
	for _, ns := range edit.NewFileSlices {
		if !b.levelValid(ns.Level) {
			continue
		}
		st := &b.levels[ns.Level]
		out := ns.Slice.OutputFileNum
		st.addedFileSlices[out] = append(st.addedFileSlices[out], ns.Slice)
	}

	// 3. Deletes.
	for _, df := range edit.DeletedFiles {
		if !b.levelValid(df.Level) {
			if _, wasAdded := b.invalidAdds[df.Level][df.FileNum]; wasAdded {
				delete(b.invalidAdds[df.Level], df.FileNum)
			} else {
				b.hasInvalidLevels = true
			}
			continue
		}
		st := &b.levels[df.Level]
		st.deletedFiles[df.FileNum] = struct{}{}
		if !b.checkConsistencyForDeletes(df.Level, df.FileNum) {
			panic(errors.AssertionFailedf(
				"manifest: delete of L%d.%s has no matching file in base or added set", df.Level, df.FileNum))
		}
		if added, ok := st.addedFiles[df.FileNum]; ok {
			added.Unref()
			delete(st.addedFiles, df.FileNum)
		}
	}

	// 4. Adds.
	for _, nf := range edit.NewFiles {
		if !b.levelValid(nf.Level) {
			if b.invalidAdds[nf.Level] == nil {
				b.invalidAdds[nf.Level] = make(map[FileNum]struct{})
			}
			if _, dup := b.invalidAdds[nf.Level][nf.Meta.FileNum]; dup {
				b.hasInvalidLevels = true
			} else {
				b.invalidAdds[nf.Level][nf.Meta.FileNum] = struct{}{}
			}
			continue
		}
		st := &b.levels[nf.Level]
		if _, dup := st.addedFiles[nf.Meta.FileNum]; dup {
			panic(errors.AssertionFailedf(
				"manifest: file L%d.%s added twice without an intervening delete", nf.Level, nf.Meta.FileNum))
		}
		nf.Meta.refs = 1
		delete(st.deletedFiles, nf.Meta.FileNum)
		st.addedFiles[nf.Meta.FileNum] = nf.Meta
	}
}

// checkConsistencyForDeletes validates a staged delete's target: the
// deleted file must exist in the base snapshot at level, or among the
// staged adds on level or any higher level (permitting intra-transaction
// level migration).
func (b *Builder) checkConsistencyForDeletes(level int, fileNum FileNum) bool {
	for _, f := range b.base.LevelFiles(level) {
		if f.FileNum == fileNum {
			return true
		}
	}
	for l := level; l < b.numLevels; l++ {
		if _, ok := b.levels[l].addedFiles[fileNum]; ok {
			return true
		}
	}
	return false
}

// CheckConsistencyForNumLevels reports whether every invalid-level
// reference this builder has staged has been cancelled by a matching
// invalid-level delete. false means the caller must
// reject the whole edit batch without calling SaveTo.
func (b *Builder) CheckConsistencyForNumLevels() bool {
	if b.hasInvalidLevels {
		return false
	}
	for _, set := range b.invalidAdds {
		if len(set) != 0 {
			return false
		}
	}
	return true
}

// SaveTo materialises a new VersionStorage from base plus every edit
// applied so far. It never returns an error: violations of the
// level/ordering invariants abort the process via CheckConsistency.
func (b *Builder) SaveTo(versionNumber int64) *VersionStorage {
	out := NewVersionStorage(b.numLevels, b.cmp)
	out.SetVersionNumber(versionNumber)
	out.SetForceConsistencyChecks(b.base.forceConsistencyChecks)

	for level := 0; level < b.numLevels; level++ {
		st := &b.levels[level]

		sortedAdded := make([]*FileMetadata, 0, len(st.addedFiles))
		for _, f := range st.addedFiles {
			sortedAdded = append(sortedAdded, f)
		}
		less := levelLess(b.cmp, level)
		sort.Slice(sortedAdded, func(i, j int) bool { return less(sortedAdded[i], sortedAdded[j]) })

		baseFiles := b.base.LevelFiles(level)
		out.Reserve(level, len(baseFiles)+len(sortedAdded))

		var lastFile *FileMetadata
		i, j := 0, 0
		for i < len(baseFiles) || j < len(sortedAdded) {
			var f *FileMetadata
			fromBase := false
			switch {
			case i >= len(baseFiles):
				f = sortedAdded[j]
				j++
			case j >= len(sortedAdded):
				f = baseFiles[i]
				fromBase = true
				i++
			case less(sortedAdded[j], baseFiles[i]):
				f = sortedAdded[j]
				j++
			default:
				f = baseFiles[i]
				fromBase = true
				i++
			}
			b.maybeAddFile(out, level, f, fromBase, &lastFile)
		}

		for fnum, f := range st.addedFrozenFiles {
			out.AddFrozenFile(fnum, f)
			f.Ref()
		}
	}

	seenFrozen := make(map[FileNum]bool, len(out.frozen))
	for fnum := range out.frozen {
		seenFrozen[fnum] = true
	}
	for fnum, f := range b.base.FrozenFiles() {
		if seenFrozen[fnum] || f.SliceRefs() <= 0 {
			continue
		}
		out.AddFrozenFile(fnum, f)
		f.Ref()
	}

	out.CheckConsistency(false)
	return out
}

// maybeAddFile is the heart of the algorithm: decide
// whether f, emitted from either the base snapshot or this builder's
// staged adds in sorted order, survives into the new level, moves to
// the frozen set, or is dropped as deleted.
func (b *Builder) maybeAddFile(
	out *VersionStorage, level int, f *FileMetadata, fromBase bool, lastFile **FileMetadata,
) {
	st := &b.levels[level]

	if _, deleted := st.deletedFiles[f.FileNum]; deleted {
		for _, slice := range f.FileSlices {
			slice.Parent.UnrefSlice()
		}
		if b.metrics != nil {
			b.metrics.InputBytes.Add(int64(f.Size))
		}
		return
	}

	if _, frozen := st.addedFrozenFiles[f.FileNum]; frozen {
		if len(f.FileSlices) != 0 {
			panic(errors.AssertionFailedf(
				"manifest: file %s moved to frozen while still owning slices", f.FileNum))
		}
		// The actual frozen-set insertion and ref bump happen once, after
		// this level's merge loop, from addedFrozenFiles directly; see
		// SaveTo. Here we only need to keep it out of the level.
		return
	}

	out.AddFile(level, f)
	if fromBase {
		f.Ref()
	}

	if slices, ok := st.addedFileSlices[f.FileNum]; ok {
		for _, slice := range slices {
			out.AddFileSlice(level, f, slice, lastFile)
		}
		if len(f.FileSlices) > b.mergeThreshold && b.mergeTasks != nil {
			b.mergeTasks.Enqueue(MergeTask{Level: level, Smallest: f.Smallest, Largest: f.Largest})
		}
	}
	*lastFile = f
}

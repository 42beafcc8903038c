// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import "github.com/YF-CHAI/rocksdb-2pc/internal/base"

// DefaultMergeThreshold is the default slice fan-out at which the builder
// schedules a deferred merge.
const DefaultMergeThreshold = 5

// level0Less orders L0 files newest-first: (largest_seqno desc,
// smallest_seqno desc, file-number desc). L0 files may
// overlap, so readers must see newer data first.
func level0Less(a, b *FileMetadata) bool {
	if a.LargestSeqNum != b.LargestSeqNum {
		return a.LargestSeqNum > b.LargestSeqNum
	}
	if a.SmallestSeqNum != b.SmallestSeqNum {
		return a.SmallestSeqNum > b.SmallestSeqNum
	}
	return a.FileNum > b.FileNum
}

// sortedLevelLess orders levels above L0 by (smallest key asc, file-number
// asc); files within a sorted level must not overlap.
func sortedLevelLess(cmp base.Compare, a, b *FileMetadata) bool {
	if c := base.InternalCompare(cmp, a.Smallest, b.Smallest); c != 0 {
		return c < 0
	}
	return a.FileNum < b.FileNum
}

// levelLess returns the ordering predicate for the given level, dispatching
// on whether it is L0.
func levelLess(cmp base.Compare, level int) func(a, b *FileMetadata) bool {
	if level == 0 {
		return level0Less
	}
	return func(a, b *FileMetadata) bool { return sortedLevelLess(cmp, a, b) }
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
)

func TestCheckConsistencySortedLevelOverlap(t *testing.T) {
	vs := newStorage(7)
	vs.AddFile(2, file(1, "a", "e", 1, 1, 100))
	vs.AddFile(2, file(2, "e", "j", 2, 2, 100))
	require.Panics(t, func() { vs.CheckConsistency(true) })
}

func TestCheckConsistencyL0SeqNumOrder(t *testing.T) {
	vs := newStorage(7)
	// Neither ingested nor smallest_seqno-descending: f2's smallest seqno
	// is not below f1's.
	f1 := file(2, "a", "b", 5, 20, 100)
	f2 := file(1, "a", "b", 8, 10, 100)
	vs.AddFile(0, f1)
	vs.AddFile(0, f2)
	require.Panics(t, func() { vs.CheckConsistency(true) })
}

func TestCheckConsistencyL0IngestedFileAllowed(t *testing.T) {
	vs := newStorage(7)
	f1 := file(2, "a", "b", 5, 20, 100)
	// Ingested: smallest_seqno == largest_seqno, below f1's largest.
	f2 := file(1, "a", "b", 10, 10, 100)
	vs.AddFile(0, f1)
	vs.AddFile(0, f2)
	vs.CheckConsistency(true)
}

func TestCheckConsistencyFileOnTwoLevels(t *testing.T) {
	vs := newStorage(7)
	f := file(1, "a", "e", 1, 1, 100)
	vs.AddFile(1, f)
	vs.AddFile(2, f)
	require.Panics(t, func() { vs.CheckConsistency(true) })
}

func TestAddFrozenFileRequiresSliceRefs(t *testing.T) {
	vs := newStorage(7)
	f := file(1, "a", "e", 1, 1, 100)
	require.Panics(t, func() { vs.AddFrozenFile(f.FileNum, f) })
}

func TestLiveFileNumsIncludesSliceParents(t *testing.T) {
	vs := newStorage(7)
	parent := file(1, "a", "z", 1, 1, 1000)
	carrier := file(2, "a", "m", 2, 2, 100)
	vs.AddFile(1, carrier)
	vs.AddFileSlice(1, carrier, &manifest.FileSlice{
		Parent:            parent,
		Smallest:          ikey("a", 1),
		Largest:           ikey("m", 1),
		IsContainSmallest: true,
		OutputFileNum:     carrier.FileNum,
	}, nil)

	live := make(map[manifest.FileNum]struct{})
	vs.LiveFileNums(live)
	require.Contains(t, live, carrier.FileNum)
	require.Contains(t, live, parent.FileNum)
}

func TestLevelStatsTracksAddAndRemove(t *testing.T) {
	vs := newStorage(7)
	f := file(1, "a", "e", 1, 1, 100)
	vs.AddFile(3, f)
	require.Equal(t, 1, vs.LevelStats(3).NumFiles)
	require.EqualValues(t, 100, vs.LevelStats(3).NumBytes)
	vs.RemoveCurrentStats(3, f)
	require.Equal(t, 0, vs.LevelStats(3).NumFiles)
	require.EqualValues(t, 0, vs.LevelStats(3).NumBytes)
}

func TestFileMetadataUnrefReleasesHandle(t *testing.T) {
	f := file(1, "a", "e", 1, 1, 100)
	h := &countingHandle{}
	f.SetReader(h)
	f.Ref()
	f.RefSlice()
	f.Unref()
	require.Equal(t, 0, h.releases, "handle must not release while slice refs remain")
	f.UnrefSlice()
	require.Equal(t, 1, h.releases)
	require.True(t, f.Deletable())
	require.Nil(t, f.Reader())
}

func TestFileMetadataOverUnrefPanics(t *testing.T) {
	f := file(1, "a", "e", 1, 1, 100)
	require.Panics(t, func() { f.Unref() })
	require.Panics(t, func() { f.UnrefSlice() })
}

type countingHandle struct {
	releases int
}

func (h *countingHandle) Release() { h.releases++ }

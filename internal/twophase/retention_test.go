// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package twophase_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/twophase"
)

// The retention floor honors tombstoned heap entries, memtable prep-log
// minimums and the version set's own floor.
func TestMinLogNumberToKeep(t *testing.T) {
	tracker := twophase.NewPreparedLogTracker()
	tracker.MarkLogContainsPrep(70)
	tracker.MarkLogContainsPrep(80)
	tracker.MarkLogPrepSectionFlushed(70)

	require.EqualValues(t, 80, tracker.FindMinLogContainingOutstandingPrep())

	families := []twophase.MemTableMinPrepLog{
		{Active: 90, Immutables: 75},
	}
	require.EqualValues(t, 75, twophase.FindMinPrepLogReferencedByMemTable(families))

	tracker2 := twophase.NewPreparedLogTracker()
	tracker2.MarkLogContainsPrep(70)
	tracker2.MarkLogContainsPrep(80)
	tracker2.MarkLogPrepSectionFlushed(70)

	got := twophase.MinLogNumberToKeep(100, true, tracker2, families)
	require.EqualValues(t, base.FileNum(75), got)
}

func TestMinLogNumberToKeepWithout2PC(t *testing.T) {
	got := twophase.MinLogNumberToKeep(100, false, nil, nil)
	require.EqualValues(t, base.FileNum(100), got)
}

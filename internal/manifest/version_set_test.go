// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
)

func newVersionSet(t *testing.T, mu *sync.Mutex) *manifest.VersionSet {
	t.Helper()
	vs := &manifest.VersionSet{}
	vs.Init(7, cmp, mu, manifest.DefaultMergeThreshold, true)
	return vs
}

func TestVersionSetInstallAndRetire(t *testing.T) {
	var mu sync.Mutex
	mu.Lock()
	defer mu.Unlock()
	vs := newVersionSet(t, &mu)

	f1 := file(1, "a", "e", 1, 1, 100)
	var edit manifest.VersionEdit
	edit.AddFile(1, f1)
	v1, err := vs.LogAndApply(&edit)
	require.NoError(t, err)
	require.Equal(t, 1, v1.Storage.NumLevelFiles(1))

	// A reader pins v1; deleting f1 in v2 must not make it obsolete yet.
	v1.Ref()

	var del manifest.VersionEdit
	del.DeleteFile(1, f1.FileNum)
	v2, err := vs.LogAndApply(&del)
	require.NoError(t, err)
	require.Equal(t, 0, v2.Storage.NumLevelFiles(1))
	require.Empty(t, vs.ObsoleteTables())

	live := vs.LiveFileNums()
	_, ok := live[f1.FileNum]
	require.True(t, ok, "deleted file must stay live while an old version references it")

	// Retiring the reader's snapshot releases the file.
	v1.UnrefLocked()
	obsolete := vs.ObsoleteTables()
	require.Len(t, obsolete, 1)
	require.Equal(t, f1.FileNum, obsolete[0].FileNum)

	live = vs.LiveFileNums()
	_, ok = live[f1.FileNum]
	require.False(t, ok)

	require.EqualValues(t, f1.Size, vs.Metrics.InputBytes.Load())
}

func TestVersionSetRejectsInvalidLevelBatch(t *testing.T) {
	var mu sync.Mutex
	mu.Lock()
	defer mu.Unlock()
	vs := newVersionSet(t, &mu)

	var edit manifest.VersionEdit
	edit.AddFile(9, file(1, "a", "e", 1, 1, 100))
	_, err := vs.LogAndApply(&edit)
	require.Error(t, err)
}

func TestVersionSetLogNumbers(t *testing.T) {
	var mu sync.Mutex
	mu.Lock()
	defer mu.Unlock()
	vs := newVersionSet(t, &mu)

	edit := &manifest.VersionEdit{MinUnflushedLogNum: 12, ManifestFileNum: 13}
	_, err := vs.LogAndApply(edit)
	require.NoError(t, err)
	require.EqualValues(t, 12, vs.MinUnflushedLogNum())
	require.EqualValues(t, 13, vs.ManifestFileNum())
	require.Greater(t, uint64(vs.NextFileNum()), uint64(13))

	edit2 := &manifest.VersionEdit{ManifestFileNum: 20}
	_, err = vs.LogAndApply(edit2)
	require.NoError(t, err)
	require.Equal(t, []manifest.FileNum{13}, vs.ObsoleteManifests())
}

func TestVersionSetRetireAliveLogsWaitsForSync(t *testing.T) {
	var mu sync.Mutex
	vs := func() *manifest.VersionSet {
		mu.Lock()
		defer mu.Unlock()
		vs := newVersionSet(t, &mu)
		vs.AddAliveLog(5, 100)
		vs.AddAliveLog(6, 100)
		vs.AddAliveLog(9, 100)
		vs.SetLogSyncing(5, true)
		return vs
	}()

	go func() {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		vs.SetLogSyncing(5, false)
		mu.Unlock()
	}()

	mu.Lock()
	retired := vs.RetireAliveLogs(9)
	mu.Unlock()

	require.Len(t, retired, 2)
	require.EqualValues(t, 5, retired[0].Number)
	require.EqualValues(t, 6, retired[1].Number)

	mu.Lock()
	remaining := vs.AliveLogs()
	mu.Unlock()
	require.Len(t, remaining, 1)
	require.EqualValues(t, 9, remaining[0].Number)
}

func TestVersionSetPendingOutputs(t *testing.T) {
	var mu sync.Mutex
	mu.Lock()
	defer mu.Unlock()
	vs := newVersionSet(t, &mu)

	n := vs.NextFileNum()
	vs.AddPendingOutput(n)
	pending := vs.PendingOutputs()
	_, ok := pending[n]
	require.True(t, ok)

	vs.RemovePendingOutput(n)
	require.Empty(t, vs.PendingOutputs())
}

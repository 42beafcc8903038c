// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rocksdb2pc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	rocksdb2pc "github.com/YF-CHAI/rocksdb-2pc"
	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
	"github.com/YF-CHAI/rocksdb-2pc/internal/twophase"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
)

func touch(t *testing.T, fs vfs.FS, path string) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func exists(fs vfs.FS, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

func tableMeta(num uint64, smallest, largest string) *manifest.FileMetadata {
	return &manifest.FileMetadata{
		FileNum:        base.FileNum(num),
		Size:           100,
		Smallest:       base.MakeInternalKey([]byte(smallest), 1),
		Largest:        base.MakeInternalKey([]byte(largest), 1),
		SmallestSeqNum: 1,
		LargestSeqNum:  1,
	}
}

func TestCoreDeleteObsoleteFiles(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/db", 0755))
	require.NoError(t, fs.MkdirAll("/wal", 0755))
	touch(t, fs, "/db/000005.sst")
	touch(t, fs, "/db/000007.sst")
	touch(t, fs, "/db/MANIFEST-000002")
	touch(t, fs, "/wal/000003.log")

	c := rocksdb2pc.Open(&rocksdb2pc.Options{
		FS:      fs,
		DBPaths: []rocksdb2pc.DBPath{{Path: "/db", PathID: 0}},
		WALDir:  "/wal",
	})

	c.Mutex().Lock()
	c.VersionSet().AddAliveLog(3, 10)
	c.Mutex().Unlock()

	edit := &manifest.VersionEdit{MinUnflushedLogNum: 4, ManifestFileNum: 2}
	edit.AddFile(1, tableMeta(5, "a", "e"))
	edit.AddFile(1, tableMeta(7, "f", "j"))
	_, err := c.Apply(context.Background(), edit)
	require.NoError(t, err)

	del := &manifest.VersionEdit{}
	del.DeleteFile(1, 7)
	_, err = c.Apply(context.Background(), del)
	require.NoError(t, err)

	c.DeleteObsoleteFiles(true)

	require.True(t, exists(fs, "/db/000005.sst"), "live table must survive")
	require.False(t, exists(fs, "/db/000007.sst"), "unreferenced table must be deleted")
	require.True(t, exists(fs, "/db/MANIFEST-000002"), "current manifest must survive")
	require.False(t, exists(fs, "/wal/000003.log"), "WAL below the retention floor must be deleted")
}

func TestCorePendingOutputWatermark(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/db", 0755))
	touch(t, fs, "/db/000050.sst")

	c := rocksdb2pc.Open(&rocksdb2pc.Options{
		FS:      fs,
		DBPaths: []rocksdb2pc.DBPath{{Path: "/db", PathID: 0}},
	})

	c.Mutex().Lock()
	c.VersionSet().MarkFileNumUsed(49)
	c.VersionSet().AddPendingOutput(50)
	c.Mutex().Unlock()

	// 50 is not live, but it is an in-flight compaction output.
	c.DeleteObsoleteFiles(true)
	require.True(t, exists(fs, "/db/000050.sst"))

	c.Mutex().Lock()
	c.VersionSet().RemovePendingOutput(50)
	c.Mutex().Unlock()

	c.DeleteObsoleteFiles(true)
	require.False(t, exists(fs, "/db/000050.sst"))
}

func TestCoreTwoPhaseRetentionFloor(t *testing.T) {
	c := rocksdb2pc.Open(&rocksdb2pc.Options{
		FS:       vfs.NewMem(),
		Allow2PC: true,
	})
	c.MemTableMins = func() []twophase.MemTableMinPrepLog {
		return []twophase.MemTableMinPrepLog{{Active: 90, Immutables: 75}}
	}

	edit := &manifest.VersionEdit{MinUnflushedLogNum: 100}
	_, err := c.Apply(context.Background(), edit)
	require.NoError(t, err)

	c.PreparedLogs().MarkLogContainsPrep(70)
	c.PreparedLogs().MarkLogContainsPrep(80)
	c.PreparedLogs().MarkLogPrepSectionFlushed(70)

	require.EqualValues(t, 75, c.MinLogNumberToKeep())
}

func TestCoreRecyclesRetiredWALs(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/wal", 0755))
	touch(t, fs, "/wal/000003.log")
	touch(t, fs, "/wal/000004.log")

	c := rocksdb2pc.Open(&rocksdb2pc.Options{
		FS:                fs,
		WALDir:            "/wal",
		RecycleLogFileNum: 1,
	})

	c.Mutex().Lock()
	c.VersionSet().AddAliveLog(3, 10)
	c.VersionSet().AddAliveLog(4, 10)
	c.Mutex().Unlock()

	edit := &manifest.VersionEdit{MinUnflushedLogNum: 5}
	_, err := c.Apply(context.Background(), edit)
	require.NoError(t, err)

	c.DeleteObsoleteFiles(true)

	// One log fits the recycler and stays on disk; the other is deleted.
	require.Equal(t, []base.FileNum{3}, c.LogRecycler().LogNumsForTesting())
	require.True(t, exists(fs, "/wal/000003.log"))
	require.False(t, exists(fs, "/wal/000004.log"))
}

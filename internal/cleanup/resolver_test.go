// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cleanup_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/cleanup"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
)

func touch(t *testing.T, fs vfs.FS, path string) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

type deleteKey struct {
	fileType base.FileType
	fileNum  base.FileNum
}

func deletedKeys(plan cleanup.Plan) map[deleteKey]bool {
	out := make(map[deleteKey]bool, len(plan.Delete))
	for _, c := range plan.Delete {
		out[deleteKey{c.FileType, c.FileNum}] = true
	}
	return out
}

// Classification keeps live tables, pending outputs, the previous WAL
// and the current manifest, and deletes the rest.
func TestResolverClassification(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/wal", 0755))
	require.NoError(t, fs.MkdirAll("/data", 0755))

	touch(t, fs, "/wal/000030.log")
	touch(t, fs, "/wal/000048.log")
	touch(t, fs, "/wal/000050.log")
	touch(t, fs, "/data/000100.sst")
	touch(t, fs, "/data/000150.sst")
	touch(t, fs, "/data/000200.dbtmp")
	touch(t, fs, "/data/MANIFEST-000030")
	touch(t, fs, "/data/MANIFEST-000029")

	r := &cleanup.ObsoleteFileResolver{FS: fs, Cleaner: vfs.DeleteCleaner{}}

	in := cleanup.ScanInputs{
		Force:              true,
		LiveTableNums:      map[base.FileNum]struct{}{100: {}, 101: {}},
		PendingOutputs:     map[base.FileNum]struct{}{200: {}},
		LogNumber:          50,
		PrevLogNumber:      48,
		CurrentManifestNum: 30,
		PendingManifestNum: 200,
		WALDir:             "/wal",
		DBPaths:            []cleanup.PathSpec{{Path: "/data", PathID: 0}},
	}

	plan := r.Resolve(in)
	deleted := deletedKeys(plan)

	require.True(t, deleted[deleteKey{base.FileTypeLog, 30}])
	require.True(t, deleted[deleteKey{base.FileTypeTable, 150}])
	require.True(t, deleted[deleteKey{base.FileTypeDescriptor, 29}])
	require.Len(t, deleted, 3)
	require.Empty(t, plan.Archive)
}

func TestResolverTempOptionsFileKept(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/data", 0755))
	touch(t, fs, "/data/000007.dbtmp")

	r := &cleanup.ObsoleteFileResolver{FS: fs, Cleaner: vfs.DeleteCleaner{}}
	plan := r.Resolve(cleanup.ScanInputs{
		Force:   true,
		DBPaths: []cleanup.PathSpec{{Path: "/data", PathID: 0}},
	})
	require.Len(t, plan.Delete, 1)

	// The same temp number survives when its name carries the options-file
	// prefix.
	require.NoError(t, fs.Rename("/data/000007.dbtmp", "/data/OPTIONS-000007.dbtmp"))
	plan = r.Resolve(cleanup.ScanInputs{
		Force:   true,
		DBPaths: []cleanup.PathSpec{{Path: "/data", PathID: 0}},
	})
	require.Empty(t, plan.Delete)
}

func TestResolverInfoLogPrefix(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/logs", 0755))
	touch(t, fs, "/logs/mydb.log.2026-08-05")
	touch(t, fs, "/logs/mydb.log.2026-08-04")
	touch(t, fs, "/logs/mydb.log.2026-08-03")

	r := &cleanup.ObsoleteFileResolver{FS: fs, Cleaner: vfs.DeleteCleaner{}}
	plan := r.Resolve(cleanup.ScanInputs{
		Force:          true,
		DBLogDir:       "/logs",
		InfoLogPrefix:  "mydb.log",
		KeepLogFileNum: 2,
	})
	require.Len(t, plan.Delete, 1)
	require.Equal(t, "/mydb.log.2026-08-03", plan.Delete[0].Filename)
	require.Equal(t, base.FileTypeInfoLog, plan.Delete[0].FileType)
}

func TestResolverWALArchival(t *testing.T) {
	fs := vfs.NewMem()
	require.NoError(t, fs.MkdirAll("/wal", 0755))
	touch(t, fs, "/wal/000030.log")

	r := &cleanup.ObsoleteFileResolver{FS: fs, Cleaner: vfs.DeleteCleaner{}}
	in := cleanup.ScanInputs{
		Force:         true,
		LogNumber:     50,
		WALDir:        "/wal",
		WALTTLSeconds: 3600,
	}
	plan := r.Resolve(in)
	require.Empty(t, plan.Delete)
	require.Len(t, plan.Archive, 1)
	require.Equal(t, base.FileNum(30), plan.Archive[0].FileNum)
}

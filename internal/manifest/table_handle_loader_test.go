// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
)

type fakeHandle struct{}

func (fakeHandle) Release() {}

// failingOpener fails exactly the file numbers in failNums.
type failingOpener struct {
	failNums map[manifest.FileNum]bool
}

func (o *failingOpener) Open(_ context.Context, meta *manifest.FileMetadata) (manifest.TableHandle, error) {
	if o.failNums[meta.FileNum] {
		return nil, errors.Errorf("tablecache: cannot open %s", meta.FileNum)
	}
	return fakeHandle{}, nil
}

func TestLoadTableHandles(t *testing.T) {
	vs := newStorage(7)
	files := []*manifest.FileMetadata{
		file(1, "a", "b", 1, 1, 10),
		file(2, "c", "d", 2, 2, 10),
		file(3, "e", "f", 3, 3, 10),
		file(4, "g", "h", 4, 4, 10),
	}
	vs.AddFile(1, files[0])
	vs.AddFile(1, files[1])
	vs.AddFile(2, files[2])
	vs.AddFile(3, files[3])

	opener := &failingOpener{failNums: map[manifest.FileNum]bool{3: true}}
	require.NoError(t, manifest.LoadTableHandles(context.Background(), vs, opener, 2))

	for _, f := range files {
		if f.FileNum == 3 {
			require.Nil(t, f.Reader())
			require.Error(t, f.OpenErr)
			continue
		}
		require.NotNil(t, f.Reader(), "file %s", f.FileNum)
		require.NoError(t, f.OpenErr)
	}
}

func TestLoadTableHandlesEmpty(t *testing.T) {
	vs := newStorage(7)
	require.NoError(t, manifest.LoadTableHandles(context.Background(), vs, &failingOpener{}, 4))
}

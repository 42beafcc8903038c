// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tablecache_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
	"github.com/YF-CHAI/rocksdb-2pc/tablecache"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
)

type fakeReader struct {
	closed int32
}

func (r *fakeReader) Close() error {
	atomic.AddInt32(&r.closed, 1)
	return nil
}

type countingOpener struct {
	opens   int32
	readers []*fakeReader
}

func (o *countingOpener) Open(ctx context.Context, dir string, fs vfs.FS, meta *manifest.FileMetadata) (tablecache.Reader, error) {
	atomic.AddInt32(&o.opens, 1)
	r := &fakeReader{}
	o.readers = append(o.readers, r)
	return r, nil
}

func TestCacheHitAvoidsReopen(t *testing.T) {
	opener := &countingOpener{}
	c := tablecache.New("", vfs.NewMem(), opener, 0, 1)
	meta := &manifest.FileMetadata{FileNum: 1}

	h1, err := c.Open(context.Background(), meta)
	require.NoError(t, err)
	h2, err := c.Open(context.Background(), meta)
	require.NoError(t, err)

	require.EqualValues(t, 1, opener.opens)

	h1.Release()
	h2.Release()
}

func TestCacheEvictClosesReader(t *testing.T) {
	opener := &countingOpener{}
	c := tablecache.New("", vfs.NewMem(), opener, 0, 1)
	meta := &manifest.FileMetadata{FileNum: 7}

	h, err := c.Open(context.Background(), meta)
	require.NoError(t, err)
	h.Release()

	c.Evict(7)
	require.Len(t, opener.readers, 1)
	require.EqualValues(t, 1, atomic.LoadInt32(&opener.readers[0].closed))

	opener2 := &countingOpener{}
	c2 := tablecache.New("", vfs.NewMem(), opener2, 0, 1)
	_, err = c2.Open(context.Background(), meta)
	require.NoError(t, err)
	require.EqualValues(t, 1, opener2.opens)
}

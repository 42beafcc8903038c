// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors/oserror"
	"github.com/stretchr/testify/require"
)

func TestMemFSBasics(t *testing.T) {
	fs := NewMem()

	f, err := fs.Create("/dir/a")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	fi, err := fs.Stat("/dir/a")
	require.NoError(t, err)
	require.EqualValues(t, 5, fi.Size())
	require.Equal(t, "a", fi.Name())

	g, err := fs.Open("/dir/a")
	require.NoError(t, err)
	data, err := io.ReadAll(g)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	require.NoError(t, g.Close())

	_, err = fs.Open("/dir/missing")
	require.True(t, oserror.IsNotExist(err))
}

func TestMemFSListRenameRemove(t *testing.T) {
	fs := NewMem()
	for _, name := range []string{"/dir/b", "/dir/a", "/dir/sub/c", "/other/d"} {
		f, err := fs.Create(name)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	names, err := fs.List("/dir")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "sub"}, names)

	require.NoError(t, fs.Rename("/dir/a", "/dir/z"))
	_, err = fs.Stat("/dir/a")
	require.True(t, oserror.IsNotExist(err))
	_, err = fs.Stat("/dir/z")
	require.NoError(t, err)

	require.NoError(t, fs.Remove("/dir/z"))
	require.True(t, oserror.IsNotExist(fs.Remove("/dir/z")))
}

func TestMemFSLock(t *testing.T) {
	fs := NewMem()
	l, err := fs.Lock("/LOCK")
	require.NoError(t, err)

	_, err = fs.Lock("/LOCK")
	require.Error(t, err)

	require.NoError(t, l.Close())
	l2, err := fs.Lock("/LOCK")
	require.NoError(t, err)
	require.NoError(t, l2.Close())
}

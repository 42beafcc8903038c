// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package walmgr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/walmgr"
)

func TestLogRecyclerAddPop(t *testing.T) {
	r := walmgr.NewLogRecycler(2)

	require.True(t, r.Add(walmgr.LogInfo{Number: 1, Size: 10}))
	require.True(t, r.Add(walmgr.LogInfo{Number: 2, Size: 20}))
	// Queue is at capacity; a third distinct log must be deleted instead.
	require.False(t, r.Add(walmgr.LogInfo{Number: 3, Size: 30}))
	// A log number already considered (<= maxLogNum) is reported as
	// already-handled, not re-queued.
	require.True(t, r.Add(walmgr.LogInfo{Number: 2, Size: 20}))

	count, size := r.Stats()
	require.Equal(t, 2, count)
	require.EqualValues(t, 30, size)

	head, ok := r.Peek()
	require.True(t, ok)
	require.Equal(t, base.FileNum(1), head.Number)

	require.NoError(t, r.Pop(1))
	require.Error(t, r.Pop(5))
}

func TestLogRecyclerMinRecycleLogNum(t *testing.T) {
	r := walmgr.NewLogRecycler(4)
	r.SetMinRecycleLogNum(10)
	require.False(t, r.Add(walmgr.LogInfo{Number: 5, Size: 1}))
	require.True(t, r.Add(walmgr.LogInfo{Number: 10, Size: 1}))
}

// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package walmgr supplies the WAL-side collaborators external to the
// version/file-lifecycle core: a log recycler that accepts or rejects the
// logs an obsolete-file pass proposes in cleanup.Plan.Recycle, and a WAL
// archive manager implementing cleanup.WALArchiver.
package walmgr

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
)

// LogInfo is one alive WAL's identity and size, the unit LogRecycler
// tracks.
type LogInfo struct {
	Number base.FileNum
	Size   uint64
}

// LogRecycler holds a set of log file numbers available for reuse. Writing
// to a recycled log file avoids metadata updates a brand new file would
// incur on filesystems like xfs and ext3/4.
type LogRecycler struct {
	limit int

	// minRecycleLogNum is the minimum log number allowed to be recycled.
	// Log numbers below it were written before recycling was enabled and
	// are subject to immediate deletion instead.
	minRecycleLogNum base.FileNum

	mu struct {
		sync.Mutex
		logs      []LogInfo
		maxLogNum base.FileNum
	}
}

// NewLogRecycler creates a LogRecycler retaining up to limit log files.
func NewLogRecycler(limit int) *LogRecycler {
	return &LogRecycler{limit: limit}
}

// MinRecycleLogNum returns the current floor below which logs are deleted
// instead of recycled.
func (r *LogRecycler) MinRecycleLogNum() base.FileNum {
	return r.minRecycleLogNum
}

// SetMinRecycleLogNum sets the floor below which logs are deleted instead
// of recycled.
func (r *LogRecycler) SetMinRecycleLogNum(n base.FileNum) {
	r.minRecycleLogNum = n
}

// Add attempts to recycle the given log. It returns true if the log should
// not be deleted (it was accepted for recycling, or was already considered
// previously), false if the caller should delete it.
func (r *LogRecycler) Add(info LogInfo) bool {
	if info.Number < r.minRecycleLogNum {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Number <= r.mu.maxLogNum {
		return true
	}
	r.mu.maxLogNum = info.Number
	if len(r.mu.logs) >= r.limit {
		return false
	}
	r.mu.logs = append(r.mu.logs, info)
	return true
}

// Peek returns the log at the head of the recycling queue, or false if
// empty.
func (r *LogRecycler) Peek() (LogInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.mu.logs) == 0 {
		return LogInfo{}, false
	}
	return r.mu.logs[0], true
}

// Stats reports the current recycle queue depth and total bytes.
func (r *LogRecycler) Stats() (count int, size uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count = len(r.mu.logs)
	for i := range r.mu.logs {
		size += r.mu.logs[i].Size
	}
	return count, size
}

// Pop removes the head of the recycling queue, enforcing that it matches
// logNum.
func (r *LogRecycler) Pop(logNum base.FileNum) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.mu.logs) == 0 {
		return errors.New("walmgr: log recycler empty")
	}
	if r.mu.logs[0].Number != logNum {
		return errors.Errorf("walmgr: log recycler invalid pop %d vs head %d", logNum, r.mu.logs[0].Number)
	}
	r.mu.logs = r.mu.logs[1:]
	return nil
}

// LogNumsForTesting returns the current recyclable log numbers.
func (r *LogRecycler) LogNumsForTesting() []base.FileNum {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]base.FileNum, len(r.mu.logs))
	for i := range r.mu.logs {
		out[i] = r.mu.logs[i].Number
	}
	return out
}

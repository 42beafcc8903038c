// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package twophase implements the WAL retention bookkeeping needed when
// two-phase-commit prepared transactions may outlive the memtable that
// will eventually record them.
package twophase

import (
	"container/heap"
	"sync"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
)

// logHeap is a min-heap of WAL numbers containing prepared sections.
type logHeap []base.FileNum

func (h logHeap) Len() int            { return len(h) }
func (h logHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h logHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *logHeap) Push(x interface{}) { *h = append(*h, x.(base.FileNum)) }
func (h *logHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// PreparedLogTracker is the prepared-heap plus its companion
// completion-count map. It is guarded by its own lock, distinct
// from the global mutex, because flush callbacks mutate it without holding
// that mutex.
type PreparedLogTracker struct {
	mu struct {
		sync.Mutex
		heap      logHeap
		completed map[base.FileNum]int
	}
}

// NewPreparedLogTracker returns an empty tracker.
func NewPreparedLogTracker() *PreparedLogTracker {
	t := &PreparedLogTracker{}
	t.mu.completed = make(map[base.FileNum]int)
	return t
}

// MarkLogContainsPrep records that logNum contains a prepared section not
// yet known to be fully flushed.
func (t *PreparedLogTracker) MarkLogContainsPrep(logNum base.FileNum) {
	t.mu.Lock()
	defer t.mu.Unlock()
	heap.Push(&t.mu.heap, logNum)
	if _, ok := t.mu.completed[logNum]; !ok {
		t.mu.completed[logNum] = 0
	}
}

// MarkLogPrepSectionFlushed records that one prepared section originally
// written to logNum has now been durably flushed to an SST.
func (t *PreparedLogTracker) MarkLogPrepSectionFlushed(logNum base.FileNum) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mu.completed[logNum]++
}

// FindMinLogContainingOutstandingPrep repeatedly pops fully-completed
// entries off the heap's top until the minimum log
// number that still has an outstanding (unflushed) prepared section is
// found. Returns 0 if none remain.
func (t *PreparedLogTracker) FindMinLogContainingOutstandingPrep() base.FileNum {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.mu.heap.Len() > 0 {
		top := t.mu.heap[0]
		if t.mu.completed[top] > 0 {
			t.mu.completed[top]--
			heap.Pop(&t.mu.heap)
			continue
		}
		return top
	}
	return 0
}

// MemTableMinPrepLog is the minimum prepared-log number referenced by a
// single column family's memtable set.
type MemTableMinPrepLog struct {
	Active     base.FileNum
	Immutables base.FileNum
}

// FindMinPrepLogReferencedByMemTable returns the minimum, over all
// non-dropped column families, of each family's active and immutable
// memtable prep-log minimums, ignoring zero. Returns 0 if
// every family reports zero.
func FindMinPrepLogReferencedByMemTable(families []MemTableMinPrepLog) base.FileNum {
	var min base.FileNum
	consider := func(n base.FileNum) {
		if n == 0 {
			return
		}
		if min == 0 || n < min {
			min = n
		}
	}
	for _, f := range families {
		consider(f.Active)
		consider(f.Immutables)
	}
	return min
}

// MinLogNumberToKeep computes the WAL retention floor: the version
// set's own minimum log number, intersected with the two-phase
// bookkeeping above when 2PC is enabled. This is the log_number floor fed
// into internal/cleanup's WAL classification.
func MinLogNumberToKeep(
	versionSetMinLog base.FileNum, allow2PC bool, tracker *PreparedLogTracker, families []MemTableMinPrepLog,
) base.FileNum {
	min := versionSetMinLog
	if !allow2PC {
		return min
	}
	consider := func(n base.FileNum) {
		if n == 0 {
			return
		}
		if n < min {
			min = n
		}
	}
	if tracker != nil {
		consider(tracker.FindMinLogContainingOutstandingPrep())
	}
	consider(FindMinPrepLogReferencedByMemTable(families))
	return min
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"sync"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
)

// MergeTask describes a deferred slice-merge: a level and key range whose
// backing file's slice fan-out exceeded the merge threshold. The builder
// enqueues one onto the superversion's merge-task set.
type MergeTask struct {
	Level             int
	Smallest, Largest base.InternalKey
}

// MergeTaskSet is the superversion's set of deferred merges, produced to
// by Builder.SaveTo. It is safe for concurrent use since flush and
// compaction completion callbacks may enqueue from outside the holder of
// the global mutex.
type MergeTaskSet struct {
	mu    sync.Mutex
	tasks []MergeTask
}

// Enqueue adds t to the set.
func (s *MergeTaskSet) Enqueue(t MergeTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// Drain removes and returns every queued task, for a background compaction
// picker to consume.
func (s *MergeTaskSet) Drain() []MergeTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.tasks
	s.tasks = nil
	return tasks
}

// Len reports the number of queued tasks, mainly for tests.
func (s *MergeTaskSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

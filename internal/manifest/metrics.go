// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import "sync/atomic"

// CompactionMetrics accumulates byte counts consumed by compactions. It is
// passed explicitly to the builders that feed it rather than living in
// process-global state; accumulation is atomic so observers can read it
// without holding the global mutex.
type CompactionMetrics struct {
	// InputBytes is the total size of files removed from levels by applied
	// edits, i.e. compaction and flush inputs retired so far.
	InputBytes atomic.Int64
}

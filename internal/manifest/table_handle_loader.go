// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// TableOpener opens a table reader for meta, returning a handle usable as a
// FileMetadata.reader. Implementations live outside this
// package (see tablecache) to avoid manifest importing the cache.
type TableOpener interface {
	Open(ctx context.Context, meta *FileMetadata) (TableHandle, error)
}

type levelFilePair struct {
	level int
	file  *FileMetadata
}

// LoadTableHandles opens a table reader for every file in vs, fanning the
// work out across maxThreads workers. A single file's open failure is
// recorded on FileMetadata.OpenErr and does not abort the other opens;
// callers decide afterward whether any OpenErr makes the version unusable.
func LoadTableHandles(ctx context.Context, vs *VersionStorage, opener TableOpener, maxThreads int) error {
	if maxThreads <= 0 {
		maxThreads = 1
	}

	var work []levelFilePair
	for level := 0; level < vs.NumLevels(); level++ {
		for _, f := range vs.LevelFiles(level) {
			work = append(work, levelFilePair{level: level, file: f})
		}
	}
	if len(work) == 0 {
		return nil
	}

	var next int64
	g, gctx := errgroup.WithContext(ctx)
	workers := maxThreads
	if workers > len(work) {
		workers = len(work)
	}
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := atomic.AddInt64(&next, 1) - 1
				if int(i) >= len(work) {
					return nil
				}
				pair := work[i]
				handle, err := opener.Open(gctx, pair.file)
				if err != nil {
					pair.file.OpenErr = err
					continue
				}
				pair.file.SetReader(handle)
			}
		})
	}
	return g.Wait()
}

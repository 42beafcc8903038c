// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rocksdb2pc

import (
	"context"
	"sync"
	"time"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/cleanup"
	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
	"github.com/YF-CHAI/rocksdb-2pc/internal/twophase"
	"github.com/YF-CHAI/rocksdb-2pc/walmgr"
)

// Core owns the version set and the collaborators around it, serialising
// all metadata mutation on one global mutex. Flush and compaction jobs feed
// it version edits; a background cleaner calls DeleteObsoleteFiles.
type Core struct {
	opts *Options

	// mu is the global mutex protecting the version set, the alive-log
	// deque and the pending-outputs set.
	mu sync.Mutex

	versions manifest.VersionSet

	// prepTracker is guarded by its own lock, not mu, because flush
	// callbacks mutate it without holding the global mutex.
	prepTracker *twophase.PreparedLogTracker

	// MemTableMins reports each column family's minimum prepared-log
	// numbers; the memtable implementation is external to this core.
	MemTableMins func() []twophase.MemTableMinPrepLog

	resolver *cleanup.ObsoleteFileResolver
	recycler *walmgr.LogRecycler
}

// Open assembles a Core from opts.
func Open(opts *Options) *Core {
	opts.EnsureDefaults()
	c := &Core{
		opts:        opts,
		prepTracker: twophase.NewPreparedLogTracker(),
		recycler:    walmgr.NewLogRecycler(opts.RecycleLogFileNum),
	}
	c.versions.Init(opts.NumLevels, opts.Compare, &c.mu,
		opts.CompactionOptions2PC.MergeThreshold, opts.ForceConsistencyChecks)
	c.resolver = &cleanup.ObsoleteFileResolver{
		FS:            opts.FS,
		Cleaner:       opts.Cleaner,
		Logger:        opts.Logger,
		Events:        opts.EventListener,
		MinScanPeriod: time.Duration(opts.DeleteObsoleteFilesPeriodMicros) * time.Microsecond,
	}
	return c
}

// VersionSet exposes the underlying version set; callers must hold Mutex()
// while using it.
func (c *Core) VersionSet() *manifest.VersionSet { return &c.versions }

// Mutex returns the global mutex.
func (c *Core) Mutex() *sync.Mutex { return &c.mu }

// PreparedLogs returns the two-phase-commit WAL retention tracker.
func (c *Core) PreparedLogs() *twophase.PreparedLogTracker { return c.prepTracker }

// LogRecycler returns the WAL recycler.
func (c *Core) LogRecycler() *walmgr.LogRecycler { return c.recycler }

// SetWALArchiver routes retired WALs through mgr instead of deletion when
// the WAL TTL or size limit options are set.
func (c *Core) SetWALArchiver(mgr cleanup.WALArchiver) { c.resolver.WAL = mgr }

// SetTableEvictor wires the external table cache's eviction entry point.
func (c *Core) SetTableEvictor(ev cleanup.TableEvictor) { c.resolver.Tables = ev }

// Apply installs an edit batch as a new version and, if a TableOpener is
// configured, opens table readers for the new version's files in parallel.
func (c *Core) Apply(ctx context.Context, edits ...*manifest.VersionEdit) (*manifest.Version, error) {
	c.mu.Lock()
	v, err := c.versions.LogAndApply(edits...)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if c.opts.TableOpener != nil {
		if err := manifest.LoadTableHandles(ctx, v.Storage, c.opts.TableOpener, c.opts.TableLoaderThreads); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// MinLogNumberToKeep computes the WAL retention floor: the version set's
// minimum unflushed log, lowered by outstanding prepared sections and
// memtable-referenced prep logs when 2PC is enabled. Requires mu.
func (c *Core) minLogNumberToKeepLocked() base.FileNum {
	var mins []twophase.MemTableMinPrepLog
	if c.MemTableMins != nil {
		mins = c.MemTableMins()
	}
	return twophase.MinLogNumberToKeep(
		c.versions.MinUnflushedLogNum(), c.opts.Allow2PC, c.prepTracker, mins)
}

// MinLogNumberToKeep is the exported, self-locking form.
func (c *Core) MinLogNumberToKeep() base.FileNum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minLogNumberToKeepLocked()
}

// DeleteObsoleteFiles gathers the live set, retention floors and directory
// layout under the global mutex, then classifies and disposes of candidate
// files without holding it. Logs accepted by the recycler
// survive; logs it rejects are deleted with everything else.
func (c *Core) DeleteObsoleteFiles(force bool) {
	c.mu.Lock()
	logNumber := c.minLogNumberToKeepLocked()
	retired := c.versions.RetireAliveLogs(logNumber)

	obsoleteTables := c.versions.ObsoleteTables()
	in := cleanup.ScanInputs{
		Force:              force,
		Now:                time.Now(),
		PendingOutputs:     c.versions.PendingOutputs(),
		LiveTableNums:      c.versions.LiveFileNums(),
		FrozenTableNums:    c.versions.FrozenFileNums(),
		ObsoleteManifests:  c.versions.ObsoleteManifests(),
		CurrentManifestNum: c.versions.ManifestFileNum(),
		PendingManifestNum: c.versions.PendingManifestFileNum(),
		LogNumber:          logNumber,
		PrevLogNumber:      c.versions.PrevLogNum(),
		RecycleLogFileNum:  c.opts.RecycleLogFileNum,
		DBPaths:            c.opts.DBPaths,
		WALDir:             c.walDir(),
		DBLogDir:           c.opts.DBLogDir,
		WALTTLSeconds:      c.opts.WALTTLSeconds,
		WALSizeLimitMB:     c.opts.WALSizeLimitMB,
		KeepLogFileNum:     c.opts.KeepLogFileNum,
		InfoLogPrefix:      c.opts.InfoLogPrefix,
	}
	for _, l := range retired {
		in.AliveLogs = append(in.AliveLogs, cleanup.AliveLog{Number: l.Number, Size: l.Size})
	}
	for _, f := range obsoleteTables {
		in.ObsoleteTables = append(in.ObsoleteTables, f.FileNum)
	}
	c.mu.Unlock()

	plan := c.resolver.Resolve(in)

	// The resolver only proposes recycling; the recycler is the authority
	// on whether it still has room.
	for _, l := range plan.Recycle {
		if c.recycler.Add(walmgr.LogInfo{Number: l.Number, Size: l.Size}) {
			continue
		}
		plan.Delete = append(plan.Delete, cleanup.Candidate{
			Dir:      in.WALDir,
			FileNum:  l.Number,
			FileType: base.FileTypeLog,
		})
	}

	c.resolver.Execute(plan, in)
}

func (c *Core) walDir() string {
	if c.opts.WALDir != "" {
		return c.opts.WALDir
	}
	if len(c.opts.DBPaths) > 0 {
		return c.opts.DBPaths[0].Path
	}
	return ""
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package cleanup implements ObsoleteFileResolver: the decision procedure
// that turns a version set's bookkeeping into a concrete plan of files to
// keep, archive, recycle or delete.
package cleanup

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors/oserror"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
)

// PathSpec names one configured data directory along with the path-id a
// FileMetadata.PathID refers to.
type PathSpec struct {
	Path   string
	PathID int
}

// AliveLog is one entry of the alive-log deque tracked by the version set.
type AliveLog struct {
	Number base.FileNum
	Size   uint64
}

// TableEvictor is the external table cache's eviction entry point.
type TableEvictor interface {
	Evict(fileNum base.FileNum)
}

// WALArchiver is the external WAL manager's archival entry point.
type WALArchiver interface {
	ArchiveWALFile(fs vfs.FS, path string, number base.FileNum) error
}

// ScanInputs captures every piece of state ObsoleteFileResolver needs,
// gathered by the caller under the global mutex.
type ScanInputs struct {
	Force      bool
	NoFullScan bool
	Now        time.Time

	PendingOutputs map[base.FileNum]struct{}

	LiveTableNums     map[base.FileNum]struct{}
	FrozenTableNums   map[base.FileNum]struct{}
	ObsoleteTables    []base.FileNum
	ObsoleteManifests []base.FileNum

	CurrentManifestNum base.FileNum
	PendingManifestNum base.FileNum
	LogNumber          base.FileNum
	PrevLogNumber      base.FileNum

	RecycleLogFileNum int
	AliveLogs         []AliveLog

	DBPaths  []PathSpec
	WALDir   string
	DBLogDir string

	WALTTLSeconds  int64
	WALSizeLimitMB int64
	KeepLogFileNum int
	ScheduleOnly   bool

	InfoLogPrefix string
}

// Candidate is one filesystem entry under consideration for deletion.
type Candidate struct {
	Dir      string
	PathID   int
	Filename string
	FileNum  base.FileNum
	FileType base.FileType
}

// Plan is the output of Resolve: what to do with every candidate file.
// Resolve performs no I/O beyond the directory listings of a full scan;
// Execute does the rest.
type Plan struct {
	Recycle []AliveLog
	Delete  []Candidate
	Archive []Candidate
}

// TableDeleteInfo describes one table file deletion, emitted through
// EventListener.TableDeleted.
type TableDeleteInfo struct {
	Path    string
	FileNum base.FileNum
	Err     error
}

// EventListener holds the callbacks the resolver emits during Execute. Any
// of the fields may be nil.
type EventListener struct {
	TableDeleted func(TableDeleteInfo)
}

// ObsoleteFileResolver classifies and purges files no longer referenced by
// any live snapshot.
type ObsoleteFileResolver struct {
	FS            vfs.FS
	Cleaner       vfs.Cleaner
	Logger        base.Logger
	Tables        TableEvictor
	WAL           WALArchiver
	Events        EventListener
	Purge         *PurgeQueue
	MinScanPeriod time.Duration

	mu struct {
		sync.Mutex
		lastFullScan time.Time
	}
}

// shouldFullScan decides whether this pass lists directories or trusts
// the deletion bookkeeping accumulated since the last scan.
func (r *ObsoleteFileResolver) shouldFullScan(in ScanInputs) bool {
	if in.NoFullScan {
		return false
	}
	if in.Force || r.MinScanPeriod == 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if in.Now.Sub(r.mu.lastFullScan) < r.MinScanPeriod {
		return false
	}
	r.mu.lastFullScan = in.Now
	return true
}

// Resolve classifies every candidate file and returns a Plan. It
// performs no I/O beyond the directory listings required for a full
// scan.
func (r *ObsoleteFileResolver) Resolve(in ScanInputs) Plan {
	minPendingOutput := ^base.FileNum(0)
	for n := range in.PendingOutputs {
		if n < minPendingOutput {
			minPendingOutput = n
		}
	}

	var candidates []Candidate
	if r.shouldFullScan(in) {
		candidates = append(candidates, r.listDir(in.WALDir, 0, in.InfoLogPrefix)...)
		candidates = append(candidates, r.listDir(in.DBLogDir, 0, in.InfoLogPrefix)...)
		for _, p := range in.DBPaths {
			candidates = append(candidates, r.listDir(p.Path, p.PathID, in.InfoLogPrefix)...)
		}
	}
	for _, n := range in.ObsoleteTables {
		candidates = append(candidates, Candidate{FileNum: n, FileType: base.FileTypeTable})
	}
	for _, n := range in.ObsoleteManifests {
		candidates = append(candidates, Candidate{FileNum: n, FileType: base.FileTypeDescriptor})
	}

	plan := Plan{}
	plan.Recycle, plan.Delete = r.reapLogs(in)
	recycling := make(map[base.FileNum]struct{}, len(plan.Recycle))
	for _, l := range plan.Recycle {
		recycling[l.Number] = struct{}{}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Filename != candidates[j].Filename {
			return candidates[i].Filename > candidates[j].Filename
		}
		return candidates[i].PathID > candidates[j].PathID
	})
	candidates = dedupAdjacent(candidates)

	var infoLogs []Candidate
	for _, c := range candidates {
		switch c.FileType {
		case base.FileTypeLog:
			if c.FileNum >= in.LogNumber || c.FileNum == in.PrevLogNumber {
				continue
			}
			if _, ok := recycling[c.FileNum]; ok {
				continue
			}
			plan.Delete = append(plan.Delete, c)
		case base.FileTypeDescriptor:
			if c.FileNum >= in.CurrentManifestNum {
				continue
			}
			plan.Delete = append(plan.Delete, c)
		case base.FileTypeTable:
			if _, live := in.LiveTableNums[c.FileNum]; live {
				continue
			}
			if c.FileNum >= minPendingOutput {
				continue
			}
			if _, frozen := in.FrozenTableNums[c.FileNum]; frozen {
				continue
			}
			plan.Delete = append(plan.Delete, c)
		case base.FileTypeTemp:
			if _, live := in.LiveTableNums[c.FileNum]; live {
				continue
			}
			if c.FileNum == in.PendingManifestNum || c.FileNum >= minPendingOutput {
				continue
			}
			if strings.Contains(c.Filename, base.OptionsFilePrefix) {
				continue
			}
			plan.Delete = append(plan.Delete, c)
		case base.FileTypeInfoLog:
			infoLogs = append(infoLogs, c)
		default:
			// Current, DBLock, Identity, MetaDatabase, Options, Blob: always kept.
		}
	}

	r.classifyWAL(in, &plan)
	r.retireInfoLogs(in, infoLogs, &plan)
	return plan
}

// classifyWAL decides, for every log already routed to plan.Delete, whether
// it should be archived instead.
func (r *ObsoleteFileResolver) classifyWAL(in ScanInputs, plan *Plan) {
	archiveWAL := in.WALTTLSeconds > 0 || in.WALSizeLimitMB > 0
	if !archiveWAL {
		return
	}
	kept := plan.Delete[:0]
	for _, c := range plan.Delete {
		if c.FileType == base.FileTypeLog {
			plan.Archive = append(plan.Archive, c)
			continue
		}
		kept = append(kept, c)
	}
	plan.Delete = kept
}

// retireInfoLogs keeps the newest KeepLogFileNum info-logs and deletes
// the rest.
func (r *ObsoleteFileResolver) retireInfoLogs(in ScanInputs, logs []Candidate, plan *Plan) {
	if len(logs) <= in.KeepLogFileNum {
		return
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Filename < logs[j].Filename })
	plan.Delete = append(plan.Delete, logs[:len(logs)-in.KeepLogFileNum]...)
}

// reapLogs drains alive logs numbered below in.LogNumber into either
// the recycle list or the delete list.
func (r *ObsoleteFileResolver) reapLogs(in ScanInputs) (recycle []AliveLog, del []Candidate) {
	logs := in.AliveLogs
	i := 0
	for i < len(logs) && logs[i].Number < in.LogNumber {
		if len(recycle) < in.RecycleLogFileNum {
			recycle = append(recycle, logs[i])
		} else {
			del = append(del, Candidate{
				Dir:      in.WALDir,
				FileNum:  logs[i].Number,
				FileType: base.FileTypeLog,
			})
		}
		i++
	}
	return recycle, del
}

func (r *ObsoleteFileResolver) listDir(dir string, pathID int, infoLogPrefix string) []Candidate {
	if dir == "" || r.FS == nil {
		return nil
	}
	names, err := r.FS.List(dir)
	if err != nil {
		r.logError(err, "listing "+dir)
		return nil
	}
	out := make([]Candidate, 0, len(names))
	for _, name := range names {
		fileType, fileNum, ok := base.ParseFilename(name)
		if !ok {
			if infoLogPrefix == "" || !strings.HasPrefix(name, infoLogPrefix) {
				continue
			}
			fileType, fileNum = base.FileTypeInfoLog, 0
		}
		out = append(out, Candidate{
			Dir: dir, PathID: pathID, Filename: "/" + name, FileNum: fileNum, FileType: fileType,
		})
	}
	return out
}

func dedupAdjacent(cs []Candidate) []Candidate {
	out := cs[:0]
	for i, c := range cs {
		if i > 0 && c.Filename == cs[i-1].Filename && c.PathID == cs[i-1].PathID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// path builds the filesystem path for a candidate, defaulting to the first
// configured data directory when the candidate wasn't discovered by a
// directory scan (table/manifest entries sourced from the version set).
func (r *ObsoleteFileResolver) path(c Candidate, in ScanInputs) string {
	dir := c.Dir
	if dir == "" {
		switch c.FileType {
		case base.FileTypeLog:
			dir = in.WALDir
		default:
			if len(in.DBPaths) > 0 {
				dir = in.DBPaths[0].Path
			}
		}
	}
	return r.FS.PathJoin(dir, base.MakeFilename(c.FileType, c.FileNum))
}

// Execute performs the I/O a Plan describes: recycling is a bookkeeping
// no-op here (the WAL manager owns the recycle list itself, see walmgr),
// archived logs go through WAL, everything else through Cleaner. When
// in.ScheduleOnly is set and a PurgeQueue is
// attached, the work is enqueued for the background purge goroutine
// instead of being performed inline.
func (r *ObsoleteFileResolver) Execute(plan Plan, in ScanInputs) {
	if in.ScheduleOnly && r.Purge != nil {
		r.Purge.Enqueue(plan, in)
		return
	}
	r.executeSync(plan, in)
}

func (r *ObsoleteFileResolver) executeSync(plan Plan, in ScanInputs) {
	for _, c := range plan.Archive {
		path := r.path(c, in)
		if err := r.WAL.ArchiveWALFile(r.FS, path, c.FileNum); err != nil {
			r.logError(err, "archiving "+path)
		}
	}
	for _, c := range plan.Delete {
		path := r.path(c, in)
		err := r.Cleaner.Clean(r.FS, c.FileType, path)
		if err != nil {
			r.logError(err, "deleting "+path)
		}
		if c.FileType == base.FileTypeTable {
			if err == nil && r.Tables != nil {
				r.Tables.Evict(c.FileNum)
			}
			if r.Events.TableDeleted != nil {
				r.Events.TableDeleted(TableDeleteInfo{Path: path, FileNum: c.FileNum, Err: err})
			}
		}
	}
}

func (r *ObsoleteFileResolver) logError(err error, action string) {
	if r.Logger == nil {
		return
	}
	if oserror.IsNotExist(err) {
		r.Logger.Infof("cleanup: %s: %v (already gone)", action, err)
		return
	}
	r.Logger.Errorf("cleanup: %s: %v", action, err)
}

// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"sync"
	"sync/atomic"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/cockroachdb/errors"
)

// Version is one reachable snapshot: a refcounted VersionStorage threaded
// onto the version set's doubly-linked list. A reader that needs the
// snapshot to stay valid holds a reference via Ref/Unref; the version set
// itself holds one reference on behalf of "current". A file number deleted
// from the live set in version N+1 may still be read via version N until
// version N's last reference drops.
type Version struct {
	Storage *VersionStorage

	// Deleted is called with the files that became unreferenced when this
	// version's last reference was dropped, while the list's mutex is held.
	Deleted func(obsolete []*FileMetadata)

	refs atomic.Int32

	// The next/prev link for the VersionList doubly-linked list of versions.
	prev, next *Version
	list       *VersionList
}

// Refs returns the number of references to the version.
func (v *Version) Refs() int32 {
	return v.refs.Load()
}

// Ref increments the version refcount.
func (v *Version) Ref() {
	v.refs.Add(1)
}

// Unref decrements the version refcount. If the last reference was removed,
// the version is removed from the list of versions and Deleted is invoked
// with any files whose own reference counts dropped to zero. Requires that
// the VersionList mutex is NOT locked.
func (v *Version) Unref() {
	if v.refs.Add(-1) == 0 {
		l := v.list
		l.mu.Lock()
		l.Remove(v)
		v.Deleted(v.unrefFiles())
		l.mu.Unlock()
	}
}

// UnrefLocked is like Unref, but requires that the VersionList mutex is
// already locked.
func (v *Version) UnrefLocked() {
	if v.refs.Add(-1) == 0 {
		v.list.Remove(v)
		v.Deleted(v.unrefFiles())
	}
}

// unrefFiles drops this version's reference on every file it lists, level
// residents and frozen parents both, and returns the ones that became
// deletable. Slice references are deliberately not touched here: sliceRefs
// tracks slice parentage, which is ended by a builder delete of the carrying
// file, not by snapshot retirement.
func (v *Version) unrefFiles() []*FileMetadata {
	var obsolete []*FileMetadata
	vs := v.Storage
	for level := 0; level < vs.NumLevels(); level++ {
		for _, f := range vs.LevelFiles(level) {
			f.Unref()
			if f.Deletable() {
				obsolete = append(obsolete, f)
			}
		}
	}
	for _, f := range vs.FrozenFiles() {
		f.Unref()
		if f.Deletable() {
			obsolete = append(obsolete, f)
		}
	}
	return obsolete
}

// Next returns the next version in the list of versions.
func (v *Version) Next() *Version {
	return v.next
}

// VersionList holds a list of versions. The versions are ordered oldest to
// newest.
type VersionList struct {
	mu   *sync.Mutex
	root Version
}

// Init initializes the version list.
func (l *VersionList) Init(mu *sync.Mutex) {
	l.mu = mu
	l.root.next = &l.root
	l.root.prev = &l.root
}

// Empty returns true if the list is empty, and false otherwise.
func (l *VersionList) Empty() bool {
	return l.root.next == &l.root
}

// Front returns the oldest version in the list. Note that this version is
// only valid if Empty() returns false.
func (l *VersionList) Front() *Version {
	return l.root.next
}

// Back returns the newest version in the list. Note that this version is
// only valid if Empty() returns false.
func (l *VersionList) Back() *Version {
	return l.root.prev
}

// PushBack adds a new version to the back of the list. This new version
// becomes the "newest" version in the list.
func (l *VersionList) PushBack(v *Version) {
	if v.list != nil || v.prev != nil || v.next != nil {
		panic(errors.AssertionFailedf("manifest: version list is inconsistent"))
	}
	v.prev = l.root.prev
	v.prev.next = v
	v.next = &l.root
	v.next.prev = v
	v.list = l
}

// Remove removes the specified version from the list.
func (l *VersionList) Remove(v *Version) {
	if v == &l.root {
		panic(errors.AssertionFailedf("manifest: cannot remove version list root node"))
	}
	if v.list != l {
		panic(errors.AssertionFailedf("manifest: version list is inconsistent"))
	}
	v.prev.next = v.next
	v.next.prev = v.prev
	v.list = nil
	// Avoid memory leaks.
	v.prev = nil
	v.next = nil
}

// AliveLog is one entry of the alive-log deque: a WAL that may still hold
// unflushed mutations. syncing marks a log currently being fsynced; the
// deque entry cannot be retired until the sync completes.
type AliveLog struct {
	Number  FileNum
	Size    uint64
	syncing bool
}

// VersionSet manages the collection of reachable versions, the shared
// counters that assign file numbers, the pending-outputs set whose minimum
// acts as the deletion watermark, and the alive-log deque. All methods
// require the global mutex passed to Init to be held by the caller unless
// noted otherwise.
type VersionSet struct {
	cmp            base.Compare
	numLevels      int
	mergeThreshold int

	forceConsistencyChecks bool

	mu       *sync.Mutex
	versions VersionList

	// versionNumber is the monotonic identifier stamped onto each installed
	// VersionStorage.
	versionNumber int64

	// MergeTasks is the superversion's merge-task set onto which builders
	// enqueue deferred slice merges.
	MergeTasks MergeTaskSet

	// Metrics accrues compaction-input sizes across every applied edit.
	Metrics CompactionMetrics

	// obsoleteFn points at addObsoleteLocked. Avoids allocating a new
	// closure on the creation of every version.
	obsoleteFn        func(obsolete []*FileMetadata)
	obsoleteTables    []*FileMetadata
	obsoleteManifests []FileNum

	// minUnflushedLogNum is the smallest WAL number whose mutations have not
	// all been flushed to an sstable.
	minUnflushedLogNum FileNum
	// prevLogNum is the WAL number in use immediately before the current
	// one; it may still be replayed on recovery and must be kept.
	prevLogNum FileNum

	// nextFileNum assigns file numbers for WALs, MANIFESTs, sstables and
	// OPTIONS files from a single counter.
	nextFileNum FileNum

	// manifestFileNum is the current MANIFEST; pendingManifestFileNum is a
	// MANIFEST being written but not yet installed as current.
	manifestFileNum        FileNum
	pendingManifestFileNum FileNum

	// pendingOutputs holds file numbers reserved by in-progress jobs. Its
	// minimum is the watermark below which a file number can be classified
	// as finalised.
	pendingOutputs map[FileNum]struct{}

	aliveLogs   []AliveLog
	logSyncCond sync.Cond
}

// Init prepares the version set and installs an empty initial version. mu is
// the embedder's global mutex; the version set does not lock it itself.
func (vs *VersionSet) Init(numLevels int, cmp base.Compare, mu *sync.Mutex, mergeThreshold int, forceConsistencyChecks bool) {
	vs.cmp = cmp
	vs.numLevels = numLevels
	vs.mergeThreshold = mergeThreshold
	vs.forceConsistencyChecks = forceConsistencyChecks
	vs.mu = mu
	vs.versions.Init(mu)
	vs.logSyncCond.L = mu
	vs.obsoleteFn = vs.addObsoleteLocked
	vs.pendingOutputs = make(map[FileNum]struct{})
	vs.nextFileNum = 1

	storage := NewVersionStorage(numLevels, cmp)
	storage.SetForceConsistencyChecks(forceConsistencyChecks)
	vs.append(storage)
}

func (vs *VersionSet) addObsoleteLocked(obsolete []*FileMetadata) {
	vs.obsoleteTables = append(vs.obsoleteTables, obsolete...)
}

// append installs storage as the newest version, transferring the version
// set's own "current" reference from the previous newest version.
func (vs *VersionSet) append(storage *VersionStorage) *Version {
	vs.versionNumber++
	storage.SetVersionNumber(vs.versionNumber)
	v := &Version{Storage: storage, Deleted: vs.obsoleteFn}
	v.Ref()
	var prev *Version
	if !vs.versions.Empty() {
		prev = vs.versions.Back()
	}
	vs.versions.PushBack(v)
	if prev != nil {
		prev.UnrefLocked()
	}
	return v
}

// Current returns the newest version.
func (vs *VersionSet) Current() *Version {
	return vs.versions.Back()
}

// LogAndApply applies edits to the current version and installs the result
// as the new current version. The name follows the classic flow; the
// manifest's on-disk encoding is an external concern and not written here.
// An edit batch referencing invalid levels without cancellation is rejected
// as a whole; invariant violations inside the builder abort.
func (vs *VersionSet) LogAndApply(edits ...*VersionEdit) (*Version, error) {
	b := NewBuilder(vs.Current().Storage, vs.cmp, &vs.MergeTasks, vs.mergeThreshold)
	b.SetMetrics(&vs.Metrics)
	for _, edit := range edits {
		if err := edit.Validate(); err != nil {
			return nil, err
		}
		b.Apply(edit)
	}
	if !b.CheckConsistencyForNumLevels() {
		return nil, errors.Errorf("manifest: edit batch references levels >= %d without cancellation", vs.numLevels)
	}
	storage := b.SaveTo(vs.versionNumber + 1)
	// SaveTo stamps the version number it was given; append re-stamps with
	// the same value after bumping vs.versionNumber.
	v := vs.append(storage)

	for _, edit := range edits {
		if edit.MinUnflushedLogNum != 0 {
			vs.minUnflushedLogNum = edit.MinUnflushedLogNum
			vs.MarkFileNumUsed(edit.MinUnflushedLogNum)
		}
		if edit.ManifestFileNum != 0 {
			if vs.manifestFileNum != 0 && vs.manifestFileNum != edit.ManifestFileNum {
				vs.obsoleteManifests = append(vs.obsoleteManifests, vs.manifestFileNum)
			}
			vs.manifestFileNum = edit.ManifestFileNum
			vs.MarkFileNumUsed(edit.ManifestFileNum)
		}
	}
	return v, nil
}

// NextFileNum allocates and returns a new file number.
func (vs *VersionSet) NextFileNum() FileNum {
	n := vs.nextFileNum
	vs.nextFileNum++
	return n
}

// MarkFileNumUsed advances the allocator past n, for numbers handed out by
// an external recovery path.
func (vs *VersionSet) MarkFileNumUsed(n FileNum) {
	if vs.nextFileNum <= n {
		vs.nextFileNum = n + 1
	}
}

// MinUnflushedLogNum returns the version set's own WAL retention floor,
// before any two-phase-commit adjustment.
func (vs *VersionSet) MinUnflushedLogNum() FileNum { return vs.minUnflushedLogNum }

// PrevLogNum returns the previous WAL's number, or zero.
func (vs *VersionSet) PrevLogNum() FileNum { return vs.prevLogNum }

// SetPrevLogNum records the previous WAL's number.
func (vs *VersionSet) SetPrevLogNum(n FileNum) { vs.prevLogNum = n }

// ManifestFileNum returns the current MANIFEST's file number.
func (vs *VersionSet) ManifestFileNum() FileNum { return vs.manifestFileNum }

// PendingManifestFileNum returns the MANIFEST number being written but not
// yet current, or zero.
func (vs *VersionSet) PendingManifestFileNum() FileNum { return vs.pendingManifestFileNum }

// SetPendingManifestFileNum records a MANIFEST being written.
func (vs *VersionSet) SetPendingManifestFileNum(n FileNum) { vs.pendingManifestFileNum = n }

// ObsoleteManifests drains the accumulated obsolete MANIFEST numbers.
func (vs *VersionSet) ObsoleteManifests() []FileNum {
	out := vs.obsoleteManifests
	vs.obsoleteManifests = nil
	return out
}

// ObsoleteTables drains the files whose reference counts reached zero as
// versions retired; the caller routes them into obsolete-file resolution.
func (vs *VersionSet) ObsoleteTables() []*FileMetadata {
	out := vs.obsoleteTables
	vs.obsoleteTables = nil
	return out
}

// AddPendingOutput reserves n against deletion while a job writes it.
func (vs *VersionSet) AddPendingOutput(n FileNum) {
	vs.pendingOutputs[n] = struct{}{}
}

// RemovePendingOutput releases the reservation on n.
func (vs *VersionSet) RemovePendingOutput(n FileNum) {
	delete(vs.pendingOutputs, n)
}

// PendingOutputs returns a copy of the reserved file-number set.
func (vs *VersionSet) PendingOutputs() map[FileNum]struct{} {
	out := make(map[FileNum]struct{}, len(vs.pendingOutputs))
	for n := range vs.pendingOutputs {
		out[n] = struct{}{}
	}
	return out
}

// LiveFileNums returns the union, across every reachable version, of file
// numbers listed at any level, parents of any slice, and the frozen sets.
// Pending outputs are tracked separately as the deletion watermark.
func (vs *VersionSet) LiveFileNums() map[FileNum]struct{} {
	live := make(map[FileNum]struct{})
	for v := vs.versions.Front(); v != &vs.versions.root; v = v.Next() {
		v.Storage.LiveFileNums(live)
	}
	return live
}

// FrozenFileNums returns the union of every reachable version's frozen set.
func (vs *VersionSet) FrozenFileNums() map[FileNum]struct{} {
	out := make(map[FileNum]struct{})
	for v := vs.versions.Front(); v != &vs.versions.root; v = v.Next() {
		for n := range v.Storage.FrozenFiles() {
			out[n] = struct{}{}
		}
	}
	return out
}

// AddAliveLog pushes a newly created WAL onto the back of the alive-log
// deque.
func (vs *VersionSet) AddAliveLog(n FileNum, size uint64) {
	vs.aliveLogs = append(vs.aliveLogs, AliveLog{Number: n, Size: size})
}

// SetAliveLogSize updates the recorded size of an alive log as it grows.
func (vs *VersionSet) SetAliveLogSize(n FileNum, size uint64) {
	for i := range vs.aliveLogs {
		if vs.aliveLogs[i].Number == n {
			vs.aliveLogs[i].Size = size
			return
		}
	}
}

// SetLogSyncing flags whether the given log is currently being fsynced.
// Clearing the flag wakes any retirement pass blocked on it.
func (vs *VersionSet) SetLogSyncing(n FileNum, syncing bool) {
	for i := range vs.aliveLogs {
		if vs.aliveLogs[i].Number == n {
			vs.aliveLogs[i].syncing = syncing
			break
		}
	}
	if !syncing {
		vs.logSyncCond.Broadcast()
	}
}

// RetireAliveLogs pops every alive log numbered below keepBelow and returns
// them oldest-first. If the head of the deque is being fsynced, the call
// waits on the log-sync condition variable and retries, releasing the
// global mutex while blocked.
func (vs *VersionSet) RetireAliveLogs(keepBelow FileNum) []AliveLog {
	var retired []AliveLog
	for len(vs.aliveLogs) > 0 && vs.aliveLogs[0].Number < keepBelow {
		if vs.aliveLogs[0].syncing {
			vs.logSyncCond.Wait()
			continue
		}
		retired = append(retired, vs.aliveLogs[0])
		vs.aliveLogs = vs.aliveLogs[1:]
	}
	return retired
}

// AliveLogs returns a copy of the alive-log deque, oldest-first.
func (vs *VersionSet) AliveLogs() []AliveLog {
	out := make([]AliveLog, len(vs.aliveLogs))
	copy(out, vs.aliveLogs)
	return out
}

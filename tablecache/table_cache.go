// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tablecache is a concrete external table cache, the collaborator
// consumed by TableHandleLoader and ObsoleteFileResolver. It is sharded
// by file number and holds one handle per FileMetadata rather than
// per-iterator, matching the single cached-reader-per-file model of the
// version core.
package tablecache

import (
	"context"
	"io"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
)

// Reader is the open table reader a Cache hands out. Implementations wrap
// an sstable.Reader or equivalent; this package only needs the lifetime.
type Reader interface {
	io.Closer
}

// Opener opens the physical table reader for meta. It is the seam between
// this cache and whatever encodes/decodes SSTs, which is out of scope
// for this core.
type Opener interface {
	Open(ctx context.Context, dir string, fs vfs.FS, meta *manifest.FileMetadata) (Reader, error)
}

type node struct {
	fileNum  base.FileNum
	reader   Reader
	refCount int32
	next     *node
	prev     *node
}

type shard struct {
	mu struct {
		sync.RWMutex
		nodes map[base.FileNum]*node
		lru   node
	}
	opens  singleflight.Group
	size   int
	dir    string
	fs     vfs.FS
	opener Opener
}

func (s *shard) init(dir string, fs vfs.FS, opener Opener, size int) {
	s.dir = dir
	s.fs = fs
	s.opener = opener
	s.size = size
	s.mu.nodes = make(map[base.FileNum]*node)
	s.mu.lru.next = &s.mu.lru
	s.mu.lru.prev = &s.mu.lru
}

func (s *shard) unlink(n *node) {
	n.next.prev = n.prev
	n.prev.next = n.next
	n.next, n.prev = nil, nil
}

func (s *shard) pushFront(n *node) {
	n.next = s.mu.lru.next
	n.prev = &s.mu.lru
	n.next.prev = n
	n.prev.next = n
}

func (s *shard) findOrOpen(ctx context.Context, meta *manifest.FileMetadata) (manifest.TableHandle, error) {
	s.mu.Lock()
	if n, ok := s.mu.nodes[meta.FileNum]; ok {
		atomic.AddInt32(&n.refCount, 1)
		s.unlink(n)
		s.pushFront(n)
		s.mu.Unlock()
		return &handle{n: n, s: s}, nil
	}
	s.mu.Unlock()

	// Concurrent misses on the same file collapse into a single physical
	// open rather than racing the opener.
	key := strconv.FormatUint(uint64(meta.FileNum), 10)
	v, err, _ := s.opens.Do(key, func() (interface{}, error) {
		return s.opener.Open(ctx, s.dir, s.fs, meta)
	})
	if err != nil {
		return nil, err
	}
	reader := v.(Reader)

	s.mu.Lock()
	if existing, ok := s.mu.nodes[meta.FileNum]; ok {
		atomic.AddInt32(&existing.refCount, 1)
		s.unlink(existing)
		s.pushFront(existing)
		s.mu.Unlock()
		return &handle{n: existing, s: s}, nil
	}
	n := &node{fileNum: meta.FileNum, reader: reader, refCount: 1}
	s.mu.nodes[meta.FileNum] = n
	s.pushFront(n)
	s.evictLocked()
	s.mu.Unlock()
	return &handle{n: n, s: s}, nil
}

// evictLocked drops the coldest entries once the shard exceeds its size
// budget. s.mu must be held for writing.
func (s *shard) evictLocked() {
	if s.size <= 0 {
		return
	}
	for len(s.mu.nodes) > s.size {
		victim := s.mu.lru.prev
		if victim == &s.mu.lru {
			return
		}
		if atomic.LoadInt32(&victim.refCount) > 0 {
			// Still referenced by a live FileMetadata; leave it. Nothing
			// further back in the LRU is any more evictable in this
			// simplified, non-moving-window scan.
			return
		}
		delete(s.mu.nodes, victim.fileNum)
		s.unlink(victim)
		_ = victim.reader.Close()
	}
}

func (s *shard) evict(fileNum base.FileNum) {
	s.mu.Lock()
	n, ok := s.mu.nodes[fileNum]
	if ok {
		delete(s.mu.nodes, fileNum)
		s.unlink(n)
	}
	s.mu.Unlock()
	if ok {
		_ = n.reader.Close()
	}
}

func (s *shard) unref(n *node) {
	if atomic.AddInt32(&n.refCount, -1) > 0 {
		return
	}
	s.mu.Lock()
	if current, ok := s.mu.nodes[n.fileNum]; ok && current == n {
		delete(s.mu.nodes, n.fileNum)
		s.unlink(n)
	}
	s.mu.Unlock()
	_ = n.reader.Close()
}

// handle is the manifest.TableHandle wrapper returned to callers; each open
// call gets its own handle so releasing one caller's reference doesn't
// double-unref the shard's node.
type handle struct {
	n        *node
	s        *shard
	released int32
}

// Release implements manifest.TableHandle.
func (h *handle) Release() {
	if !atomic.CompareAndSwapInt32(&h.released, 0, 1) {
		return
	}
	h.s.unref(h.n)
}

// Cache is a sharded table-reader cache implementing both
// manifest.TableOpener (so LoadTableHandles can use it directly) and
// cleanup.TableEvictor (so ObsoleteFileResolver can evict on delete).
type Cache struct {
	shards []shard
}

// New creates a Cache with numShards shards (0 picks GOMAXPROCS), each
// capped at perShardSize entries (0 means unbounded).
func New(dir string, fs vfs.FS, opener Opener, perShardSize, numShards int) *Cache {
	if numShards <= 0 {
		numShards = runtime.GOMAXPROCS(0)
	}
	c := &Cache{shards: make([]shard, numShards)}
	for i := range c.shards {
		c.shards[i].init(dir, fs, opener, perShardSize)
	}
	return c
}

func (c *Cache) shardFor(fileNum base.FileNum) *shard {
	return &c.shards[uint64(fileNum)%uint64(len(c.shards))]
}

// Open implements manifest.TableOpener.
func (c *Cache) Open(ctx context.Context, meta *manifest.FileMetadata) (manifest.TableHandle, error) {
	return c.shardFor(meta.FileNum).findOrOpen(ctx, meta)
}

// Evict implements cleanup.TableEvictor.
func (c *Cache) Evict(fileNum base.FileNum) {
	c.shardFor(fileNum).evict(fileNum)
}

// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/cockroachdb/errors"
)

// FileIterator is the forward-iteration contract a SliceIterator decorates:
// a positioned cursor over one table file's internal keys. The full table
// iterator lives with the SST reader, outside this core; this interface is
// the slice of it that slicing needs.
type FileIterator interface {
	// SeekGE positions the iterator at the first key >= key under the
	// internal key comparator, returning false if no such key exists.
	SeekGE(key base.InternalKey) bool
	// Next advances to the next key, returning false at the end.
	Next() bool
	// Key returns the current key. Only valid after a positioning call
	// returned true.
	Key() base.InternalKey
}

// SliceIterator restricts a parent file's iterator to one FileSlice's key
// range: it seeks to the slice's smallest bound (skipping it when the bound
// is exclusive) and reports exhaustion once past the slice's largest bound,
// which is always inclusive.
type SliceIterator struct {
	slice *FileSlice
	iter  FileIterator
	cmp   base.Compare
	valid bool
	// prevKey retains the last returned key so forward traversal can assert
	// strictly increasing internal-key order.
	prevKey  base.InternalKey
	havePrev bool
}

// NewSliceIterator wraps iter, restricting it to slice's bounds.
func NewSliceIterator(slice *FileSlice, iter FileIterator, cmp base.Compare) *SliceIterator {
	return &SliceIterator{slice: slice, iter: iter, cmp: cmp}
}

// First positions the iterator at the slice's first key.
func (i *SliceIterator) First() bool {
	i.havePrev = false
	i.valid = i.iter.SeekGE(i.slice.Smallest)
	if i.valid && !i.slice.IsContainSmallest {
		for i.valid && base.InternalCompare(i.cmp, i.iter.Key(), i.slice.Smallest) == 0 {
			i.valid = i.iter.Next()
		}
	}
	i.clampToLargest()
	return i.valid
}

// Next advances the iterator, asserting strictly increasing internal-key
// order over the keys it emits.
func (i *SliceIterator) Next() bool {
	if !i.valid {
		return false
	}
	i.prevKey = i.iter.Key()
	i.havePrev = true
	i.valid = i.iter.Next()
	if i.valid && i.havePrev &&
		base.InternalCompare(i.cmp, i.iter.Key(), i.prevKey) <= 0 {
		panic(errors.AssertionFailedf(
			"manifest: slice iterator keys out of order: %s then %s", i.prevKey, i.iter.Key()))
	}
	i.clampToLargest()
	return i.valid
}

// clampToLargest invalidates the iterator once past the slice's inclusive
// largest bound.
func (i *SliceIterator) clampToLargest() {
	if i.valid && base.InternalCompare(i.cmp, i.iter.Key(), i.slice.Largest) > 0 {
		i.valid = false
	}
}

// Valid reports whether the iterator is positioned within the slice.
func (i *SliceIterator) Valid() bool { return i.valid }

// Key returns the current key; only valid while Valid() is true.
func (i *SliceIterator) Key() base.InternalKey { return i.iter.Key() }

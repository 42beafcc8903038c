// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"cmp"
	"fmt"
)

// Compare compares two user keys, returning -1, 0 or +1 depending on whether
// a is less than, equal to, or greater than b. A nil Compare is never valid;
// every entry point into this package takes one explicitly rather than
// assuming a global default, since the comparator is an external
// collaborator of the version subsystem, not something it implements.
type Compare func(a, b []byte) int

// DefaultCompare orders keys lexicographically, for use by tests that don't
// care about a specific user key encoding.
func DefaultCompare(a, b []byte) int {
	return cmp.Compare(string(a), string(b))
}

// SeqNum is a sequence number defining precedence among identical user keys;
// a higher sequence number takes precedence over a lower one.
type SeqNum uint64

// SeqNumMax is the largest valid sequence number, used to build search keys
// and exclusive sentinels that must sort after every real key with the same
// user key.
const SeqNumMax SeqNum = 1<<64 - 1

// InternalKeyTrailer carries the metadata that follows the user key. This
// package only needs the sequence number, so the trailer is the sequence
// number itself.
type InternalKeyTrailer = SeqNum

// InternalKey is the internal form of a user key: a user key plus a sequence
// number that breaks ties between instances of the same user key written at
// different times.
type InternalKey struct {
	UserKey []byte
	Trailer InternalKeyTrailer
}

// MakeInternalKey constructs an InternalKey from a user key and sequence
// number.
func MakeInternalKey(userKey []byte, seqNum SeqNum) InternalKey {
	return InternalKey{UserKey: userKey, Trailer: seqNum}
}

// SeqNum returns the key's sequence number.
func (k InternalKey) SeqNum() SeqNum {
	return k.Trailer
}

// String implements fmt.Stringer, used by test failure messages and the
// vertool CLI.
func (k InternalKey) String() string {
	return fmt.Sprintf("%s#%d", k.UserKey, k.Trailer)
}

// InternalCompare orders internal keys first by user key under cmp, then by
// descending sequence number so that, for equal user keys, the most recent
// write sorts first.
func InternalCompare(cmp Compare, a, b InternalKey) int {
	if x := cmp(a.UserKey, b.UserKey); x != 0 {
		return x
	}
	return -compareUint64(uint64(a.Trailer), uint64(b.Trailer))
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/redact"
)

// FileNum is an identifier for a file: SSTs, WALs and manifests all draw
// from the same monotonically increasing counter.
type FileNum uint64

// String renders the file number as a fixed-width, zero-padded decimal,
// the form used inside filenames.
func (fn FileNum) String() string { return fmt.Sprintf("%06d", uint64(fn)) }

// SafeFormat implements redact.SafeFormatter so file numbers can appear in
// logs without being treated as sensitive payload.
func (fn FileNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%06d", redact.SafeUint(fn))
}

// FileType enumerates the kinds of file the resolver must classify.
type FileType int

// The FileType enumeration.
const (
	FileTypeLog FileType = iota
	FileTypeDescriptor
	FileTypeTable
	FileTypeTemp
	FileTypeInfoLog
	FileTypeCurrent
	FileTypeDBLock
	FileTypeIdentity
	FileTypeMetaDatabase
	FileTypeOptions
	FileTypeBlob
)

var fileTypeNames = [...]string{
	FileTypeLog:          "log",
	FileTypeDescriptor:   "manifest",
	FileTypeTable:        "sstable",
	FileTypeTemp:         "temp",
	FileTypeInfoLog:      "info-log",
	FileTypeCurrent:      "current",
	FileTypeDBLock:       "db-lock",
	FileTypeIdentity:     "identity",
	FileTypeMetaDatabase: "meta-database",
	FileTypeOptions:      "options",
	FileTypeBlob:         "blob",
}

// String implements fmt.Stringer.
func (t FileType) String() string {
	if t < 0 || int(t) >= len(fileTypeNames) {
		return "unknown"
	}
	return fileTypeNames[t]
}

// OptionsFilePrefix marks options files and their temp variants; a temp
// file carrying it is never deleted by the resolver.
const OptionsFilePrefix = "OPTIONS-"

// MakeFilename builds a filename from a type and number, the inverse of
// ParseFilename.
func MakeFilename(fileType FileType, fileNum FileNum) string {
	switch fileType {
	case FileTypeLog:
		return fmt.Sprintf("%s.log", fileNum)
	case FileTypeDescriptor:
		return fmt.Sprintf("MANIFEST-%s", fileNum)
	case FileTypeTable:
		return fmt.Sprintf("%s.sst", fileNum)
	case FileTypeTemp:
		return fmt.Sprintf("%s.dbtmp", fileNum)
	case FileTypeInfoLog:
		return "LOG"
	case FileTypeCurrent:
		return "CURRENT"
	case FileTypeDBLock:
		return "LOCK"
	case FileTypeIdentity:
		return "IDENTITY"
	case FileTypeMetaDatabase:
		return "METADB"
	case FileTypeOptions:
		return fmt.Sprintf("%s%s", OptionsFilePrefix, fileNum)
	case FileTypeBlob:
		return fmt.Sprintf("%s.blob", fileNum)
	}
	panic(fmt.Sprintf("base: unknown file type %d", fileType))
}

// ParseFilename parses the components from a base filename. A leading
// "/" is tolerated because the resolver normalises candidates that way.
func ParseFilename(name string) (fileType FileType, fileNum FileNum, ok bool) {
	name = strings.TrimPrefix(name, "/")
	switch {
	case name == "CURRENT":
		return FileTypeCurrent, 0, true
	case name == "LOCK":
		return FileTypeDBLock, 0, true
	case name == "IDENTITY":
		return FileTypeIdentity, 0, true
	case name == "METADB":
		return FileTypeMetaDatabase, 0, true
	case name == "LOG" || strings.HasPrefix(name, "LOG."):
		return FileTypeInfoLog, 0, true
	case strings.HasPrefix(name, "MANIFEST-"):
		n, ok := parseFileNum(name[len("MANIFEST-"):])
		return FileTypeDescriptor, n, ok
	case strings.HasPrefix(name, OptionsFilePrefix):
		rest := name[len(OptionsFilePrefix):]
		if s, isTmp := strings.CutSuffix(rest, ".dbtmp"); isTmp {
			n, ok := parseFileNum(s)
			return FileTypeTemp, n, ok
		}
		n, ok := parseFileNum(rest)
		return FileTypeOptions, n, ok
	default:
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return 0, 0, false
		}
		n, ok := parseFileNum(name[:i])
		if !ok {
			return 0, 0, false
		}
		switch name[i+1:] {
		case "sst":
			return FileTypeTable, n, true
		case "log":
			return FileTypeLog, n, true
		case "blob":
			return FileTypeBlob, n, true
		case "dbtmp":
			return FileTypeTemp, n, true
		}
		return 0, 0, false
	}
}

func parseFileNum(s string) (FileNum, bool) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return FileNum(u), true
}

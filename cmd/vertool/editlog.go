// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
)

// fileRecord is the JSON-friendly encoding of a FileMetadata, used only by
// this tool's edit log. Block-level SST encoding and the WAL record wire
// format are out of scope for this core; vertool's edit log is a minimal
// textual stand-in so the CLI has something to replay.
type fileRecord struct {
	FileNum     uint64 `json:"file_num"`
	Smallest    string `json:"smallest"`
	Largest     string `json:"largest"`
	SmallestSeq uint64 `json:"smallest_seq"`
	LargestSeq  uint64 `json:"largest_seq"`
	Size        uint64 `json:"size"`
}

func (r fileRecord) toMeta() *manifest.FileMetadata {
	return &manifest.FileMetadata{
		FileNum:        manifest.FileNum(r.FileNum),
		Size:           r.Size,
		Smallest:       base.MakeInternalKey([]byte(r.Smallest), base.SeqNum(r.SmallestSeq)),
		Largest:        base.MakeInternalKey([]byte(r.Largest), base.SeqNum(r.LargestSeq)),
		SmallestSeqNum: base.SeqNum(r.SmallestSeq),
		LargestSeqNum:  base.SeqNum(r.LargestSeq),
	}
}

// editRecord is one VersionEdit in JSON form.
type editRecord struct {
	Add []struct {
		Level int        `json:"level"`
		File  fileRecord `json:"file"`
	} `json:"add"`
	Delete []struct {
		Level   int    `json:"level"`
		FileNum uint64 `json:"file_num"`
	} `json:"delete"`
}

func (r editRecord) toEdit() *manifest.VersionEdit {
	edit := &manifest.VersionEdit{}
	for _, a := range r.Add {
		edit.AddFile(a.Level, a.File.toMeta())
	}
	for _, d := range r.Delete {
		edit.DeleteFile(d.Level, manifest.FileNum(d.FileNum))
	}
	return edit
}

// readEditLog decodes a JSON array of editRecord from path.
func readEditLog(path string) ([]*manifest.VersionEdit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading edit log %s", path)
	}
	var records []editRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(err, "parsing edit log %s", path)
	}
	edits := make([]*manifest.VersionEdit, len(records))
	for i, r := range records {
		edits[i] = r.toEdit()
	}
	return edits, nil
}

// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/cleanup"
	"github.com/YF-CHAI/rocksdb-2pc/vfs"
	"github.com/YF-CHAI/rocksdb-2pc/walmgr"
)

var gcConfig struct {
	apply          bool
	manifestNum    uint64
	logNumber      uint64
	walTTLSeconds  int64
	walSizeLimitMB int64
}

var gcCmd = &cobra.Command{
	Use:   "gc <dir>",
	Short: "classify obsolete files in <dir> without deleting them by default",
	Args:  cobra.ExactArgs(1),
	RunE:  runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcConfig.apply, "apply", false, "perform the deletions/archival instead of only reporting them")
	gcCmd.Flags().Uint64Var(&gcConfig.manifestNum, "current-manifest", 0, "current MANIFEST file number")
	gcCmd.Flags().Uint64Var(&gcConfig.logNumber, "log-number", 0, "current WAL file number")
	gcCmd.Flags().Int64Var(&gcConfig.walTTLSeconds, "wal-ttl-seconds", 0, "archive retired WALs instead of deleting for this long")
	gcCmd.Flags().Int64Var(&gcConfig.walSizeLimitMB, "wal-size-limit-mb", 0, "archive retired WALs instead of deleting above this size budget")
}

func runGC(cmd *cobra.Command, args []string) error {
	dir := args[0]
	fs := vfs.Default

	resolver := &cleanup.ObsoleteFileResolver{
		FS:      fs,
		Cleaner: vfs.DeleteCleaner{},
		Logger:  base.DefaultLogger{},
	}

	if gcConfig.walTTLSeconds > 0 || gcConfig.walSizeLimitMB > 0 {
		mgr, err := walmgr.NewManager(fs, fs.PathJoin(dir, "archive"))
		if err != nil {
			return err
		}
		resolver.WAL = mgr
	}

	in := cleanup.ScanInputs{
		Force:              true,
		CurrentManifestNum: base.FileNum(gcConfig.manifestNum),
		LogNumber:          base.FileNum(gcConfig.logNumber),
		WALDir:             dir,
		DBPaths:            []cleanup.PathSpec{{Path: dir, PathID: 0}},
		WALTTLSeconds:      gcConfig.walTTLSeconds,
		WALSizeLimitMB:     gcConfig.walSizeLimitMB,
	}

	plan := resolver.Resolve(in)

	fmt.Println("delete:")
	for _, c := range plan.Delete {
		fmt.Printf("  %s %06d\n", c.FileType, c.FileNum)
	}
	fmt.Println("archive:")
	for _, c := range plan.Archive {
		fmt.Printf("  %s %06d\n", c.FileType, c.FileNum)
	}
	fmt.Println("recycle:")
	for _, l := range plan.Recycle {
		fmt.Printf("  %06d size=%d\n", l.Number, l.Size)
	}

	if gcConfig.apply {
		resolver.Execute(plan, in)
	}
	return nil
}

// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YF-CHAI/rocksdb-2pc/internal/base"
	"github.com/YF-CHAI/rocksdb-2pc/internal/manifest"
)

var liveConfig struct {
	editLog   string
	numLevels int
}

var liveCmd = &cobra.Command{
	Use:   "live <dir>",
	Short: "replay an edit log and print the resulting live file set",
	Args:  cobra.ExactArgs(1),
	RunE:  runLive,
}

func init() {
	liveCmd.Flags().StringVar(&liveConfig.editLog, "edit-log", "edits.json",
		"path to a JSON edit log, relative to <dir>")
	liveCmd.Flags().IntVar(&liveConfig.numLevels, "num-levels", 7, "number of levels")
}

func runLive(cmd *cobra.Command, args []string) error {
	dir := args[0]
	path := dir + "/" + liveConfig.editLog

	edits, err := readEditLog(path)
	if err != nil {
		return err
	}

	storage := manifest.NewVersionStorage(liveConfig.numLevels, base.DefaultCompare)
	tasks := &manifest.MergeTaskSet{}
	builder := manifest.NewBuilder(storage, base.DefaultCompare, tasks, manifest.DefaultMergeThreshold)
	for _, edit := range edits {
		builder.Apply(edit)
	}
	out := builder.SaveTo(int64(len(edits)))

	for level := 0; level < out.NumLevels(); level++ {
		files := out.LevelFiles(level)
		if len(files) == 0 {
			continue
		}
		fmt.Printf("L%d:\n", level)
		for _, f := range files {
			fmt.Printf("  %06d  %s - %s  size=%d refs=%d\n",
				f.FileNum, f.Smallest, f.Largest, f.Size, f.Refs())
		}
	}
	if drained := tasks.Drain(); len(drained) > 0 {
		fmt.Println("pending merges:")
		for _, t := range drained {
			fmt.Printf("  L%d  %s - %s\n", t.Level, t.Smallest, t.Largest)
		}
	}
	return nil
}

// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command vertool inspects a version/file-lifecycle directory: replaying
// an edit log to print the live file set, or running obsolete-file
// classification without a running database attached.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vertool [command] (flags)",
	Short: "version and file-lifecycle inspection tool",
}

func main() {
	log.SetFlags(0)
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(liveCmd, gcCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

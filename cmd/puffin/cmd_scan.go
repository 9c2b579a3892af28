// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PuffinZip/cmd/puffin/config"
	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/archive"
	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/cancel"
	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/util"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	listLong        bool   // Per-entry sizes and timestamps
	listConcurrency int    // Parallel archive scans
	listTimeout     string // Timeout override
)

func init() {
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false,
		"Show per-entry sizes and modification times")
	listCmd.Flags().IntVar(&listConcurrency, "concurrency", 4,
		"Number of archives to scan in parallel")
	listCmd.Flags().StringVar(&listTimeout, "timeout", "",
		"Operation timeout, e.g. 2m (default: from config)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runListCommand lists archive contents. Multiple archives scan
// concurrently, each under its own child token, so one slow archive
// can be cancelled without losing the rest.
func runListCommand(cmd *cobra.Command, args []string) {
	timeout := resolveTimeout(listTimeout, config.Global.ScanTimeout())

	var results []archive.ScanResult
	err := runWithToken("list archives", timeout, func(token *cancel.Token) error {
		var runErr error
		results, runErr = archive.Scan(token, args, archive.ScanOptions{
			Concurrency: listConcurrency,
			Registry:    registry,
		})
		return runErr
	})
	exitOnError(err)

	for i, result := range results {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s: %d entries, %s\n",
			result.Archive, len(result.Entries), util.FormatBytes(result.TotalBytes))
		for _, entry := range result.Entries {
			if listLong {
				fmt.Printf("  %10s  %s  %s\n",
					util.FormatBytes(int64(entry.UncompressedSize)),
					entry.Modified.Format("2006-01-02 15:04"),
					entry.Path)
			} else {
				fmt.Printf("  %s\n", entry.Path)
			}
		}
	}
}

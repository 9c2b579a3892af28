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
	"time"

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
	extractDest    string // Destination directory
	extractTimeout string // Timeout override
)

func init() {
	extractCmd.Flags().StringVarP(&extractDest, "dest", "d", ".",
		"Destination directory for extracted files")
	extractCmd.Flags().StringVar(&extractTimeout, "timeout", "",
		"Operation timeout, e.g. 10m (default: from config)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runExtractCommand extracts a zip archive under a registry token.
// Member paths are validated against zip-slip before anything is
// written; a cancelled run leaves already-extracted files in place.
func runExtractCommand(cmd *cobra.Command, args []string) {
	archivePath := args[0]
	timeout := resolveTimeout(extractTimeout, config.Global.ExtractTimeout())

	spinner := util.NewSpinner(util.DefaultSpinnerConfig())
	spinner.SetMessage("Extracting...")
	spinner.Start()

	var summary archive.ExtractSummary
	err := runWithToken("extract "+archivePath, timeout, func(token *cancel.Token) error {
		var runErr error
		summary, runErr = archive.Extract(token, archivePath, extractDest, archive.ExtractOptions{
			Progress: func(u archive.ProgressUpdate) {
				spinner.SetMessage(util.OperationMessage("Extracting", u.Path, u.Files, u.Bytes))
			},
		})
		return runErr
	})
	spinner.Stop()
	exitOnError(err)

	fmt.Printf("Extracted %s: %d files, %s in %s\n",
		archivePath, summary.Files,
		util.FormatBytes(summary.Bytes),
		summary.Elapsed.Round(time.Millisecond))
}

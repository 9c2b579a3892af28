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
	"path/filepath"
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
	compressOutput  string // Destination archive path
	compressLevel   int    // DEFLATE level override (-1 = use config)
	compressTimeout string // Timeout override (e.g. "10m")
)

func init() {
	compressCmd.Flags().StringVarP(&compressOutput, "output", "o", "",
		"Destination archive path (default: first source name + .zip)")
	compressCmd.Flags().IntVar(&compressLevel, "level", -1,
		"DEFLATE compression level 0-9 (default: from config)")
	compressCmd.Flags().StringVar(&compressTimeout, "timeout", "",
		"Operation timeout, e.g. 10m (default: from config)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runCompressCommand creates a zip archive from the source paths.
//
// The whole run happens under a registry token: the configured timeout,
// Ctrl-C, and `puffin ops cancel` all stop it at the next checkpoint,
// and the cleanup callback removes the partial archive.
func runCompressCommand(cmd *cobra.Command, args []string) {
	dest := compressOutput
	if dest == "" {
		base := filepath.Base(filepath.Clean(args[0]))
		dest = base + ".zip"
	}

	level := config.Global.Compression.Level
	if compressLevel >= 0 {
		level = compressLevel
	}
	timeout := resolveTimeout(compressTimeout, config.Global.CompressTimeout())

	spinner := util.NewSpinner(util.DefaultSpinnerConfig())
	spinner.SetMessage("Compressing...")
	spinner.Start()

	var summary archive.CompressSummary
	err := runWithToken("compress "+dest, timeout, func(token *cancel.Token) error {
		var runErr error
		summary, runErr = archive.Compress(token, args, dest, archive.CompressOptions{
			Level: level,
			Progress: func(u archive.ProgressUpdate) {
				spinner.SetMessage(util.OperationMessage("Compressing", u.Path, u.Files, u.Bytes))
			},
		})
		return runErr
	})
	spinner.Stop()
	exitOnError(err)

	fmt.Printf("Created %s: %d files, %s in, %s out (%.1f%%) in %s\n",
		dest, summary.Files,
		util.FormatBytes(summary.Bytes),
		util.FormatBytes(summary.ArchiveSize),
		ratio(summary.ArchiveSize, summary.Bytes),
		summary.Elapsed.Round(time.Millisecond))
}

// resolveTimeout applies a CLI override on top of the config value and
// enforces the operation floor.
func resolveTimeout(override string, fallback time.Duration) time.Duration {
	timeout := fallback
	if override != "" {
		if d, err := time.ParseDuration(override); err == nil && d > 0 {
			timeout = d
		}
	}
	return util.EnforceMinTimeout(timeout, util.MinOperationTimeout)
}

// ratio returns the compressed size as a percentage of the input size.
func ratio(out, in int64) float64 {
	if in == 0 {
		return 100
	}
	return float64(out) / float64(in) * 100
}

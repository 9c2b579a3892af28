// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package archive

import (
	"archive/zip"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/cancel"
)

// =============================================================================
// Scan
// =============================================================================

// Scan lists the members of the given archives.
//
// # Description
//
// Reads each archive's central directory, bounded-parallel across
// archives. When opts.Registry is set, each archive gets its own child
// token under the operation's token, so cancelling the operation
// propagates to every in-flight scan while a single archive's scan can
// also be cancelled on its own. Without a registry all scans share the
// operation token. Each worker checkpoints per member.
//
// # Inputs
//
//   - token: Cancellation token for the scan operation
//   - archives: ZIP archive paths to list
//   - opts: Concurrency bound and optional registry for child tokens
//
// # Outputs
//
//   - []ScanResult: One result per archive, in input order
//   - error: *cancel.CancellationError when cancelled, otherwise the
//     first read failure
func Scan(token *cancel.Token, archives []string, opts ScanOptions) ([]ScanResult, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]ScanResult, len(archives))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, archivePath := range archives {
		i, archivePath := i, archivePath
		g.Go(func() error {
			worker := token
			if opts.Registry != nil {
				child, err := opts.Registry.CreateChild(token.ID(), "scan "+archivePath)
				if err != nil {
					// Parent cancelled between dispatch and child creation.
					if cerr := token.Checkpoint(); cerr != nil {
						return cerr
					}
					return err
				}
				worker = child
				// A finished scan retires its child token so the active
				// view only shows work still in flight.
				defer opts.Registry.Cancel(child.ID(), "scan complete")
			}
			result, err := scanOne(worker, archivePath)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, checkpointOr(token, err)
	}
	return results, nil
}

// scanOne lists the members of a single archive.
func scanOne(token *cancel.Token, archivePath string) (ScanResult, error) {
	result := ScanResult{Archive: archivePath}

	if err := token.Checkpoint(); err != nil {
		return result, err
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return result, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	result.Entries = make([]Entry, 0, len(reader.File))
	for _, member := range reader.File {
		if err := token.Checkpoint(); err != nil {
			return result, err
		}
		result.Entries = append(result.Entries, Entry{
			Path:             member.Name,
			UncompressedSize: member.UncompressedSize64,
			CompressedSize:   member.CompressedSize64,
			Modified:         member.Modified,
			IsDir:            member.FileInfo().IsDir(),
		})
		if !member.FileInfo().IsDir() {
			result.TotalBytes += int64(member.UncompressedSize64)
		}
	}
	return result, nil
}

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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/cancel"
)

// =============================================================================
// Extract
// =============================================================================

// Extract unpacks a ZIP archive into destDir.
//
// # Description
//
// Creates destDir if needed and writes every member beneath it. Member
// paths are validated against directory traversal: a member that would
// resolve outside destDir aborts the run with an *UnsafePathError. The
// token is checkpointed before each member and between chunks of large
// members; a cancelled run returns a *cancel.CancellationError and a
// cleanup callback closes the archive reader. Files already extracted
// before cancellation are left in place.
//
// # Inputs
//
//   - token: Cancellation token for this run
//   - archivePath: ZIP archive to read
//   - destDir: Directory to extract into
//   - opts: Progress callback
//
// # Outputs
//
//   - ExtractSummary: Counts and sizes for the finished run
//   - error: *cancel.CancellationError when cancelled, *UnsafePathError
//     on a traversal attempt, otherwise the first I/O failure
func Extract(token *cancel.Token, archivePath, destDir string, opts ExtractOptions) (ExtractSummary, error) {
	start := time.Now()
	var summary ExtractSummary

	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return summary, fmt.Errorf("open archive: %w", err)
	}
	// ErrInsecurePath still yields a usable reader; the per-member
	// securePath check below rejects the actual offenders.
	defer reader.Close()

	token.OnCleanup(func() error {
		return reader.Close()
	})

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return summary, fmt.Errorf("create destination: %w", err)
	}
	root := filepath.Clean(destDir)

	for _, member := range reader.File {
		if err := token.Checkpoint(); err != nil {
			return summary, err
		}

		target, err := securePath(root, member.Name)
		if err != nil {
			return summary, &UnsafePathError{Archive: archivePath, Path: member.Name}
		}

		if member.FileInfo().IsDir() {
			if err := os.MkdirAll(target, member.Mode().Perm()|0700); err != nil {
				return summary, fmt.Errorf("create directory %s: %w", member.Name, err)
			}
			continue
		}

		n, err := extractFile(token, member, target)
		if err != nil {
			return summary, checkpointOr(token, err)
		}

		summary.Files++
		summary.Bytes += n
		if opts.Progress != nil {
			opts.Progress(ProgressUpdate{Path: member.Name, Files: summary.Files, Bytes: summary.Bytes})
		}
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

// extractFile writes one archive member to target.
func extractFile(token *cancel.Token, member *zip.File, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, fmt.Errorf("create parent for %s: %w", member.Name, err)
	}

	rc, err := member.Open()
	if err != nil {
		return 0, fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer rc.Close()

	mode := member.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}

	n, err := copyChunks(token, out, rc)
	if err != nil {
		out.Close()
		os.Remove(target)
		return n, fmt.Errorf("write %s: %w", member.Name, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", target, err)
	}
	return n, nil
}

// securePath resolves an archive member name beneath root, rejecting
// absolute paths and traversal components.
func securePath(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes root")
	}
	target := filepath.Join(root, cleaned)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes root")
	}
	return target, nil
}

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
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/cancel"
)

// copyChunkSize is the unit of work between cancellation checkpoints
// while copying file contents.
const copyChunkSize = 256 * 1024

// =============================================================================
// Compress
// =============================================================================

// Compress writes the given sources into a new ZIP archive at dest.
//
// # Description
//
// Walks each source (file or directory tree) and writes every regular
// file and directory into the archive, deflate-compressed with the
// klauspost encoder. The token is checkpointed before each entry and
// between chunks of large files; on cancellation the run aborts with a
// *cancel.CancellationError and a cleanup callback removes the partial
// archive, so a cancelled run leaves nothing behind. A run that finishes
// before its token is cancelled keeps its archive: the cleanup callback
// becomes a no-op once the run completes.
//
// # Inputs
//
//   - token: Cancellation token for this run
//   - sources: Files or directories to archive
//   - dest: Path of the archive to create (must not exist)
//   - opts: Compression level and progress callback
//
// # Outputs
//
//   - CompressSummary: Counts and sizes for the finished run
//   - error: *cancel.CancellationError when cancelled, otherwise the
//     first I/O failure
//
// # Error Conditions
//
//   - dest already exists
//   - A source cannot be read
//   - Token cancelled mid-run
func Compress(token *cancel.Token, sources []string, dest string, opts CompressOptions) (CompressSummary, error) {
	start := time.Now()
	var summary CompressSummary

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return summary, fmt.Errorf("create archive: %w", err)
	}

	// Once the run settles (success or failure), the cancellation cleanup
	// must not touch dest: the token may still be cancelled later, e.g.
	// by a shutdown CancelAll, and a finished archive stays put.
	var settled atomic.Bool
	defer settled.Store(true)
	token.OnCleanup(func() error {
		if settled.Load() {
			return nil
		}
		out.Close()
		os.Remove(dest)
		return nil
	})

	zw := zip.NewWriter(out)
	level := opts.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	for _, source := range sources {
		if err := addSource(token, zw, source, opts.Progress, &summary); err != nil {
			zw.Close()
			out.Close()
			os.Remove(dest)
			return summary, checkpointOr(token, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(dest)
		return summary, checkpointOr(token, fmt.Errorf("finalize archive: %w", err))
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return summary, checkpointOr(token, fmt.Errorf("close archive: %w", err))
	}
	settled.Store(true)

	if info, err := os.Stat(dest); err == nil {
		summary.ArchiveSize = info.Size()
	}
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// addSource writes one source file or directory tree into the archive.
func addSource(token *cancel.Token, zw *zip.Writer, source string, progress ProgressFunc, summary *CompressSummary) error {
	source = filepath.Clean(source)
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		return addFile(token, zw, source, filepath.Base(source), info, progress, summary)
	}

	base := filepath.Base(source)
	return filepath.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, p)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = path.Join(base, filepath.ToSlash(rel))
		}

		if d.IsDir() {
			if err := token.Checkpoint(); err != nil {
				return err
			}
			// Explicit directory entries keep empty directories intact.
			_, err := zw.Create(name + "/")
			return err
		}
		if !d.Type().IsRegular() {
			// Sockets, devices, and symlinks are not archived.
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			return err
		}
		return addFile(token, zw, p, name, fileInfo, progress, summary)
	})
}

// addFile writes one regular file into the archive.
func addFile(token *cancel.Token, zw *zip.Writer, p, name string, info fs.FileInfo, progress ProgressFunc, summary *CompressSummary) error {
	if err := token.Checkpoint(); err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}

	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	n, err := copyChunks(token, w, f)
	f.Close()
	if err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}

	summary.Files++
	summary.Bytes += n
	if progress != nil {
		progress(ProgressUpdate{Path: name, Files: summary.Files, Bytes: summary.Bytes})
	}
	return nil
}

// copyChunks copies src to dst in fixed-size chunks, checkpointing the
// token between chunks so large files remain responsive to cancellation.
func copyChunks(token *cancel.Token, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var total int64
	for {
		if err := token.Checkpoint(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// checkpointOr prefers the token's cancellation error over err.
//
// A cancellation cleanup can close the output file under a running copy,
// surfacing a file-closed error instead of the cancellation itself; the
// final checkpoint restores the cancelled-not-failed outcome.
func checkpointOr(token *cancel.Token, err error) error {
	if cerr := token.Checkpoint(); cerr != nil {
		return cerr
	}
	return err
}

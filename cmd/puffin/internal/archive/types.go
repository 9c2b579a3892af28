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
	"time"

	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/cancel"
)

// =============================================================================
// Progress Reporting
// =============================================================================

// ProgressUpdate carries one progress sample from a running operation.
//
// # Description
//
// Delivered synchronously from the operation goroutine after each
// completed entry. Receivers must be fast; heavy rendering belongs on
// the receiver's side of a channel.
type ProgressUpdate struct {
	// Path is the entry just processed, in archive notation.
	Path string

	// Files is the count of entries processed so far.
	Files int

	// Bytes is the uncompressed byte count processed so far.
	Bytes int64
}

// ProgressFunc receives progress samples. May be nil.
type ProgressFunc func(update ProgressUpdate)

// =============================================================================
// Compression Types
// =============================================================================

// CompressOptions configures a compression run.
type CompressOptions struct {
	// Level is the deflate level, -2 (huffman-only) through 9.
	// Zero means the encoder default.
	Level int

	// Progress receives a sample after each entry. May be nil.
	Progress ProgressFunc
}

// CompressSummary reports a completed compression run.
type CompressSummary struct {
	// Files is the number of entries written.
	Files int

	// Bytes is the total uncompressed input size.
	Bytes int64

	// ArchiveSize is the size of the finished archive on disk.
	ArchiveSize int64

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// =============================================================================
// Extraction Types
// =============================================================================

// ExtractOptions configures an extraction run.
type ExtractOptions struct {
	// Progress receives a sample after each entry. May be nil.
	Progress ProgressFunc
}

// ExtractSummary reports a completed extraction run.
type ExtractSummary struct {
	// Files is the number of entries written (directories excluded).
	Files int

	// Bytes is the total uncompressed output size.
	Bytes int64

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// =============================================================================
// Scan Types
// =============================================================================

// Entry describes one archive member.
type Entry struct {
	// Path is the member path in archive notation.
	Path string

	// UncompressedSize is the member's original size in bytes.
	UncompressedSize uint64

	// CompressedSize is the member's stored size in bytes.
	CompressedSize uint64

	// Modified is the member's modification time.
	Modified time.Time

	// IsDir reports whether the member is a directory entry.
	IsDir bool
}

// ScanResult lists the members of one archive.
type ScanResult struct {
	// Archive is the scanned archive path.
	Archive string

	// Entries are the members in central-directory order.
	Entries []Entry

	// TotalBytes is the sum of uncompressed member sizes.
	TotalBytes int64
}

// ScanOptions configures a scan run.
type ScanOptions struct {
	// Concurrency bounds parallel archive scans.
	// Default: 4
	Concurrency int

	// Registry, when set, creates a child token per archive so each
	// parallel scan is independently cancellable while still inheriting
	// cancellation from the operation's token.
	Registry *cancel.Registry
}

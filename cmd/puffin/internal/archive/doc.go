// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive implements ZIP compression, extraction, and scanning
// as consumers of cancellation tokens.
//
// Every operation receives a cancel.Token and checkpoints it at each
// natural stopping point: per file added or extracted, and per chunk
// copied within large files. A checkpoint failure aborts the operation
// and propagates a *cancel.CancellationError upward, which callers treat
// as a normal cancelled-not-failed termination. Operations register
// cleanup callbacks so cancellation releases held resources (partial
// archives, open handles) even though the normal completion path never
// runs.
//
// Deflate compression uses the klauspost/compress encoder registered on
// the standard archive/zip writer.
package archive

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

import "fmt"

// UnsafePathError reports an archive member whose path would escape the
// extraction directory.
//
// # Description
//
// Returned by Extract when a member path contains traversal components
// ("../") or resolves outside the destination. Extraction aborts rather
// than writing outside the target tree.
//
// # Example
//
//	_, err := archive.Extract(token, "evil.zip", dest, archive.ExtractOptions{})
//	var unsafe *archive.UnsafePathError
//	if errors.As(err, &unsafe) {
//	    log.Printf("rejected member %q", unsafe.Path)
//	}
type UnsafePathError struct {
	// Archive is the archive being extracted.
	Archive string

	// Path is the offending member path.
	Path string
}

// Error returns a formatted error message.
func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe path %q in archive %s", e.Path, e.Archive)
}

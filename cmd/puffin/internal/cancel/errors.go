// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cancel

import "fmt"

// =============================================================================
// CancellationError
// =============================================================================

// CancellationError reports that an operation's token has been cancelled.
//
// # Description
//
// Returned by Token.Checkpoint when the token is already cancelled. It is
// an expected, recoverable outcome: callers propagate it to the operation's
// top-level handler, which presents "operation cancelled" rather than a
// failure. Carries the token id and the stored cancellation reason.
//
// # Thread Safety
//
// CancellationError is immutable after creation and safe for concurrent
// reads.
//
// # Example
//
//	if err := token.Checkpoint(); err != nil {
//	    var cancelled *cancel.CancellationError
//	    if errors.As(err, &cancelled) {
//	        fmt.Println("cancelled:", cancelled.Reason)
//	    }
//	    return err
//	}
type CancellationError struct {
	// TokenID identifies the cancelled token.
	TokenID string

	// Reason is the stored cancellation reason.
	Reason string
}

// Error returns a formatted error message.
//
// # Outputs
//
//   - string: "operation cancelled (token <id>): <reason>"
//
// # Assumptions
//
//   - Receiver is not nil
func (e *CancellationError) Error() string {
	return fmt.Sprintf("operation cancelled (token %s): %s", e.TokenID, e.Reason)
}

// =============================================================================
// UnknownTokenError
// =============================================================================

// UnknownTokenError reports an operation against a token id the registry
// does not know.
//
// # Description
//
// Returned by Registry.CreateChild when the parent id does not resolve to
// a live token. This indicates an integration bug (stale or fabricated
// id), not a user-facing condition; callers should treat it as a
// programming error.
//
// # Example
//
//	_, err := reg.CreateChild("no-such-id", "scan")
//	var unknown *cancel.UnknownTokenError
//	errors.As(err, &unknown) // true
type UnknownTokenError struct {
	// TokenID is the id that failed to resolve.
	TokenID string
}

// Error returns a formatted error message.
//
// # Outputs
//
//   - string: "unknown token: <id>"
//
// # Assumptions
//
//   - Receiver is not nil
func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token: %s", e.TokenID)
}

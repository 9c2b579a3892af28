// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package util

import "time"

// =============================================================================
// Constants
// =============================================================================

// Timeout constants define minimum and default values for archive
// operations.
//
// Every operation token is created with a deadline so that a wedged
// archive run is eventually auto-cancelled instead of hanging the session.
const (
	// MinOperationTimeout is the absolute minimum for any archive operation.
	// Prevents a misconfigured zero timeout from cancelling instantly.
	MinOperationTimeout = 1 * time.Second

	// DefaultCompressTimeout is the standard deadline for compression runs.
	DefaultCompressTimeout = 30 * time.Minute

	// DefaultExtractTimeout is the standard deadline for extraction runs.
	DefaultExtractTimeout = 30 * time.Minute

	// DefaultScanTimeout is the standard deadline for archive listing.
	DefaultScanTimeout = 5 * time.Minute
)

// =============================================================================
// OperationTimeouts Struct
// =============================================================================

// OperationTimeouts holds per-operation deadlines with validation.
//
// # Description
//
// Carries the deadline applied to each archive operation's cancellation
// token. Use NewOperationTimeouts for proper defaults, and Validated
// before handing values to the token registry.
//
// # Thread Safety
//
// OperationTimeouts is safe for concurrent reads. Concurrent modification
// requires external synchronization.
//
// # Example
//
//	timeouts := util.NewOperationTimeouts()
//	timeouts.Scan = 90 * time.Second
//	token := reg.CreateWithTimeout("scan", timeouts.Validated().Scan)
//
// # Limitations
//
//   - Does not enforce maximum timeouts
//
// # Assumptions
//
//   - Consumers call Validated() before using values
type OperationTimeouts struct {
	// Compress is the deadline for compression runs.
	Compress time.Duration

	// Extract is the deadline for extraction runs.
	Extract time.Duration

	// Scan is the deadline for archive listing.
	Scan time.Duration
}

// NewOperationTimeouts returns timeouts with sensible defaults.
//
// # Outputs
//
//   - OperationTimeouts: Configuration with default deadlines
func NewOperationTimeouts() OperationTimeouts {
	return OperationTimeouts{
		Compress: DefaultCompressTimeout,
		Extract:  DefaultExtractTimeout,
		Scan:     DefaultScanTimeout,
	}
}

// Validated returns a copy with every deadline at least at the minimum.
//
// # Description
//
// Any value at or below zero, or below MinOperationTimeout, is raised to
// the minimum. The receiver is not modified.
//
// # Outputs
//
//   - OperationTimeouts: A validated copy with enforced minimums
func (t *OperationTimeouts) Validated() OperationTimeouts {
	return OperationTimeouts{
		Compress: EnforceMinTimeout(t.Compress, MinOperationTimeout),
		Extract:  EnforceMinTimeout(t.Extract, MinOperationTimeout),
		Scan:     EnforceMinTimeout(t.Scan, MinOperationTimeout),
	}
}

// =============================================================================
// Utility Functions
// =============================================================================

// EnforceMinTimeout returns at least the minimum timeout.
//
// # Description
//
// If the requested timeout is zero, negative, or below the minimum, the
// minimum is returned instead. This keeps a bad config from producing a
// token that times out before the operation starts.
//
// # Inputs
//
//   - requested: The timeout value requested by the caller
//   - minimum: The absolute minimum acceptable timeout
//
// # Outputs
//
//   - time.Duration: The requested timeout if valid, otherwise the minimum
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested <= 0 || requested < minimum {
		return minimum
	}
	return requested
}

// EnforceDefaultTimeout returns the default when requested is unset.
//
// # Description
//
// Unlike EnforceMinTimeout this only substitutes when the value is zero
// or negative, allowing any explicit positive value through.
//
// # Inputs
//
//   - requested: The timeout value requested by the caller
//   - defaultVal: The default to use when requested is unset
//
// # Outputs
//
//   - time.Duration: The requested timeout if positive, otherwise the default
func EnforceDefaultTimeout(requested, defaultVal time.Duration) time.Duration {
	if requested <= 0 {
		return defaultVal
	}
	return requested
}

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

import "time"

// Stats is a point-in-time snapshot of registry counters.
//
// # Description
//
// TotalTokens, CancelledTokens, Reasons, and AverageDuration are
// cumulative for the registry's lifetime and survive Cleanup sweeps.
// ActiveTokens reflects the live active-token view at snapshot time.
//
// # Example
//
//	s := reg.Statistics()
//	fmt.Printf("%d active of %d total\n", s.ActiveTokens, s.TotalTokens)
type Stats struct {
	// TotalTokens is the count of tokens ever created.
	TotalTokens int

	// ActiveTokens is the count of tokens not yet cancelled.
	ActiveTokens int

	// CancelledTokens is the count of tokens cancelled so far.
	CancelledTokens int

	// Reasons maps each cancellation reason to its occurrence count.
	Reasons map[string]int

	// AverageDuration is the mean of cancelledAt - createdAt across all
	// cancelled tokens, zero when none have been cancelled.
	AverageDuration time.Duration
}

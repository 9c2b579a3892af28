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
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var opsCancelReason string // Reason recorded with the cancellation

func init() {
	opsCancelCmd.Flags().StringVar(&opsCancelReason, "reason", "",
		"Reason recorded with the cancellation (default: \"operation cancelled\")")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// The registry is scoped to this process. These commands matter most
// when puffin is embedded as a library or when a single invocation
// runs several archives; on a fresh CLI process the views start empty.

// runOpsList prints every active token, oldest first.
func runOpsList(cmd *cobra.Command, args []string) {
	tokens := registry.ActiveTokens()
	if len(tokens) == 0 {
		fmt.Println("No active operations.")
		return
	}
	for _, token := range tokens {
		fmt.Printf("%s  %-30s  started %s\n",
			token.ID(), token.Operation(), token.CreatedAt().Format("15:04:05"))
	}
}

// runOpsCancel cancels one tracked operation by token id.
func runOpsCancel(cmd *cobra.Command, args []string) {
	id := args[0]
	if !registry.Cancel(id, opsCancelReason) {
		fmt.Printf("No such operation: %s\n", id)
		return
	}
	fmt.Printf("Cancelled %s\n", id)
}

// runStatsCommand prints cumulative registry statistics.
func runStatsCommand(cmd *cobra.Command, args []string) {
	stats := registry.Statistics()

	fmt.Printf("Tokens created:   %d\n", stats.TotalTokens)
	fmt.Printf("Currently active: %d\n", stats.ActiveTokens)
	fmt.Printf("Cancelled:        %d\n", stats.CancelledTokens)
	if stats.CancelledTokens > 0 {
		fmt.Printf("Average lifetime: %s\n", stats.AverageDuration.Round(time.Millisecond))
	}
	if len(stats.Reasons) > 0 {
		fmt.Println("Reasons:")
		reasons := make([]string, 0, len(stats.Reasons))
		for reason := range stats.Reasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  %4d  %s\n", stats.Reasons[reason], reason)
		}
	}
}

// runCleanupCommand purges settled tokens from the registry.
func runCleanupCommand(cmd *cobra.Command, args []string) {
	purged := registry.Cleanup()
	fmt.Printf("Purged %d settled token(s).\n", purged)
}

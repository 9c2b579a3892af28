// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cancel implements cooperative cancellation for long-running
// archive operations.
//
// # Overview
//
// The package has two collaborating pieces:
//
//   - Token: a capability handed to an operation. The operation polls it
//     via Checkpoint at natural stopping points (per file, per chunk) or
//     subscribes to it via OnCancel/OnCleanup.
//   - Registry: the factory and authority. It creates tokens, links them
//     into a parent/child forest, schedules timeout auto-cancellation,
//     dispatches cancellation downward, and aggregates statistics.
//
// Cancellation is cooperative, never preemptive. A running operation is
// only interrupted where it explicitly checkpoints, and a checkpoint
// failure is an expected outcome (the operation was cancelled), not a
// defect.
//
// # Basic Usage
//
//	reg := cancel.NewRegistry(cancel.DefaultRegistryConfig())
//	token := reg.CreateWithTimeout("compress photos", 10*time.Minute)
//
//	token.OnCleanup(func() error {
//	    return os.Remove(partialArchive)
//	})
//
//	for _, file := range files {
//	    if err := token.Checkpoint(); err != nil {
//	        return err // cancelled, cleanup already ran
//	    }
//	    addToArchive(file)
//	}
//
// # Ordering Guarantees
//
// When a token is cancelled, its cleanup callbacks run in reverse
// registration order (inner resources released before outer ones), then
// its cancel-notification callbacks run in registration order. Both lists
// are fully flushed before Cancel returns. A parent's descendants are all
// cancelled, transitively, before the parent's Cancel call returns.
//
// # Thread Safety
//
// Token and Registry are safe for concurrent use. The cancel transition
// is guarded so that exactly one caller wins and callbacks run exactly
// once, even under concurrent Cancel calls for the same token.
package cancel

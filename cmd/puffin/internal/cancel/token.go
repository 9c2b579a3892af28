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

import (
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Constants
// =============================================================================

// DefaultReason is stored when a cancellation supplies no reason.
const DefaultReason = "operation cancelled"

// =============================================================================
// Token
// =============================================================================

// Token is a unit of cancellable state handed to a long-running operation.
//
// # Description
//
// A Token starts active and transitions to cancelled at most once; it never
// un-cancels. Operations poll it via Checkpoint at cheap, frequent
// checkpoints, or subscribe via OnCancel/OnCleanup for push notification.
// Tokens are created and cancelled only through a Registry; operation code
// never mutates cancellation state directly.
//
// # Thread Safety
//
// Token is safe for concurrent use. The cancel transition is guarded by a
// mutex so callbacks run exactly once even under concurrent cancellation.
//
// # Example
//
//	token.OnCleanup(func() error { return tmp.Close() })
//	for _, entry := range entries {
//	    if err := token.Checkpoint(); err != nil {
//	        return err
//	    }
//	    process(entry)
//	}
//
// # Limitations
//
//   - Cancellation is cooperative: a loop that never checkpoints is never
//     interrupted.
//   - Callbacks registered after cancellation are silently dropped.
//
// # Assumptions
//
//   - Callbacks are short-lived; they run synchronously inside Cancel.
type Token struct {
	// id is the registry lookup key, immutable after creation.
	id string

	// operation is an optional human-readable label, immutable.
	operation string

	// createdAt is the creation timestamp, immutable.
	createdAt time.Time

	// parentID is the owning token's id, empty for roots, immutable.
	parentID string

	// mu guards the cancel transition and the callback lists.
	mu sync.Mutex

	// cancelled transitions false -> true exactly once.
	cancelled bool

	// reason is set alongside cancelled, DefaultReason when none supplied.
	reason string

	// cancelledAt is set alongside cancelled.
	cancelledAt time.Time

	// onCancel holds notification callbacks in registration order.
	onCancel []func(reason string)

	// onCleanup holds teardown callbacks in registration order; they are
	// invoked in reverse, mirroring nested resource-acquisition unwind.
	onCleanup []func() error
}

// newToken creates an active token. Registry-internal.
func newToken(id, operation, parentID string, now time.Time) *Token {
	return &Token{
		id:        id,
		operation: operation,
		createdAt: now,
		parentID:  parentID,
	}
}

// =============================================================================
// Read Accessors
// =============================================================================

// ID returns the registry lookup key.
func (t *Token) ID() string { return t.id }

// Operation returns the human-readable operation label (may be empty).
func (t *Token) Operation() string { return t.operation }

// CreatedAt returns the creation timestamp.
func (t *Token) CreatedAt() time.Time { return t.createdAt }

// ParentID returns the owning token's id, or "" for a root token.
func (t *Token) ParentID() string { return t.parentID }

// IsCancelled reports whether the token has been cancelled.
//
// # Description
//
// Never blocks and has no side effects. Suitable for tight polling loops
// that do not want the error allocation of Checkpoint.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Reason returns the stored cancellation reason, or "" while active.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// CancelledAt returns the cancellation timestamp, zero while active.
func (t *Token) CancelledAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelledAt
}

// =============================================================================
// Checkpoint
// =============================================================================

// Checkpoint fails if the token has been cancelled.
//
// # Description
//
// The cooperative-cancellation checkpoint. Operations call this at each
// natural stopping point (per file processed, per chunk read). On a
// cancelled token it returns a *CancellationError carrying the token id
// and stored reason; the operation aborts and propagates it upward as a
// normal, expected termination.
//
// # Outputs
//
//   - error: nil while active, *CancellationError once cancelled
//
// # Example
//
//	if err := token.Checkpoint(); err != nil {
//	    return err // cancelled-not-failed
//	}
func (t *Token) Checkpoint() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return &CancellationError{TokenID: t.id, Reason: t.reason}
	}
	return nil
}

// =============================================================================
// Callback Registration
// =============================================================================

// OnCancel registers a cancellation-notification callback.
//
// # Description
//
// Callbacks are invoked at cancellation time, in registration order, with
// the cancellation reason as argument. Registering on an already-cancelled
// token is a silent no-op: the callback is neither queued nor retried, and
// the call never fails.
//
// # Inputs
//
//   - fn: notification callback, must not be nil
func (t *Token) OnCancel(fn func(reason string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.onCancel = append(t.onCancel, fn)
}

// OnCleanup registers a teardown callback.
//
// # Description
//
// Cleanup callbacks release resources the operation holds (temp files,
// open handles) so cancellation guarantees release even when the normal
// completion path never runs. They are invoked at cancellation time in
// reverse registration order, before any OnCancel callback. Registering
// on an already-cancelled token is a silent no-op.
//
// # Inputs
//
//   - fn: teardown callback; a returned error is logged, never propagated
func (t *Token) OnCleanup(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.onCleanup = append(t.onCleanup, fn)
}

// =============================================================================
// Cancel Transition (registry-internal)
// =============================================================================

// transition marks the token cancelled and detaches its callback lists.
//
// # Description
//
// First caller wins: sets cancelled, reason (DefaultReason when empty),
// and cancelledAt, then hands back both callback lists for invocation
// outside the lock. Later callers get ok == false and empty lists. Running
// callbacks outside the token mutex lets a callback safely call back into
// the token or the registry.
//
// # Outputs
//
//   - cleanups: teardown callbacks, registration order
//   - notifies: notification callbacks, registration order
//   - ok: true only for the transition that won
func (t *Token) transition(reason string, now time.Time) (cleanups []func() error, notifies []func(string), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return nil, nil, false
	}
	if reason == "" {
		reason = DefaultReason
	}
	t.cancelled = true
	t.reason = reason
	t.cancelledAt = now
	cleanups = t.onCleanup
	notifies = t.onCancel
	t.onCleanup = nil
	t.onCancel = nil
	return cleanups, notifies, true
}

// runCallbacks flushes detached callback lists for a cancelled token.
//
// # Description
//
// Cleanup callbacks run first, in reverse registration order, then
// notification callbacks in registration order. Each invocation is
// isolated: a panic or cleanup error is logged and swallowed so one broken
// observer never blocks the others or the cancellation itself.
func (t *Token) runCallbacks(logger *slog.Logger, reason string, cleanups []func() error, notifies []func(string)) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		t.invokeCleanup(logger, cleanups[i])
	}
	for _, fn := range notifies {
		t.invokeNotify(logger, fn, reason)
	}
}

// invokeCleanup runs one cleanup callback with panic and error isolation.
func (t *Token) invokeCleanup(logger *slog.Logger, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("cleanup callback panicked", "token", t.id, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		logger.Warn("cleanup callback failed", "token", t.id, "error", err)
	}
}

// invokeNotify runs one notification callback with panic isolation.
func (t *Token) invokeNotify(logger *slog.Logger, fn func(string), reason string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("cancel callback panicked", "token", t.id, "panic", r)
		}
	}()
	fn(reason)
}

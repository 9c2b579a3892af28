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
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Registry Configuration
// =============================================================================

// RegistryConfig configures registry behavior.
//
// # Description
//
// Controls logging and lifecycle hooks. All fields have sensible defaults
// that can be overridden. Hooks are invoked synchronously, outside the
// registry lock, after the corresponding state change is committed.
//
// # Example
//
//	config := RegistryConfig{
//	    Logger: logger.Slog(),
//	    OnTokenCancelled: func(t *Token, reason string, elapsed time.Duration) {
//	        metrics.RecordCancellation(reason, elapsed)
//	    },
//	}
//
// # Limitations
//
//   - Hooks must be fast; they run inline with Create/Cancel callers.
//
// # Assumptions
//
//   - Hooks are safe for concurrent invocation.
type RegistryConfig struct {
	// Logger is used for token lifecycle events and callback failures.
	// Default: slog.Default()
	Logger *slog.Logger

	// OnTokenCreated is called after a token is created and stored.
	OnTokenCreated func(t *Token)

	// OnTokenCancelled is called after a token's first cancellation has
	// fully flushed its callbacks. elapsed is cancelledAt - createdAt.
	OnTokenCancelled func(t *Token, reason string, elapsed time.Duration)
}

// DefaultRegistryConfig returns sensible defaults.
//
// # Outputs
//
//   - RegistryConfig: Configuration with default logging and no hooks
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Logger: slog.Default(),
	}
}

// =============================================================================
// Registry
// =============================================================================

// Registry owns the lifetime of all cancellation tokens.
//
// # Description
//
// Registry is the authoritative token factory, cancellation dispatcher,
// and hierarchy/timeout/statistics manager. It holds every token created
// for its lifetime (until an explicit Cleanup sweep), an index from parent
// id to child ids for downward propagation, pending timeout timers, and
// running counters.
//
// # How Cancellation Flows
//
//  1. Cancel resolves the token and clears any pending timeout timer.
//  2. The token transitions (first cancellation wins).
//  3. The reason histogram and a duration sample are recorded.
//  4. Every direct child is cancelled recursively, depth-first, with a
//     reason composed from the parent's.
//  5. The token leaves the active view but stays retrievable by id.
//  6. All affected tokens' callbacks are flushed, parent before child,
//     before Cancel returns.
//
// # Thread Safety
//
// Registry is safe for concurrent use from multiple goroutines. State is
// guarded by a single coarse mutex; callbacks and hooks run outside it so
// they may safely call back into the registry.
//
// # Example
//
//	reg := NewRegistry(DefaultRegistryConfig())
//	parent := reg.Create("compress album")
//	child, _ := reg.CreateChild(parent.ID(), "compress track")
//	reg.Cancel(parent.ID(), "user closed window") // cancels child too
//
// # Limitations
//
//   - Single-process only; tokens are not persisted nor shared across
//     processes.
//   - The token map grows until Cleanup is called.
//
// # Assumptions
//
//   - Operation code reads tokens and registers callbacks but never
//     mutates cancellation state directly.
type Registry struct {
	config RegistryConfig

	// mu guards all maps and counters below.
	mu sync.Mutex

	// tokens holds every token ever created, keyed by id, until purged.
	tokens map[string]*Token

	// active is the subset of tokens not yet cancelled.
	active map[string]*Token

	// children indexes parent id -> set of child ids for propagation.
	children map[string]map[string]struct{}

	// timers holds pending timeout timers, removed on any cancellation.
	timers map[string]*time.Timer

	// Cumulative counters. Survive Cleanup sweeps.
	totalCreated   int
	totalCancelled int
	reasons        map[string]int
	durationSum    time.Duration
}

// pendingCancel carries one transitioned token's detached callbacks from
// the locked phase to the flush phase.
type pendingCancel struct {
	token    *Token
	reason   string
	elapsed  time.Duration
	cleanups []func() error
	notifies []func(string)
}

// NewRegistry creates an empty registry.
//
// # Description
//
// Zero values in config are replaced with defaults. The registry is
// process-scoped: create it once and tear it down with the process; it
// needs no explicit shutdown beyond dropping the reference (pending
// timeout timers hold only token ids and registry pointers).
//
// # Inputs
//
//   - config: Configuration for logging and hooks
//
// # Outputs
//
//   - *Registry: New empty registry
func NewRegistry(config RegistryConfig) *Registry {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Registry{
		config:   config,
		tokens:   make(map[string]*Token),
		active:   make(map[string]*Token),
		children: make(map[string]map[string]struct{}),
		timers:   make(map[string]*time.Timer),
		reasons:  make(map[string]int),
	}
}

// =============================================================================
// Token Creation
// =============================================================================

// Create generates a fresh root token.
//
// # Description
//
// Assigns a collision-free id, stores the token, and increments the
// total-tokens counter. Always succeeds.
//
// # Inputs
//
//   - operation: Optional human-readable label (may be empty)
//
// # Outputs
//
//   - *Token: The new active token
func (r *Registry) Create(operation string) *Token {
	return r.create(operation, "")
}

// CreateChild generates a token owned by an existing one.
//
// # Description
//
// The parent must resolve to a live (active) token: cancelling a token
// forecloses new children, since a child of a dead token could never run.
// A child's own cancellation never affects the parent; propagation is
// strictly downward. The parent/child relation is fixed at creation and
// never changes.
//
// # Inputs
//
//   - parentID: Id of the owning token
//   - operation: Optional human-readable label
//
// # Outputs
//
//   - *Token: The new active child token
//   - error: *UnknownTokenError when parentID does not resolve
//
// # Error Conditions
//
//   - Parent id unknown, purged, or already cancelled
func (r *Registry) CreateChild(parentID, operation string) (*Token, error) {
	r.mu.Lock()
	if _, ok := r.active[parentID]; !ok {
		r.mu.Unlock()
		return nil, &UnknownTokenError{TokenID: parentID}
	}
	token := r.storeLocked(operation, parentID)
	set, ok := r.children[parentID]
	if !ok {
		set = make(map[string]struct{})
		r.children[parentID] = set
	}
	set[token.id] = struct{}{}
	r.mu.Unlock()

	r.created(token)
	return token, nil
}

// CreateWithTimeout generates a token that auto-cancels after d.
//
// # Description
//
// Schedules a one-shot timer. If the token is still active when the timer
// fires, it is cancelled with a timeout-indicating reason. The timer is
// stopped and dropped the moment the token is cancelled by any other
// path, so it can never fire against an already-cancelled token; a
// manual cancellation before the deadline therefore retains the manual
// reason. From the operation's point of view a timeout is
// indistinguishable from a manual cancellation.
//
// # Inputs
//
//   - operation: Optional human-readable label
//   - d: Timeout duration, must be positive
//
// # Outputs
//
//   - *Token: The new active token
func (r *Registry) CreateWithTimeout(operation string, d time.Duration) *Token {
	r.mu.Lock()
	token := r.storeLocked(operation, "")
	id := token.id
	r.timers[id] = time.AfterFunc(d, func() {
		r.Cancel(id, fmt.Sprintf("operation timed out after %s", d))
	})
	r.mu.Unlock()

	r.created(token)
	return token
}

// create stores a root token and fires the creation hook.
func (r *Registry) create(operation, parentID string) *Token {
	r.mu.Lock()
	token := r.storeLocked(operation, parentID)
	r.mu.Unlock()

	r.created(token)
	return token
}

// storeLocked allocates and indexes a new token. Caller holds mu.
func (r *Registry) storeLocked(operation, parentID string) *Token {
	token := newToken(uuid.NewString(), operation, parentID, time.Now())
	r.tokens[token.id] = token
	r.active[token.id] = token
	r.totalCreated++
	return token
}

// created logs and fires the creation hook, outside the lock.
func (r *Registry) created(token *Token) {
	r.config.Logger.Debug("token created",
		"token", token.id,
		"operation", token.operation,
		"parent", token.parentID,
	)
	if r.config.OnTokenCreated != nil {
		r.config.OnTokenCreated(token)
	}
}

// =============================================================================
// Cancellation
// =============================================================================

// Cancel cancels a token and, recursively, all of its descendants.
//
// # Description
//
// Idempotent. An unknown (or purged) id returns false with no side
// effects. An already-cancelled token returns true without altering the
// stored reason and without re-invoking callbacks: the first cancellation
// wins. On a first cancellation the token's cleanup callbacks run in
// reverse registration order, then its notification callbacks in
// registration order; every descendant is cancelled with a reason
// composed as "parent cancelled: <reason>"; and all of it completes
// before Cancel returns.
//
// # Inputs
//
//   - id: Token id
//   - reason: Human-readable cause; "" stores DefaultReason
//
// # Outputs
//
//   - bool: false when the id is unknown, true otherwise
func (r *Registry) Cancel(id, reason string) bool {
	r.mu.Lock()
	token, ok := r.tokens[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	pending := r.cancelLocked(token, reason, time.Now())
	r.mu.Unlock()

	r.flush(pending)
	return true
}

// CancelAll cancels every currently active token.
//
// # Description
//
// Applies the same reason to every active token, letting parent-to-child
// propagation run as usual. Because cancellation is idempotent and
// propagation recursive, the final state does not depend on iteration
// order.
//
// # Inputs
//
//   - reason: Human-readable cause; "" stores DefaultReason
//
// # Outputs
//
//   - int: Number of tokens that transitioned to cancelled
func (r *Registry) CancelAll(reason string) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now()
	var pending []pendingCancel
	for _, id := range ids {
		token, ok := r.active[id]
		if !ok {
			// Already swept up by an earlier iteration's propagation.
			continue
		}
		pending = append(pending, r.cancelLocked(token, reason, now)...)
	}
	r.mu.Unlock()

	r.flush(pending)
	return len(pending)
}

// cancelLocked transitions a token and its descendants. Caller holds mu.
//
// # Description
//
// Stops any pending timeout timer, performs the first-wins transition,
// records statistics, removes the token from the active view, and recurses
// into direct children. Returns the transitioned tokens in parent-first,
// depth-first order with their detached callbacks; the caller flushes them
// after releasing the lock.
func (r *Registry) cancelLocked(token *Token, reason string, now time.Time) []pendingCancel {
	if timer, ok := r.timers[token.id]; ok {
		timer.Stop()
		delete(r.timers, token.id)
	}

	if reason == "" {
		reason = DefaultReason
	}
	cleanups, notifies, ok := token.transition(reason, now)
	if !ok {
		return nil
	}

	elapsed := now.Sub(token.createdAt)
	r.totalCancelled++
	r.reasons[reason]++
	r.durationSum += elapsed
	delete(r.active, token.id)

	pending := []pendingCancel{{
		token:    token,
		reason:   reason,
		elapsed:  elapsed,
		cleanups: cleanups,
		notifies: notifies,
	}}

	childIDs := make([]string, 0, len(r.children[token.id]))
	for childID := range r.children[token.id] {
		childIDs = append(childIDs, childID)
	}
	sort.Strings(childIDs)

	childReason := "parent cancelled: " + reason
	for _, childID := range childIDs {
		child, ok := r.tokens[childID]
		if !ok {
			continue
		}
		pending = append(pending, r.cancelLocked(child, childReason, now)...)
	}
	return pending
}

// flush runs detached callbacks and fires hooks, outside the lock.
func (r *Registry) flush(pending []pendingCancel) {
	for _, p := range pending {
		p.token.runCallbacks(r.config.Logger, p.reason, p.cleanups, p.notifies)
		r.config.Logger.Info("token cancelled",
			"token", p.token.id,
			"operation", p.token.operation,
			"reason", p.reason,
			"elapsed", p.elapsed,
		)
		if r.config.OnTokenCancelled != nil {
			r.config.OnTokenCancelled(p.token, p.reason, p.elapsed)
		}
	}
}

// =============================================================================
// Queries
// =============================================================================

// Get returns the token for id.
//
// # Description
//
// Cancelled tokens remain retrievable until a Cleanup sweep purges them.
// Never raises; absence is reported via the second return value.
//
// # Outputs
//
//   - *Token: The token, or nil
//   - bool: false when the id is unknown or purged
func (r *Registry) Get(id string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	return token, ok
}

// ActiveTokens returns a snapshot of all not-yet-cancelled tokens.
//
// # Outputs
//
//   - []*Token: Active tokens ordered by creation time
func (r *Registry) ActiveTokens() []*Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]*Token, 0, len(r.active))
	for _, token := range r.active {
		snapshot = append(snapshot, token)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].createdAt.Equal(snapshot[j].createdAt) {
			return snapshot[i].id < snapshot[j].id
		}
		return snapshot[i].createdAt.Before(snapshot[j].createdAt)
	})
	return snapshot
}

// Statistics returns a snapshot of the registry counters.
//
// # Outputs
//
//   - Stats: Cumulative counters plus the live active count
func (r *Registry) Statistics() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	reasons := make(map[string]int, len(r.reasons))
	for reason, count := range r.reasons {
		reasons[reason] = count
	}

	var avg time.Duration
	if r.totalCancelled > 0 {
		avg = r.durationSum / time.Duration(r.totalCancelled)
	}

	return Stats{
		TotalTokens:     r.totalCreated,
		ActiveTokens:    len(r.active),
		CancelledTokens: r.totalCancelled,
		Reasons:         reasons,
		AverageDuration: avg,
	}
}

// =============================================================================
// Garbage Collection
// =============================================================================

// Cleanup purges cancelled tokens to bound memory growth.
//
// # Description
//
// Drops every cancelled token from the id-keyed store and unlinks it from
// the children index, both as a parent entry and as a member of its own
// parent's child set. Never purges an active token. Cumulative statistics
// are unaffected; purged tokens simply stop being retrievable via Get.
//
// # Outputs
//
//   - int: Number of tokens purged
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, token := range r.tokens {
		if _, isActive := r.active[id]; isActive {
			continue
		}
		delete(r.tokens, id)
		delete(r.children, id)
		if token.parentID != "" {
			if set, ok := r.children[token.parentID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(r.children, token.parentID)
				}
			}
		}
		purged++
	}

	if purged > 0 {
		r.config.Logger.Debug("purged completed tokens", "count", purged)
	}
	return purged
}

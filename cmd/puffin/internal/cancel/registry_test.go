// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cancel

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRegistry returns a registry with silent logging.
func newTestRegistry() *Registry {
	return NewRegistry(RegistryConfig{Logger: quietLogger()})
}

// =============================================================================
// Creation Tests
// =============================================================================

func TestRegistry_Create(t *testing.T) {
	reg := newTestRegistry()

	token := reg.Create("compress photos")
	require.NotNil(t, token)
	assert.NotEmpty(t, token.ID())
	assert.Equal(t, "compress photos", token.Operation())
	assert.False(t, token.IsCancelled())

	got, ok := reg.Get(token.ID())
	require.True(t, ok)
	assert.Same(t, token, got)

	second := reg.Create("extract backup")
	assert.NotEqual(t, token.ID(), second.ID(), "ids must be collision-free")
	assert.Len(t, reg.ActiveTokens(), 2)
}

func TestRegistry_CreateChild(t *testing.T) {
	reg := newTestRegistry()
	parent := reg.Create("compress album")

	child, err := reg.CreateChild(parent.ID(), "compress track")
	require.NoError(t, err)
	assert.Equal(t, parent.ID(), child.ParentID())
	assert.False(t, child.IsCancelled())
}

func TestRegistry_CreateChild_UnknownParent(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.CreateChild("no-such-id", "orphan")
	require.Error(t, err)

	var unknown *UnknownTokenError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "no-such-id", unknown.TokenID)
}

func TestRegistry_CreateChild_CancelledParent(t *testing.T) {
	reg := newTestRegistry()
	parent := reg.Create("doomed")
	reg.Cancel(parent.ID(), "gone")

	_, err := reg.CreateChild(parent.ID(), "too late")
	var unknown *UnknownTokenError
	require.ErrorAs(t, err, &unknown)
}

// =============================================================================
// Cancel Tests
// =============================================================================

func TestRegistry_Cancel_UnknownID(t *testing.T) {
	reg := newTestRegistry()
	reg.Create("bystander")
	before := reg.Statistics()

	assert.False(t, reg.Cancel("missing", "whatever"))

	after := reg.Statistics()
	assert.Equal(t, before, after, "cancelling an unknown id must have no side effects")
}

func TestRegistry_Cancel_Idempotent(t *testing.T) {
	reg := newTestRegistry()
	token := reg.Create("once")

	invocations := 0
	token.OnCancel(func(string) { invocations++ })

	assert.True(t, reg.Cancel(token.ID(), "first"))
	assert.True(t, reg.Cancel(token.ID(), "second"), "repeat cancel returns success")

	assert.Equal(t, "first", token.Reason(), "first cancellation wins")
	assert.Equal(t, 1, invocations, "callbacks must not be re-invoked")

	stats := reg.Statistics()
	assert.Equal(t, 1, stats.CancelledTokens)
	assert.Equal(t, map[string]int{"first": 1}, stats.Reasons)
}

func TestRegistry_Cancel_DefaultReason(t *testing.T) {
	reg := newTestRegistry()
	token := reg.Create("unnamed cause")

	reg.Cancel(token.ID(), "")
	assert.Equal(t, DefaultReason, token.Reason())
	assert.Equal(t, map[string]int{DefaultReason: 1}, reg.Statistics().Reasons)
}

func TestRegistry_Cancel_SynchronousFlush(t *testing.T) {
	reg := newTestRegistry()
	token := reg.Create("flush")

	flushed := false
	token.OnCancel(func(string) { flushed = true })

	reg.Cancel(token.ID(), "now")
	assert.True(t, flushed, "callbacks must complete before Cancel returns")
}

// =============================================================================
// Hierarchy Propagation Tests
// =============================================================================

func TestRegistry_Cancel_PropagatesToDescendants(t *testing.T) {
	reg := newTestRegistry()
	parent := reg.Create("album")
	child, err := reg.CreateChild(parent.ID(), "disc")
	require.NoError(t, err)
	grandchild, err := reg.CreateChild(child.ID(), "track")
	require.NoError(t, err)

	var order []string
	parent.OnCancel(func(string) { order = append(order, "parent") })
	child.OnCancel(func(string) { order = append(order, "child") })
	grandchild.OnCancel(func(string) { order = append(order, "grandchild") })

	reg.Cancel(parent.ID(), "user quit")

	assert.True(t, parent.IsCancelled())
	assert.True(t, child.IsCancelled())
	assert.True(t, grandchild.IsCancelled(), "propagation must be transitive")
	assert.Equal(t, []string{"parent", "child", "grandchild"}, order,
		"descendants flush before Cancel returns, parent first")

	assert.Equal(t, "user quit", parent.Reason())
	assert.Equal(t, "parent cancelled: user quit", child.Reason())
	assert.Equal(t, "parent cancelled: parent cancelled: user quit", grandchild.Reason())
	assert.Empty(t, reg.ActiveTokens())
}

func TestRegistry_Cancel_ChildNeverAffectsParent(t *testing.T) {
	reg := newTestRegistry()
	parent := reg.Create("album")
	child, err := reg.CreateChild(parent.ID(), "track")
	require.NoError(t, err)

	reg.Cancel(child.ID(), "skip this one")

	assert.True(t, child.IsCancelled())
	assert.False(t, parent.IsCancelled(), "propagation is strictly downward")
	assert.Len(t, reg.ActiveTokens(), 1)
}

// =============================================================================
// Timeout Tests
// =============================================================================

func TestRegistry_CreateWithTimeout_Fires(t *testing.T) {
	reg := newTestRegistry()
	token := reg.CreateWithTimeout("slow scan", 20*time.Millisecond)

	require.Eventually(t, token.IsCancelled, 2*time.Second, 5*time.Millisecond,
		"token should auto-cancel after the timeout")
	assert.True(t, strings.Contains(token.Reason(), "timed out"),
		"reason %q should indicate a timeout", token.Reason())
}

func TestRegistry_CreateWithTimeout_ManualCancelWins(t *testing.T) {
	reg := newTestRegistry()
	token := reg.CreateWithTimeout("quick", 50*time.Millisecond)

	reg.Cancel(token.ID(), "stopped by hand")

	// Wait past the deadline: the cleared timer must never overwrite the
	// manual reason or re-run callbacks.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, "stopped by hand", token.Reason())
	assert.Equal(t, map[string]int{"stopped by hand": 1}, reg.Statistics().Reasons)
}

// =============================================================================
// CancelAll Tests
// =============================================================================

func TestRegistry_CancelAll(t *testing.T) {
	reg := newTestRegistry()
	root1 := reg.Create("one")
	root2 := reg.Create("two")
	child, err := reg.CreateChild(root1.ID(), "one.a")
	require.NoError(t, err)
	nested, err := reg.CreateChild(child.ID(), "one.a.i")
	require.NoError(t, err)
	_ = root2
	_ = nested

	count := reg.CancelAll("shutting down")

	assert.Equal(t, 4, count, "every active token counts exactly once")
	assert.Empty(t, reg.ActiveTokens())
	assert.Equal(t, 4, reg.Statistics().CancelledTokens)
}

func TestRegistry_CancelAll_Empty(t *testing.T) {
	reg := newTestRegistry()
	assert.Zero(t, reg.CancelAll("nothing to do"))
}

// =============================================================================
// Statistics Tests
// =============================================================================

func TestRegistry_Statistics(t *testing.T) {
	reg := newTestRegistry()
	a := reg.Create("a")
	b := reg.Create("b")
	reg.Create("c")

	assert.Zero(t, reg.Statistics().AverageDuration,
		"average duration is zero before any cancellation")

	reg.Cancel(a.ID(), "A")
	reg.Cancel(b.ID(), "B")

	stats := reg.Statistics()
	assert.Equal(t, 3, stats.TotalTokens)
	assert.Equal(t, 1, stats.ActiveTokens)
	assert.Equal(t, 2, stats.CancelledTokens)
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, stats.Reasons)
	assert.GreaterOrEqual(t, stats.AverageDuration, time.Duration(0))
}

func TestRegistry_Statistics_ReasonsIsACopy(t *testing.T) {
	reg := newTestRegistry()
	token := reg.Create("a")
	reg.Cancel(token.ID(), "A")

	stats := reg.Statistics()
	stats.Reasons["forged"] = 99

	assert.Equal(t, map[string]int{"A": 1}, reg.Statistics().Reasons)
}

// =============================================================================
// Cleanup Tests
// =============================================================================

func TestRegistry_Cleanup(t *testing.T) {
	reg := newTestRegistry()
	keep := reg.Create("still running")
	done := reg.Create("finished")
	reg.Cancel(done.ID(), "complete")

	purged := reg.Cleanup()
	assert.Equal(t, 1, purged)

	_, ok := reg.Get(done.ID())
	assert.False(t, ok, "purged tokens are no longer retrievable")

	got, ok := reg.Get(keep.ID())
	require.True(t, ok, "active tokens must never be purged")
	assert.Same(t, keep, got)

	stats := reg.Statistics()
	assert.Equal(t, 2, stats.TotalTokens, "cumulative counters survive purges")
	assert.Equal(t, 1, stats.ActiveTokens)
	assert.Equal(t, 1, stats.CancelledTokens)
}

func TestRegistry_Cleanup_DropsChildrenIndex(t *testing.T) {
	reg := newTestRegistry()
	parent := reg.Create("p")
	_, err := reg.CreateChild(parent.ID(), "c")
	require.NoError(t, err)

	reg.Cancel(parent.ID(), "done")
	reg.Cleanup()

	reg.mu.Lock()
	defer reg.mu.Unlock()
	assert.Empty(t, reg.children, "purged tokens leave no children-index entries")
	assert.Empty(t, reg.tokens)
	assert.Empty(t, reg.timers)
}

// =============================================================================
// Hook Tests
// =============================================================================

func TestRegistry_Hooks(t *testing.T) {
	var created, cancelled []string
	reg := NewRegistry(RegistryConfig{
		Logger:         quietLogger(),
		OnTokenCreated: func(tok *Token) { created = append(created, tok.Operation()) },
		OnTokenCancelled: func(tok *Token, reason string, elapsed time.Duration) {
			cancelled = append(cancelled, tok.Operation()+"/"+reason)
		},
	})

	token := reg.Create("hooked")
	reg.Cancel(token.ID(), "observed")

	assert.Equal(t, []string{"hooked"}, created)
	assert.Equal(t, []string{"hooked/observed"}, cancelled)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestRegistry_ConcurrentCancel_ExactlyOnce(t *testing.T) {
	reg := newTestRegistry()
	token := reg.Create("contested")

	var mu sync.Mutex
	invocations := 0
	token.OnCancel(func(string) {
		mu.Lock()
		invocations++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Cancel(token.ID(), "race")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, invocations, "concurrent cancels must not double-invoke callbacks")
	assert.Equal(t, 1, reg.Statistics().CancelledTokens)
}

func TestRegistry_CallbackMayReenterRegistry(t *testing.T) {
	reg := newTestRegistry()
	token := reg.Create("reentrant")
	other := reg.Create("collateral")

	token.OnCancel(func(string) {
		// Callbacks run outside the registry lock, so calling back in is safe.
		reg.Cancel(other.ID(), "taken down by observer")
	})

	reg.Cancel(token.ID(), "go")
	assert.True(t, other.IsCancelled())
}

// =============================================================================
// Error Formatting Tests
// =============================================================================

func TestErrorMessages(t *testing.T) {
	cancelErr := &CancellationError{TokenID: "t-1", Reason: "closed"}
	assert.Equal(t, "operation cancelled (token t-1): closed", cancelErr.Error())

	unknownErr := &UnknownTokenError{TokenID: "t-2"}
	assert.Equal(t, "unknown token: t-2", unknownErr.Error())

	var target *CancellationError
	assert.True(t, errors.As(error(cancelErr), &target))
}

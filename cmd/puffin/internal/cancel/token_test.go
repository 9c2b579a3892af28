// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cancel

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

// quietLogger discards all output so tests stay silent.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// cancelNow transitions a token and flushes its callbacks, the way the
// registry does during Cancel.
func cancelNow(t *Token, reason string) bool {
	cleanups, notifies, ok := t.transition(reason, time.Now())
	if !ok {
		return false
	}
	t.runCallbacks(quietLogger(), t.Reason(), cleanups, notifies)
	return true
}

// =============================================================================
// Initial State Tests
// =============================================================================

func TestToken_InitialState(t *testing.T) {
	token := newToken("id-1", "compress", "", time.Now())

	if token.IsCancelled() {
		t.Error("new token should not be cancelled")
	}
	if token.Reason() != "" {
		t.Errorf("Reason() = %q, want empty", token.Reason())
	}
	if !token.CancelledAt().IsZero() {
		t.Error("CancelledAt() should be zero while active")
	}
	if err := token.Checkpoint(); err != nil {
		t.Errorf("Checkpoint() = %v, want nil", err)
	}
	if token.ID() != "id-1" || token.Operation() != "compress" || token.ParentID() != "" {
		t.Error("accessor mismatch on new token")
	}
}

// =============================================================================
// Checkpoint Tests
// =============================================================================

func TestToken_Checkpoint_AfterCancel(t *testing.T) {
	token := newToken("id-2", "extract", "", time.Now())
	cancelNow(token, "user aborted")

	err := token.Checkpoint()
	if err == nil {
		t.Fatal("Checkpoint() should fail on a cancelled token")
	}

	var cancelled *CancellationError
	if !errors.As(err, &cancelled) {
		t.Fatalf("Checkpoint() error type = %T, want *CancellationError", err)
	}
	if cancelled.TokenID != "id-2" {
		t.Errorf("TokenID = %q, want id-2", cancelled.TokenID)
	}
	if cancelled.Reason != "user aborted" {
		t.Errorf("Reason = %q, want %q", cancelled.Reason, "user aborted")
	}
}

// =============================================================================
// Transition Tests
// =============================================================================

func TestToken_Transition_FirstWins(t *testing.T) {
	token := newToken("id-3", "", "", time.Now())

	if !cancelNow(token, "first") {
		t.Fatal("first transition should win")
	}
	firstAt := token.CancelledAt()

	if cancelNow(token, "second") {
		t.Error("second transition should lose")
	}
	if token.Reason() != "first" {
		t.Errorf("Reason() = %q, want %q (first cancellation wins)", token.Reason(), "first")
	}
	if !token.CancelledAt().Equal(firstAt) {
		t.Error("CancelledAt() must not change on a repeat cancellation")
	}
}

func TestToken_Transition_DefaultReason(t *testing.T) {
	token := newToken("id-4", "", "", time.Now())
	cancelNow(token, "")

	if token.Reason() != DefaultReason {
		t.Errorf("Reason() = %q, want %q", token.Reason(), DefaultReason)
	}
}

// =============================================================================
// Callback Ordering Tests
// =============================================================================

func TestToken_CallbackOrdering(t *testing.T) {
	token := newToken("id-5", "", "", time.Now())

	var order []string
	token.OnCleanup(func() error { order = append(order, "cleanup-A"); return nil })
	token.OnCleanup(func() error { order = append(order, "cleanup-B"); return nil })
	token.OnCleanup(func() error { order = append(order, "cleanup-C"); return nil })
	token.OnCancel(func(string) { order = append(order, "notify-A") })
	token.OnCancel(func(string) { order = append(order, "notify-B") })
	token.OnCancel(func(string) { order = append(order, "notify-C") })

	cancelNow(token, "done")

	want := []string{"cleanup-C", "cleanup-B", "cleanup-A", "notify-A", "notify-B", "notify-C"}
	if len(order) != len(want) {
		t.Fatalf("got %d callback invocations, want %d: %v", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestToken_NotifyReceivesReason(t *testing.T) {
	token := newToken("id-6", "", "", time.Now())

	var got string
	token.OnCancel(func(reason string) { got = reason })
	cancelNow(token, "window closed")

	if got != "window closed" {
		t.Errorf("callback reason = %q, want %q", got, "window closed")
	}
}

// =============================================================================
// Callback Isolation Tests
// =============================================================================

func TestToken_CallbackIsolation(t *testing.T) {
	token := newToken("id-7", "", "", time.Now())

	var ran []string
	token.OnCleanup(func() error { ran = append(ran, "cleanup-ok"); return nil })
	token.OnCleanup(func() error { return errors.New("release failed") })
	token.OnCleanup(func() error { panic("cleanup boom") })
	token.OnCancel(func(string) { panic("notify boom") })
	token.OnCancel(func(string) { ran = append(ran, "notify-ok") })

	cancelNow(token, "shutdown")

	if !token.IsCancelled() {
		t.Error("token must reach cancelled state despite broken callbacks")
	}
	if len(ran) != 2 || ran[0] != "cleanup-ok" || ran[1] != "notify-ok" {
		t.Errorf("surviving callbacks = %v, want [cleanup-ok notify-ok]", ran)
	}
}

// =============================================================================
// Late Registration Tests
// =============================================================================

func TestToken_RegisterAfterCancel_NoOp(t *testing.T) {
	token := newToken("id-8", "", "", time.Now())
	cancelNow(token, "over")

	ran := false
	token.OnCancel(func(string) { ran = true })
	token.OnCleanup(func() error { ran = true; return nil })

	// A second cancellation attempt must not resurrect the late callbacks.
	cancelNow(token, "again")

	if ran {
		t.Error("callbacks registered after cancellation must never run")
	}
	if token.Reason() != "over" {
		t.Errorf("Reason() = %q, want %q", token.Reason(), "over")
	}
}

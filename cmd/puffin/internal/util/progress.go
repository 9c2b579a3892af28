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

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// =============================================================================
// Progress Indicator Interface
// =============================================================================

// ProgressIndicator defines the interface for progress feedback.
//
// # Description
//
// ProgressIndicator gives visual feedback during long-running archive
// operations so the user does not assume the application has frozen.
// Progress machinery observes cancellation only through the operation's
// checkpoint failures, never by inspecting registry internals.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple
// goroutines.
type ProgressIndicator interface {
	// Start begins the progress indication.
	Start()

	// Stop halts the progress indication.
	Stop()

	// SetMessage updates the displayed message.
	SetMessage(message string)

	// IsRunning returns whether the indicator is active.
	IsRunning() bool
}

// =============================================================================
// Spinner Configuration
// =============================================================================

// SpinnerConfig configures spinner behavior.
//
// # Description
//
// Controls appearance, speed, and output destination. Zero values are
// replaced with defaults by NewSpinner. When Writer is a non-terminal
// (pipes, redirected output), the spinner disables itself so log files
// are not filled with animation frames.
type SpinnerConfig struct {
	// Message is the text displayed next to the spinner.
	Message string

	// Interval is the time between frame updates.
	// Default: 100ms
	Interval time.Duration

	// Frames are the animation characters.
	// Default: Braille dots
	Frames []string

	// Writer is where output is written.
	// Default: os.Stderr
	Writer io.Writer

	// ClearOnStop clears the spinner line when stopped.
	// Default: true
	ClearOnStop bool
}

// DefaultSpinnerConfig returns sensible defaults.
//
// # Outputs
//
//   - SpinnerConfig: Braille animation, 100ms interval, stderr output
func DefaultSpinnerConfig() SpinnerConfig {
	return SpinnerConfig{
		Message:     "Working...",
		Interval:    100 * time.Millisecond,
		Frames:      []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		Writer:      os.Stderr,
		ClearOnStop: true,
	}
}

// =============================================================================
// Spinner
// =============================================================================

// Spinner provides animated progress feedback for CLI operations.
//
// # Description
//
// Displays an animated character sequence with a message. On writers
// that are not terminals the spinner is a no-op: Start returns without
// launching the animation goroutine and IsRunning stays false.
//
// # Example
//
//	spinner := util.NewSpinner(util.SpinnerConfig{Message: "Compressing..."})
//	spinner.Start()
//	defer spinner.Stop()
//	spinner.SetMessage("Compressing photos/ (42 files, 128 MiB)")
//
// # Limitations
//
//   - Requires ANSI escape code support for in-place updates
//   - Only one spinner should write to a Writer at a time
type Spinner struct {
	config  SpinnerConfig
	enabled bool
	frame   int
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
}

// Compile-time interface check
var _ ProgressIndicator = (*Spinner)(nil)

// NewSpinner creates a new spinner with the given configuration.
//
// # Description
//
// Zero values in config are replaced with defaults. The spinner probes
// the writer: when it is an *os.File that is not a terminal, animation
// is disabled entirely.
//
// # Inputs
//
//   - config: Configuration for spinner behavior
//
// # Outputs
//
//   - *Spinner: New spinner (not yet started)
func NewSpinner(config SpinnerConfig) *Spinner {
	if config.Interval <= 0 {
		config.Interval = 100 * time.Millisecond
	}
	if len(config.Frames) == 0 {
		config.Frames = DefaultSpinnerConfig().Frames
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}

	enabled := true
	if f, ok := config.Writer.(*os.File); ok {
		enabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return &Spinner{
		config:  config,
		enabled: enabled,
	}
}

// Start begins the spinner animation.
//
// # Description
//
// Launches the animation goroutine. Safe to call repeatedly; subsequent
// calls while running are no-ops. Does nothing on non-terminal writers.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running || !s.enabled {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.spin()
}

// Stop halts the spinner animation.
//
// # Description
//
// Stops the animation goroutine and waits for it to exit, then clears
// the spinner line if ClearOnStop is set. Safe to call when not running.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done

	if s.config.ClearOnStop {
		fmt.Fprint(s.config.Writer, "\r\033[K")
	}
}

// SetMessage updates the displayed message.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.config.Message = message
	s.mu.Unlock()
}

// IsRunning returns whether the animation goroutine is active.
func (s *Spinner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// spin renders frames until stopped.
func (s *Spinner) spin() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := s.config.Frames[s.frame%len(s.config.Frames)]
			message := s.config.Message
			s.frame++
			s.mu.Unlock()
			fmt.Fprintf(s.config.Writer, "\r\033[K%s %s", frame, message)
		}
	}
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// FormatBytes renders a byte count in human-readable binary units.
//
// # Example
//
//	util.FormatBytes(1536)    // "1.5 KiB"
//	util.FormatBytes(1048576) // "1.0 MiB"
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// OperationMessage formats a progress line for an archive operation.
//
// # Inputs
//
//   - verb: Present-tense operation verb ("Compressing", "Extracting")
//   - current: Path of the entry being processed
//   - files: Entries processed so far
//   - bytes: Bytes processed so far
//
// # Outputs
//
//   - string: "Compressing photos/a.jpg (42 files, 128.0 MiB)"
func OperationMessage(verb, current string, files int, bytes int64) string {
	return fmt.Sprintf("%s %s (%d files, %s)", verb, current, files, FormatBytes(bytes))
}

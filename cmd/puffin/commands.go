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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PuffinZip/cmd/puffin/config"
	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/cancel"
	"github.com/AleutianAI/PuffinZip/pkg/logging"
)

// --- Global Command Variables ---
var (
	verboseFlag bool
	quietFlag   bool

	// appLogger and registry are built once in PersistentPreRun and
	// shared by every command in this invocation.
	appLogger *logging.Logger
	registry  *cancel.Registry

	rootCmd = &cobra.Command{
		Use:   "puffin",
		Short: "A zip utility with cooperative, registry-tracked cancellation",
		Long: `PuffinZip creates, extracts, and inspects zip archives.

Every operation runs under a cancellation token: Ctrl-C or the
configured timeout stops the operation at the next checkpoint and
cleanup callbacks remove partial output.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}

			level := logging.ParseLevel(config.Global.Logging.Level)
			if verboseFlag {
				level = logging.LevelDebug
			}
			appLogger = logging.New(logging.Config{
				Level:  level,
				LogDir: config.Global.Logging.Dir,
				Quiet:  quietFlag,
			})

			registry = cancel.NewRegistry(cancel.InstrumentRegistry(cancel.RegistryConfig{
				Logger: appLogger.Slog(),
			}))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				appLogger.Close()
			}
		},
	}

	// --- Archive Operations ---
	compressCmd = &cobra.Command{
		Use:   "compress [source...]",
		Short: "Create a zip archive from files and directories",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCompressCommand, // Defined in cmd_compress.go
	}
	extractCmd = &cobra.Command{
		Use:   "extract [archive]",
		Short: "Extract a zip archive",
		Args:  cobra.ExactArgs(1),
		Run:   runExtractCommand, // Defined in cmd_extract.go
	}
	listCmd = &cobra.Command{
		Use:   "list [archive...]",
		Short: "List the contents of one or more zip archives",
		Args:  cobra.MinimumNArgs(1),
		Run:   runListCommand, // Defined in cmd_scan.go
	}

	// --- Registry Views ---
	opsCmd = &cobra.Command{
		Use:   "ops",
		Short: "Inspect and cancel tracked operations",
	}
	opsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List active operations in this process",
		Run:   runOpsList, // Defined in cmd_ops.go
	}
	opsCancelCmd = &cobra.Command{
		Use:   "cancel [token-id]",
		Short: "Cancel a tracked operation by token id",
		Args:  cobra.ExactArgs(1),
		Run:   runOpsCancel, // Defined in cmd_ops.go
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cumulative cancellation statistics",
		Run:   runStatsCommand, // Defined in cmd_ops.go
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Purge settled tokens from the registry",
		Run:   runCleanupCommand, // Defined in cmd_ops.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"Suppress stderr logging")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(opsCmd)
	opsCmd.AddCommand(opsListCmd)
	opsCmd.AddCommand(opsCancelCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// runWithToken creates a registry token with a timeout, wires SIGINT
// to cancellation, and runs fn. On success the token is retired with
// reason "completed" so it leaves the active view; on cancellation the
// token's reason is already settled by whoever cancelled first.
func runWithToken(operation string, timeout time.Duration, fn func(*cancel.Token) error) error {
	token := registry.CreateWithTimeout(operation, timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			registry.Cancel(token.ID(), "interrupted by user")
		}
	}()

	err := fn(token)
	registry.Cancel(token.ID(), "completed")
	signal.Stop(sigCh)
	close(sigCh)
	return err
}

// exitOnError renders the error and exits. Cancellations get a
// distinct message and exit code from I/O failures.
func exitOnError(err error) {
	if err == nil {
		return
	}
	var cancelErr *cancel.CancellationError
	if errors.As(err, &cancelErr) {
		fmt.Fprintf(os.Stderr, "operation cancelled: %s\n", cancelErr.Reason)
		os.Exit(130)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

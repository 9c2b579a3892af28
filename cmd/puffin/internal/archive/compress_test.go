// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package archive

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PuffinZip/cmd/puffin/internal/cancel"
)

// newTestRegistry returns a registry with silent logging.
func newTestRegistry() *cancel.Registry {
	return cancel.NewRegistry(cancel.RegistryConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// buildTree creates a small source tree for compression tests.
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "photos")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "raw"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "raw", "b.txt"), []byte("bravo bravo"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "raw", "big.bin"), bytes.Repeat([]byte{0xAB}, 600_000), 0644))
	return src
}

// =============================================================================
// Roundtrip Tests
// =============================================================================

func TestCompress_Roundtrip(t *testing.T) {
	reg := newTestRegistry()
	src := buildTree(t)
	dest := filepath.Join(t.TempDir(), "photos.zip")

	token := reg.Create("compress")
	summary, err := Compress(token, []string{src}, dest, CompressOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, int64(5+11+600_000), summary.Bytes)
	assert.Positive(t, summary.ArchiveSize)

	outDir := filepath.Join(t.TempDir(), "restored")
	extractToken := reg.Create("extract")
	extracted, err := Extract(extractToken, dest, outDir, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, extracted.Files)
	assert.Equal(t, summary.Bytes, extracted.Bytes)

	got, err := os.ReadFile(filepath.Join(outDir, "photos", "raw", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo bravo", string(got))

	// Empty directories survive the roundtrip.
	info, err := os.Stat(filepath.Join(outDir, "photos", "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCompress_SingleFileSource(t *testing.T) {
	reg := newTestRegistry()
	dir := t.TempDir()
	file := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0644))
	dest := filepath.Join(dir, "note.zip")

	summary, err := Compress(reg.Create("compress"), []string{file}, dest, CompressOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, int64(5), summary.Bytes)
}

// =============================================================================
// Failure Tests
// =============================================================================

func TestCompress_DestinationExists(t *testing.T) {
	reg := newTestRegistry()
	src := buildTree(t)
	dest := filepath.Join(t.TempDir(), "photos.zip")
	require.NoError(t, os.WriteFile(dest, []byte("occupied"), 0644))

	_, err := Compress(reg.Create("compress"), []string{src}, dest, CompressOptions{})
	require.Error(t, err)

	var cancelled *cancel.CancellationError
	assert.False(t, errors.As(err, &cancelled), "an I/O failure must not masquerade as cancellation")
}

func TestCompress_MissingSource(t *testing.T) {
	reg := newTestRegistry()
	dest := filepath.Join(t.TempDir(), "out.zip")

	_, err := Compress(reg.Create("compress"), []string{"/no/such/path"}, dest, CompressOptions{})
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "failed run must not leave a partial archive")
}

// =============================================================================
// Cancellation Tests
// =============================================================================

func TestCompress_CancelledTokenAborts(t *testing.T) {
	reg := newTestRegistry()
	src := buildTree(t)
	dest := filepath.Join(t.TempDir(), "photos.zip")

	token := reg.Create("compress")
	reg.Cancel(token.ID(), "changed my mind")

	_, err := Compress(token, []string{src}, dest, CompressOptions{})
	var cancelled *cancel.CancellationError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "changed my mind", cancelled.Reason)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "cancelled run must not leave a partial archive")
}

func TestCompress_CancelMidRun(t *testing.T) {
	reg := newTestRegistry()
	src := buildTree(t)
	dest := filepath.Join(t.TempDir(), "photos.zip")

	token := reg.Create("compress")
	_, err := Compress(token, []string{src}, dest, CompressOptions{
		Progress: func(update ProgressUpdate) {
			if update.Files == 1 {
				reg.Cancel(token.ID(), "enough")
			}
		},
	})

	var cancelled *cancel.CancellationError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "enough", cancelled.Reason)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "partial archive must be cleaned up on cancellation")
}

// =============================================================================
// Progress Tests
// =============================================================================

func TestCompress_ProgressReported(t *testing.T) {
	reg := newTestRegistry()
	src := buildTree(t)
	dest := filepath.Join(t.TempDir(), "photos.zip")

	var updates []ProgressUpdate
	_, err := Compress(reg.Create("compress"), []string{src}, dest, CompressOptions{
		Progress: func(update ProgressUpdate) { updates = append(updates, update) },
	})
	require.NoError(t, err)
	require.Len(t, updates, 3)

	assert.Equal(t, 1, updates[0].Files)
	assert.Equal(t, 3, updates[2].Files)
	assert.Equal(t, int64(5+11+600_000), updates[2].Bytes)
	assert.Equal(t, "photos/a.txt", updates[0].Path)
}

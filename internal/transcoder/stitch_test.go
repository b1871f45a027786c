// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStitch_SingleSegmentRenames(t *testing.T) {
	dir := t.TempDir()
	seg := filepath.Join(dir, "attempt1.mp4")
	require.NoError(t, os.WriteFile(seg, []byte("data"), 0o644))

	dest := filepath.Join(dir, "final.mp4")
	s := NewStitcher("ffmpeg")
	require.NoError(t, s.Stitch(context.Background(), []string{seg}, dest))

	_, err := os.Stat(dest)
	require.NoError(t, err)
	_, err = os.Stat(seg)
	require.True(t, os.IsNotExist(err))
}

func TestWriteConcatList_EscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	seg := filepath.Join(dir, "attempt'1.mp4")
	path, err := writeConcatList(dir, []string{seg})
	require.NoError(t, err)
	defer os.Remove(path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), `attempt'\''1.mp4`)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBinary writes a tiny shell script that stands in for ffmpeg: it
// touches its last argument (the output path) and sleeps for sleepSeconds
// before exiting with exitCode.
func fakeBinary(t *testing.T, sleepSeconds, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeffmpeg.sh")
	script := fmt.Sprintf("#!/bin/sh\nfor last; do :; done\ntouch \"$last\"\nsleep %d\nexit %d\n", sleepSeconds, exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRunner_StartWaitCleanExit(t *testing.T) {
	bin := fakeBinary(t, 0, 0)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")

	r := NewRunner(bin, 5*time.Second)
	require.NoError(t, r.Start(context.Background(), []string{"-y", out}, nil))

	st, err := r.Wait()
	require.NoError(t, err)
	require.Equal(t, 0, st.Code)
	require.False(t, st.Signaled)

	_, statErr := os.Stat(out)
	require.NoError(t, statErr)
}

func TestRunner_LogPathReceivesStderrVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeffmpeg.sh")
	script := "#!/bin/sh\nfor last; do :; done\ntouch \"$last\"\necho 'frame=1 fps=30' >&2\necho 'frame=2 fps=30' >&2\nexit 0\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	out := filepath.Join(dir, "out.mp4")
	logPath := filepath.Join(dir, "logs", "recording.log")

	r := NewRunner(path, 5*time.Second)
	r.LogPath = logPath
	require.NoError(t, r.Start(context.Background(), []string{"-y", out}, nil))

	_, err := r.Wait()
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Equal(t, "frame=1 fps=30\nframe=2 fps=30\n", string(data))
}

func TestRunner_StopSendsSignal(t *testing.T) {
	bin := fakeBinary(t, 5, 0)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")

	r := NewRunner(bin, 2*time.Second)
	require.NoError(t, r.Start(context.Background(), []string{"-y", out}, nil))

	done := make(chan struct{})
	go func() {
		_, _ = r.Wait()
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, r.Stop(context.Background()))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not exit after Stop")
	}
}

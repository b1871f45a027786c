// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamkeep/streamkeep/internal/persistence"
	"github.com/streamkeep/streamkeep/internal/prober"
	"github.com/streamkeep/streamkeep/internal/settings"
	"github.com/streamkeep/streamkeep/internal/transcoder"
)

type fakeProber struct {
	outcome prober.Outcome
	err     error
}

func (f *fakeProber) Probe(ctx context.Context, rtspURL string, timeout time.Duration) (prober.Outcome, error) {
	return f.outcome, f.err
}
func (f *fakeProber) Close() {}

// fakeFFmpeg writes a shell script that touches its last argument and
// exits cleanly after sleepSeconds, standing in for the real transcoder
// binary so the Supervisor's subprocess lifecycle can be exercised without
// depending on ffmpeg being installed.
func fakeFFmpeg(t *testing.T, sleepSeconds int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeffmpeg.sh")
	script := fmt.Sprintf("#!/bin/sh\nfor last; do :; done\ntouch \"$last\"\nsleep %d\nexit 0\n", sleepSeconds)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func testSettings(t *testing.T, binPath string, durationSec int) func() settings.Settings {
	outDir := t.TempDir()
	cfg := settings.Defaults()
	cfg.TranscoderPath = binPath
	cfg.OutputDir = outDir
	cfg.DefaultDurationSec = durationSec
	cfg.ReconnectAttempts = 1
	cfg.ReconnectDelaySec = 0
	return func() settings.Settings { return cfg }
}

func newTestStore(t *testing.T) *persistence.Store[persistence.RecordingsDocument] {
	path := filepath.Join(t.TempDir(), "recordings.json")
	return persistence.New(path, "recordings", persistence.ZeroRecordingsDocument)
}

func TestSupervisor_HappyPathCompletesAndPersists(t *testing.T) {
	bin := fakeFFmpeg(t, 1)
	store := newTestStore(t)

	rec := persistence.Recording{
		ID:        "rec-1",
		Name:      "Front Door",
		RTSPURL:   "rtsp://example.invalid/stream",
		Duration:  1,
		StartTime: time.Now(),
	}

	sup := NewSupervisor(rec, Deps{
		Prober:   &fakeProber{outcome: prober.OutcomeLive},
		Settings: testSettings(t, bin, 1),
		Store:    store,
		Stitcher: transcoder.NewStitcher(bin),
	})

	require.NoError(t, sup.Start(context.Background()))

	select {
	case <-sup.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not finish")
	}

	require.Equal(t, StatusCompleted, sup.Status())

	doc := store.Snapshot()
	require.Len(t, doc.Recordings, 1)
	require.NotNil(t, doc.Recordings[0].Success)
	require.True(t, *doc.Recordings[0].Success)
	require.NotEmpty(t, doc.Recordings[0].OutputPath)
}

func TestSupervisor_ProbeNeverLiveFinalizesFailedWithoutData(t *testing.T) {
	bin := fakeFFmpeg(t, 0)
	store := newTestStore(t)

	rec := persistence.Recording{
		ID:        "rec-2",
		Name:      "Dead Camera",
		RTSPURL:   "rtsp://example.invalid/stream",
		Duration:  5,
		StartTime: time.Now(),
	}

	sup := NewSupervisor(rec, Deps{
		Prober:   &fakeProber{outcome: prober.OutcomeNotFound},
		Settings: testSettings(t, bin, 5),
		Store:    store,
		Stitcher: transcoder.NewStitcher(bin),
	})

	require.NoError(t, sup.Start(context.Background()))

	select {
	case <-sup.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not finish")
	}

	require.Equal(t, StatusFailed, sup.Status())

	doc := store.Snapshot()
	require.Len(t, doc.Recordings, 1)
	require.NotNil(t, doc.Recordings[0].Success)
	require.False(t, *doc.Recordings[0].Success)

	neverLiveErr := ProbeNeverLiveFailure{RecordingID: "rec-2"}
	require.Equal(t, neverLiveErr.Error(), doc.Recordings[0].ErrorMessage)
}

func TestSupervisor_StopBeforeStartCancels(t *testing.T) {
	bin := fakeFFmpeg(t, 30)
	store := newTestStore(t)

	rec := persistence.Recording{
		ID:        "rec-3",
		Name:      "Scheduled Later",
		RTSPURL:   "rtsp://example.invalid/stream",
		Duration:  30,
		StartTime: time.Now().Add(time.Hour),
	}

	sup := NewSupervisor(rec, Deps{
		Prober:   &fakeProber{outcome: prober.OutcomeLive},
		Settings: testSettings(t, bin, 30),
		Store:    store,
		Stitcher: transcoder.NewStitcher(bin),
	})

	require.NoError(t, sup.Start(context.Background()))
	sup.Stop(context.Background())

	select {
	case <-sup.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish after stop")
	}

	require.Equal(t, StatusCancelled, sup.Status())
}

func TestSupervisor_UpdateRejectedAfterStart(t *testing.T) {
	bin := fakeFFmpeg(t, 30)
	store := newTestStore(t)

	rec := persistence.Recording{
		ID:        "rec-4",
		Name:      "Anything",
		RTSPURL:   "rtsp://example.invalid/stream",
		Duration:  30,
		StartTime: time.Now().Add(time.Hour),
	}

	sup := NewSupervisor(rec, Deps{
		Prober:   &fakeProber{outcome: prober.OutcomeLive},
		Settings: testSettings(t, bin, 30),
		Store:    store,
		Stitcher: transcoder.NewStitcher(bin),
	})

	require.NoError(t, sup.Start(context.Background()))
	err := sup.Update("New Name", "", time.Time{}, 0)
	require.Error(t, err)

	sup.Stop(context.Background())
	<-sup.Done()
}

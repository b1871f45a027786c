// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCaptureArgs_SoftwareH264(t *testing.T) {
	args, err := BuildCaptureArgs(ArgSpec{
		SourceURL:   "rtsp://cam.local/stream",
		OutputPath:  "/data/out.mp4",
		DurationSec: 60,
		HWAccel:     HWAccelNone,
		Container:   ContainerMP4,
		VideoCodec:  "h264",
		AudioCodec:  "aac",
		Transport:   TransportTCP,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-rtsp_transport", "tcp",
		"-rtsp_flags", "prefer_tcp",
		"-i", "rtsp://cam.local/stream",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-t", "60",
		"-movflags", "+faststart",
		"-y", "/data/out.mp4",
	}, args)
}

func TestBuildCaptureArgs_NvidiaHWAccel(t *testing.T) {
	args, err := BuildCaptureArgs(ArgSpec{
		SourceURL:   "rtsp://cam.local/stream",
		OutputPath:  "/data/out.mkv",
		DurationSec: 30,
		HWAccel:     HWAccelNvidia,
		Container:   ContainerMKV,
		VideoCodec:  "h265",
		AudioCodec:  "copy",
	})
	require.NoError(t, err)
	assert.Contains(t, args, "-hwaccel")
	assert.Contains(t, args, "cuda")
	assert.Contains(t, args, "hevc_nvenc")
	assert.NotContains(t, args, "-movflags")
}

func TestBuildCaptureArgs_CopyCodec(t *testing.T) {
	args, err := BuildCaptureArgs(ArgSpec{
		SourceURL:   "rtsp://cam.local/stream",
		OutputPath:  "/data/out.ts",
		DurationSec: 10,
		HWAccel:     HWAccelIntel,
		Container:   ContainerTS,
		VideoCodec:  "copy",
		AudioCodec:  "copy",
	})
	require.NoError(t, err)
	// copy short-circuits regardless of hwaccel family.
	assert.Contains(t, args, "copy")
}

func TestBuildCaptureArgs_Validation(t *testing.T) {
	_, err := BuildCaptureArgs(ArgSpec{OutputPath: "x", DurationSec: 1})
	assert.Error(t, err)

	_, err = BuildCaptureArgs(ArgSpec{SourceURL: "rtsp://x", DurationSec: 1})
	assert.Error(t, err)

	_, err = BuildCaptureArgs(ArgSpec{SourceURL: "rtsp://x", OutputPath: "y", DurationSec: 0})
	assert.Error(t, err)
}

func TestBuildCaptureArgs_Deterministic(t *testing.T) {
	spec := ArgSpec{
		SourceURL:   "rtsp://cam.local/stream",
		OutputPath:  "/data/out.mp4",
		DurationSec: 5,
	}
	a, err := BuildCaptureArgs(spec)
	require.NoError(t, err)
	b, err := BuildCaptureArgs(spec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

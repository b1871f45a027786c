// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_OverrideWinsOnNonZero(t *testing.T) {
	d := Defaults()
	override := Settings{OutputDir: "/custom", ReconnectAttempts: 3}
	merged := Merge(d, override)

	assert.Equal(t, "/custom", merged.OutputDir)
	assert.Equal(t, 3, merged.ReconnectAttempts)
	assert.Equal(t, d.TranscoderPath, merged.TranscoderPath)
}

func TestMerge_Idempotent(t *testing.T) {
	d := Defaults()
	override := Settings{OutputDir: "/custom"}
	once := Merge(d, override)
	twice := Merge(d, once)
	assert.Equal(t, once, twice)
}

func TestValidate_RejectsBadEnum(t *testing.T) {
	s := Defaults()
	s.HWAccel = "quantum"
	err := Validate(s)
	require.Error(t, err)
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	s := Defaults()
	s.OutputDir = t.TempDir()
	require.NoError(t, Validate(s))
}

func TestBuildTranscoderArgs_Pure(t *testing.T) {
	s := Defaults()
	a, err := BuildTranscoderArgs(s, "rtsp://h/s", "/tmp/out.mp4", 30)
	require.NoError(t, err)
	b, err := BuildTranscoderArgs(s, "rtsp://h/s", "/tmp/out.mp4", 30)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

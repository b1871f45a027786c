// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package settings holds the process-wide tunable record and the pure
// transcoder-argument builder derived from it.
package settings

import (
	"github.com/streamkeep/streamkeep/internal/transcoder"
	"github.com/streamkeep/streamkeep/internal/validate"
)

// Settings is the single process-wide configuration document.
type Settings struct {
	TranscoderPath      string               `json:"transcoderPath"`
	HWAccel             transcoder.HWAccel   `json:"hwAccel"`
	Container           transcoder.Container `json:"container"`
	VideoCodec          string               `json:"videoCodec"`
	AudioCodec          string               `json:"audioCodec"`
	RTSPTransport       transcoder.Transport `json:"rtspTransport"`
	DefaultDurationSec  int                  `json:"defaultDurationSec"`
	ReconnectAttempts   int                  `json:"reconnectAttempts"` // -1 = infinite, 0 = none
	ReconnectDelaySec   int                  `json:"reconnectDelaySec"`
	OutputDir           string               `json:"outputDir"`
	MaxStorageGB        float64              `json:"maxStorageGB"` // 0 = unlimited
	AutoDeleteAfterDays int                  `json:"autoDeleteAfterDays"` // 0 = disabled
	PreviewEnabled      bool                 `json:"previewEnabled"`
	PreviewQuality      int                  `json:"previewQuality"`
	PreviewIntervalSec  int                  `json:"previewIntervalSec"`
}

// Defaults returns the built-in default Settings.
func Defaults() Settings {
	return Settings{
		TranscoderPath:      "ffmpeg",
		HWAccel:             transcoder.HWAccelNone,
		Container:           transcoder.ContainerMP4,
		VideoCodec:          "copy",
		AudioCodec:          "copy",
		RTSPTransport:       transcoder.TransportTCP,
		DefaultDurationSec:  3600,
		ReconnectAttempts:   10,
		ReconnectDelaySec:   5,
		OutputDir:           "./data/recordings",
		MaxStorageGB:        0,
		AutoDeleteAfterDays: 0,
		PreviewEnabled:      false,
		PreviewQuality:      70,
		PreviewIntervalSec:  10,
	}
}

// Merge applies a field-by-field override on top of defaults: a non-zero
// field in override wins, a zero-value field falls back to the default. It
// is a pure function and satisfies merge(d, merge(d, s)) == merge(d, s),
// since re-merging an already-merged value changes no zero fields.
func Merge(defaults, override Settings) Settings {
	out := defaults

	if override.TranscoderPath != "" {
		out.TranscoderPath = override.TranscoderPath
	}
	if override.HWAccel != "" {
		out.HWAccel = override.HWAccel
	}
	if override.Container != "" {
		out.Container = override.Container
	}
	if override.VideoCodec != "" {
		out.VideoCodec = override.VideoCodec
	}
	if override.AudioCodec != "" {
		out.AudioCodec = override.AudioCodec
	}
	if override.RTSPTransport != "" {
		out.RTSPTransport = override.RTSPTransport
	}
	if override.DefaultDurationSec != 0 {
		out.DefaultDurationSec = override.DefaultDurationSec
	}
	if override.ReconnectAttempts != 0 {
		out.ReconnectAttempts = override.ReconnectAttempts
	}
	if override.ReconnectDelaySec != 0 {
		out.ReconnectDelaySec = override.ReconnectDelaySec
	}
	if override.OutputDir != "" {
		out.OutputDir = override.OutputDir
	}
	if override.MaxStorageGB != 0 {
		out.MaxStorageGB = override.MaxStorageGB
	}
	if override.AutoDeleteAfterDays != 0 {
		out.AutoDeleteAfterDays = override.AutoDeleteAfterDays
	}
	// Booleans and "enable quota/retention via zero" have no unambiguous zero
	// sentinel; preview flags are always taken from override verbatim.
	out.PreviewEnabled = override.PreviewEnabled
	if override.PreviewQuality != 0 {
		out.PreviewQuality = override.PreviewQuality
	}
	if override.PreviewIntervalSec != 0 {
		out.PreviewIntervalSec = override.PreviewIntervalSec
	}

	return out
}

// Validate checks a candidate Settings update and returns a ValidationError
// describing every violation found, or nil.
func Validate(s Settings) error {
	v := validate.New()

	v.NotEmpty("transcoderPath", s.TranscoderPath)
	v.OneOf("hwAccel", string(s.HWAccel), []string{"auto", "nvidia", "intel", "amd", "none"})
	v.OneOf("container", string(s.Container), []string{"mp4", "mkv", "avi", "ts"})
	v.OneOf("videoCodec", s.VideoCodec, []string{"copy", "h264", "h265", "vp9"})
	v.OneOf("audioCodec", s.AudioCodec, []string{"copy", "aac", "mp3", "opus"})
	v.OneOf("rtspTransport", string(s.RTSPTransport), []string{"tcp", "udp", "http"})
	v.Positive("defaultDurationSec", s.DefaultDurationSec)
	if s.ReconnectAttempts < -1 {
		v.AddError("reconnectAttempts", "must be -1 (infinite), 0 (disabled), or positive", s.ReconnectAttempts)
	}
	v.Range("reconnectDelaySec", s.ReconnectDelaySec, 1, 3600)
	v.Directory("outputDir", s.OutputDir, false)
	v.NonNegative("autoDeleteAfterDays", s.AutoDeleteAfterDays)

	return v.Err()
}

// BuildTranscoderArgs derives one capture invocation's argument vector from
// Settings. It is the pure function referenced by the component design: the
// same (url, outPath, durationSecs, Settings) always yields the same args.
func BuildTranscoderArgs(s Settings, url, outPath string, durationSecs int) ([]string, error) {
	return transcoder.BuildCaptureArgs(transcoder.ArgSpec{
		SourceURL:   url,
		OutputPath:  outPath,
		DurationSec: durationSecs,
		HWAccel:     s.HWAccel,
		Container:   s.Container,
		VideoCodec:  s.VideoCodec,
		AudioCodec:  s.AudioCodec,
		Transport:   s.RTSPTransport,
	})
}

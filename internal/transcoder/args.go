// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"fmt"
	"strconv"
)

// HWAccel selects the input hardware-acceleration family.
type HWAccel string

const (
	HWAccelAuto   HWAccel = "auto"
	HWAccelNvidia HWAccel = "nvidia"
	HWAccelIntel  HWAccel = "intel"
	HWAccelAMD    HWAccel = "amd"
	HWAccelNone   HWAccel = "none"
)

// Container selects the output container format.
type Container string

const (
	ContainerMP4 Container = "mp4"
	ContainerMKV Container = "mkv"
	ContainerAVI Container = "avi"
	ContainerTS  Container = "ts"
)

// Transport selects the RTSP transport.
type Transport string

const (
	TransportTCP  Transport = "tcp"
	TransportUDP  Transport = "udp"
	TransportHTTP Transport = "http"
)

// ArgSpec is the pure input to BuildCaptureArgs: everything Settings
// contributes to one capture invocation, decoupled from the Settings type
// itself so the builder stays a pure function of its arguments.
type ArgSpec struct {
	SourceURL   string
	OutputPath  string
	DurationSec int

	HWAccel   HWAccel
	Container Container
	VideoCodec string // copy, h264, h265, vp9
	AudioCodec string // copy, aac, mp3, opus
	Transport  Transport
}

// BuildCaptureArgs constructs the argument vector for one RTSP capture
// attempt. It is pure: the same ArgSpec always yields the same arguments.
func BuildCaptureArgs(spec ArgSpec) ([]string, error) {
	if spec.SourceURL == "" {
		return nil, fmt.Errorf("transcoder: missing source url")
	}
	if spec.OutputPath == "" {
		return nil, fmt.Errorf("transcoder: missing output path")
	}
	if spec.DurationSec <= 0 {
		return nil, fmt.Errorf("transcoder: duration must be positive, got %d", spec.DurationSec)
	}

	var args []string
	args = append(args, hwaccelInputFlags(spec.HWAccel)...)

	transport := spec.Transport
	if transport == "" {
		transport = TransportTCP
	}
	args = append(args,
		"-rtsp_transport", string(transport),
		"-rtsp_flags", "prefer_tcp",
		"-i", spec.SourceURL,
		"-c:v", resolveVideoEncoder(spec.VideoCodec, spec.HWAccel),
		"-c:a", resolveAudioEncoder(spec.AudioCodec),
		"-t", strconv.Itoa(spec.DurationSec),
	)
	args = append(args, containerFlags(spec.Container)...)
	args = append(args, "-y", spec.OutputPath)
	return args, nil
}

func hwaccelInputFlags(h HWAccel) []string {
	switch h {
	case HWAccelNvidia:
		return []string{"-hwaccel", "cuda", "-hwaccel_output_format", "cuda"}
	case HWAccelIntel:
		return []string{"-hwaccel", "qsv", "-hwaccel_output_format", "qsv"}
	case HWAccelAMD:
		return []string{"-hwaccel", "amf"}
	case HWAccelAuto:
		return []string{"-hwaccel", "auto"}
	case HWAccelNone, "":
		return nil
	default:
		return nil
	}
}

func resolveVideoEncoder(codec string, hw HWAccel) string {
	if codec == "copy" || codec == "" {
		return "copy"
	}
	switch hw {
	case HWAccelNvidia:
		switch codec {
		case "h265":
			return "hevc_nvenc"
		default:
			return "h264_nvenc"
		}
	case HWAccelIntel:
		switch codec {
		case "h265":
			return "hevc_qsv"
		case "vp9":
			return "vp9_qsv"
		default:
			return "h264_qsv"
		}
	case HWAccelAMD:
		switch codec {
		case "h265":
			return "hevc_amf"
		default:
			return "h264_amf"
		}
	default:
		switch codec {
		case "h265":
			return "libx265"
		case "vp9":
			return "libvpx-vp9"
		default:
			return "libx264"
		}
	}
}

func resolveAudioEncoder(codec string) string {
	switch codec {
	case "", "copy":
		return "copy"
	case "aac":
		return "aac"
	case "mp3":
		return "libmp3lame"
	case "opus":
		return "libopus"
	default:
		return codec
	}
}

func containerFlags(c Container) []string {
	switch c {
	case ContainerMP4, "":
		return []string{"-movflags", "+faststart"}
	default:
		return nil
	}
}

// Ext returns the filename extension (without leading dot) for a container.
func Ext(c Container) string {
	switch c {
	case "":
		return "mp4"
	default:
		return string(c)
	}
}

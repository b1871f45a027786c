// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"regexp"
	"strconv"
)

// Progress is a snapshot parsed from one transcoder progress line.
type Progress struct {
	Frame   int64
	FPS     float64
	Time    string
	Bitrate string
	Speed   float64
}

var (
	frameRe   = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe     = regexp.MustCompile(`fps=\s*([\d.]+)`)
	timeRe    = regexp.MustCompile(`time=\s*(\d{2}:\d{2}:\d{2}(?:\.\d+)?)`)
	bitrateRe = regexp.MustCompile(`bitrate=\s*([\d.]+kbits/s)`)
	speedRe   = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// ParseProgressLine extracts a Progress snapshot from a transcoder log line
// containing the "frame=" substring. ok is false if the line does not carry
// a recognizable progress report.
func ParseProgressLine(line string) (p Progress, ok bool) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	p.Frame, _ = strconv.ParseInt(m[1], 10, 64)

	if m := fpsRe.FindStringSubmatch(line); m != nil {
		p.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := timeRe.FindStringSubmatch(line); m != nil {
		p.Time = m[1]
	}
	if m := bitrateRe.FindStringSubmatch(line); m != nil {
		p.Bitrate = m[1]
	}
	if m := speedRe.FindStringSubmatch(line); m != nil {
		p.Speed, _ = strconv.ParseFloat(m[1], 64)
	}
	return p, true
}

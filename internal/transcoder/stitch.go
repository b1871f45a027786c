// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/streamkeep/streamkeep/internal/metrics"
	"github.com/streamkeep/streamkeep/internal/procgroup"
	"github.com/streamkeep/streamkeep/internal/telemetry"
)

var tracer = telemetry.Tracer("streamkeep/transcoder")

// Stitcher concatenates one or more attempt segments into a final output
// file using the same transcoder binary's concat demuxer.
type Stitcher struct {
	BinPath string
}

// NewStitcher creates a Stitcher. binPath defaults to "ffmpeg" when empty.
func NewStitcher(binPath string) *Stitcher {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Stitcher{BinPath: binPath}
}

// Stitch combines segments (in order) into dest. A single segment is
// renamed directly; multiple segments are concatenated with stream copy.
// It verifies the result is not suspiciously small before declaring
// success, deleting the source segments only on success.
func (s *Stitcher) Stitch(ctx context.Context, segments []string, dest string) error {
	ctx, span := tracer.Start(ctx, "transcoder.stitch")
	defer span.End()
	span.SetAttributes(attribute.Int("segment_count", len(segments)))

	fail := func(outcome string, err error) error {
		metrics.StitchOutcomes.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if len(segments) == 0 {
		return fail("exec_error", fmt.Errorf("transcoder: stitch requires at least one segment"))
	}

	if len(segments) == 1 {
		if err := os.Rename(segments[0], dest); err != nil {
			return fail("exec_error", fmt.Errorf("transcoder: rename sole segment: %w", err))
		}
		metrics.StitchOutcomes.WithLabelValues("ok").Inc()
		return nil
	}

	totalSize, err := sumSizes(segments)
	if err != nil {
		return fail("exec_error", err)
	}

	listPath, err := writeConcatList(filepath.Dir(dest), segments)
	if err != nil {
		return fail("exec_error", err)
	}
	defer os.Remove(listPath)

	args := []string{"-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-y", dest}
	cmd := exec.CommandContext(ctx, s.BinPath, args...) // #nosec G204
	procgroup.Set(cmd)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fail("exec_error", fmt.Errorf("transcoder: stitch exec: %w: %s", err, string(out)))
	}

	info, err := os.Stat(dest)
	if err != nil {
		return fail("exec_error", fmt.Errorf("transcoder: stitch output missing: %w", err))
	}
	if totalSize > 0 && float64(info.Size()) < 0.9*float64(totalSize) {
		return fail("undersized", fmt.Errorf("transcoder: stitched output %d bytes is suspiciously small versus input total %d bytes", info.Size(), totalSize))
	}

	for _, seg := range segments {
		_ = os.Remove(seg)
	}
	metrics.StitchOutcomes.WithLabelValues("ok").Inc()
	return nil
}

func sumSizes(paths []string) (int64, error) {
	var total int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return 0, fmt.Errorf("transcoder: stat segment %s: %w", p, err)
		}
		total += info.Size()
	}
	return total, nil
}

func writeConcatList(dir string, segments []string) (string, error) {
	f, err := os.CreateTemp(dir, "stitch-list-*.txt")
	if err != nil {
		return "", fmt.Errorf("transcoder: create concat list: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, seg := range segments {
		escaped := strings.ReplaceAll(filepath.Base(seg), "'", "'\\''")
		b.WriteString(fmt.Sprintf("file '%s'\n", escaped))
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("transcoder: write concat list: %w", err)
	}
	return f.Name(), nil
}

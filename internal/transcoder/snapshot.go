// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/streamkeep/streamkeep/internal/procgroup"
)

const snapshotTimeout = 10 * time.Second

// CaptureSnapshot spawns a short-lived subprocess that pulls a single frame
// from a live source into a JPEG file at dest. It has a hard 10s timeout
// and is independent of any recording's attempt bookkeeping.
func CaptureSnapshot(ctx context.Context, binPath, sourceURL, dest string) error {
	if binPath == "" {
		binPath = "ffmpeg"
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	args := []string{
		"-rtsp_transport", "tcp",
		"-i", sourceURL,
		"-frames:v", "1",
		"-y", dest,
	}
	cmd := exec.CommandContext(ctx, binPath, args...) // #nosec G204
	procgroup.Set(cmd)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("transcoder: snapshot capture: %w: %s", err, string(out))
	}
	return nil
}

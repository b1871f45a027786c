// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import "fmt"

// TerminalTranscoderFailure reports a recording whose retry budget was
// exhausted with zero captured segments on disk. It never crosses the
// Command Surface boundary as a Go error value; it is logged once in
// finalize and its message becomes the persisted recording's errorMessage.
type TerminalTranscoderFailure struct {
	RecordingID string
	Reason      string
}

func (e TerminalTranscoderFailure) Error() string {
	return fmt.Sprintf("recording %q: transcoder failed terminally: %s", e.RecordingID, e.Reason)
}

// ProbeNeverLiveFailure reports a recording whose source never answered
// live within the time budget, so no subprocess ever ran and no segments
// exist to stitch.
type ProbeNeverLiveFailure struct {
	RecordingID string
}

func (e ProbeNeverLiveFailure) Error() string {
	return fmt.Sprintf("recording %q: stream never went live within the time budget", e.RecordingID)
}

// StitchFailure reports a failed or undersized concat of a recording's
// attempt segments into its final output. Like TerminalTranscoderFailure
// it is logged in finalize rather than returned synchronously.
type StitchFailure struct {
	RecordingID string
	Reason      string
}

func (e StitchFailure) Error() string {
	return fmt.Sprintf("recording %q: stitch failed: %s", e.RecordingID, e.Reason)
}

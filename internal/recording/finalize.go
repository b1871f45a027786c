// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"context"
	"time"

	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/persistence"
)

// finalize stitches whatever attempt segments exist into the final output
// file, persists the outcome, and notifies the Storage Custodian that new
// data may have landed.
func (s *Supervisor) finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s.mu.Lock()
	attempts := append([]string(nil), s.attempts...)
	status := s.status
	errMsg := s.errorMessage
	noLiveSource := s.noLiveSource
	s.mu.Unlock()

	cfg := s.deps.Settings()
	logger := log.WithComponent("recording")

	var outputPath string
	success := status == StatusCompleted

	if len(attempts) > 0 {
		dest, err := s.finalPathFor(cfg)
		outputPath = dest
		if err != nil {
			errMsg = appendStitchError(errMsg, s.id, err)
			if status != StatusCompleted {
				success = false
			}
		} else if s.deps.Stitcher != nil {
			if err := s.deps.Stitcher.Stitch(ctx, attempts, dest); err != nil {
				errMsg = appendStitchError(errMsg, s.id, err)
				if status != StatusCompleted {
					success = false
				}
			}
		}
	} else if !success && noLiveSource {
		neverLiveErr := ProbeNeverLiveFailure{RecordingID: s.id}
		logger.Error().Err(neverLiveErr).Msg("recording finalize failed")
		errMsg = neverLiveErr.Error()
	} else if !success {
		reason := errMsg
		if reason == "" {
			reason = "retry budget exhausted with no captured segments"
		}
		termErr := TerminalTranscoderFailure{RecordingID: s.id, Reason: reason}
		logger.Error().Err(termErr).Msg("recording finalize failed")
		errMsg = termErr.Error()
	}

	s.persist(ctx, &success, outputPath, errMsg)

	logger.Info().
		Str("recording_id", s.id).
		Str("status", string(status)).
		Bool("success", success).
		Str("output_path", outputPath).
		Msg("recording finalized")

	if s.deps.OnSweepTrigger != nil {
		s.deps.OnSweepTrigger()
	}
}

// appendStitchError logs a StitchFailure and appends it to the recording's
// errorMessage without overwriting whatever was already there: a stitch
// failure on an otherwise-completed recording must not erase a prior
// TransientTranscoderExit note, and must not demote the terminal status.
func appendStitchError(errMsg, recordingID string, err error) string {
	stitchErr := StitchFailure{RecordingID: recordingID, Reason: err.Error()}
	logger := log.WithComponent("recording")
	logger.Error().Err(stitchErr).Msg("recording finalize failed")
	if errMsg == "" {
		return stitchErr.Error()
	}
	return errMsg + "; " + stitchErr.Error()
}

// finalizeCancelled handles the stop-before-completion path: it stops any
// active runner, records cancelled status, and persists without
// attempting to stitch (cancelled recordings keep their segments on disk
// for manual recovery).
func (s *Supervisor) finalizeCancelled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.mu.Lock()
	runner := s.currentRunner
	s.mu.Unlock()
	if runner != nil {
		_ = runner.Stop(ctx)
	}

	s.transition(EventStop)
	cancelled := false
	s.persist(ctx, &cancelled, "", "cancelled")
}

func (s *Supervisor) persist(ctx context.Context, success *bool, outputPath, errMsg string) {
	if s.deps.Store == nil {
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	name := s.name
	url := s.url
	startTime := s.startTime
	duration := s.durationSec
	s.mu.Unlock()

	var completedAt *time.Time
	if success != nil && !now.Before(startTime) {
		completedAt = &now
	}

	_ = s.deps.Store.Mutate(ctx, func(doc *persistence.RecordingsDocument) error {
		for i := range doc.Recordings {
			if doc.Recordings[i].ID == s.id {
				doc.Recordings[i].Success = success
				doc.Recordings[i].OutputPath = outputPath
				doc.Recordings[i].CompletedAt = completedAt
				doc.Recordings[i].ErrorMessage = errMsg
				doc.Recordings[i].UpdatedAt = now
				return nil
			}
		}
		doc.Recordings = append(doc.Recordings, persistence.Recording{
			ID:           s.id,
			Name:         name,
			RTSPURL:      url,
			Duration:     duration,
			StartTime:    startTime,
			CreatedAt:    now,
			UpdatedAt:    now,
			Success:      success,
			OutputPath:   outputPath,
			CompletedAt:  completedAt,
			ErrorMessage: errMsg,
		})
		return nil
	})
}

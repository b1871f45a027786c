// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/metrics"
	"github.com/streamkeep/streamkeep/internal/prober"
	"github.com/streamkeep/streamkeep/internal/settings"
	"github.com/streamkeep/streamkeep/internal/telemetry"
	"github.com/streamkeep/streamkeep/internal/transcoder"
)

var tracer = telemetry.Tracer("streamkeep/recording")

// run is the supervisor's main loop: wait for the scheduled start, then
// alternate between waiting for a live source and driving one capture
// attempt until the recording reaches a terminal status.
func (s *Supervisor) run(initialDelay time.Duration) {
	defer s.closeDone()

	if initialDelay > 0 {
		timer := time.NewTimer(initialDelay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			s.finalizeCancelled()
			return
		}
	}

	for {
		if s.ctx.Err() != nil {
			s.finalizeCancelled()
			return
		}

		cfg := s.deps.Settings()

		s.mu.Lock()
		ignore := s.ignoreProbe
		s.mu.Unlock()

		var probeEvent Event
		if ignore {
			probeEvent = EventProbeIgnored
		} else {
			live := s.waitForLive(cfg)
			if s.ctx.Err() != nil {
				s.finalizeCancelled()
				return
			}
			if !live {
				s.mu.Lock()
				s.noLiveSource = true
				s.mu.Unlock()
				s.transition(s.probeExhaustionEvent())
				s.finalize()
				return
			}
			probeEvent = EventProbeLive
		}

		if _, err := s.transition(probeEvent); err != nil {
			s.logEvent().Err(err).Msg("probe transition rejected")
			s.finalize()
			return
		}

		exitEvent := s.runAttempt(cfg)
		if exitEvent == "" {
			s.finalizeCancelled()
			return
		}
		if _, err := s.transition(exitEvent); err != nil {
			s.logEvent().Err(err).Msg("exit transition rejected")
			s.finalize()
			return
		}
		if exitEvent == EventSubprocessExitMoreBudget {
			metrics.SupervisorRetries.Inc()
			continue
		}
		s.finalize()
		return
	}
}

func (s *Supervisor) logEvent() *zerolog.Event {
	logger := log.WithComponent("recording")
	return logger.Error().Str("recording_id", s.id)
}

func (s *Supervisor) probeExhaustionEvent() Event {
	s.mu.Lock()
	hasData := len(s.attempts) > 0
	s.mu.Unlock()
	if hasData {
		return EventProbeWaitExhaustedWithData
	}
	return EventProbeWaitExhaustedNoData
}

// doneEvent reports a subprocess-exit outcome with no reconnect budget
// left to retry, split by whether any attempt segment was produced.
func (s *Supervisor) doneEvent() Event {
	s.mu.Lock()
	hasData := len(s.attempts) > 0
	s.mu.Unlock()
	if hasData {
		return EventSubprocessExitDoneWithData
	}
	return EventSubprocessExitDoneNoData
}

// waitForLive polls the prober until the source reports live, the
// reconnect budget is exhausted, or the recording's time budget runs out.
// A nil Prober is treated as "always live" so the supervisor still
// functions with probing disabled entirely.
func (s *Supervisor) waitForLive(cfg settings.Settings) bool {
	if s.deps.Prober == nil {
		return true
	}

	attempt := 0
	for {
		if s.remaining(time.Now()) <= 0 {
			return false
		}

		outcome, err := s.deps.Prober.Probe(s.ctx, s.url, 5*time.Second)
		if err == nil && outcome == prober.OutcomeLive {
			return true
		}

		attempt++
		if cfg.ReconnectAttempts >= 0 && attempt > cfg.ReconnectAttempts {
			return false
		}

		delay := time.Duration(cfg.ReconnectDelaySec) * time.Second
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			return false
		}
	}
}

// runAttempt spawns one capture attempt and blocks until it exits, the
// time budget elapses, or the supervisor is stopped. It returns the event
// to dispatch next, or "" if the attempt was cut short by cancellation.
func (s *Supervisor) runAttempt(cfg settings.Settings) Event {
	remaining := s.remaining(time.Now())
	if remaining <= 0 {
		return s.doneEvent()
	}

	s.mu.Lock()
	attemptIdx := len(s.attempts) + 1
	s.mu.Unlock()

	runCtx, span := tracer.Start(s.ctx, "recording.subprocess_run")
	span.SetAttributes(
		attribute.String("recording_id", s.id),
		attribute.Int("attempt", attemptIdx),
	)
	defer span.End()

	attemptStart := time.Now()
	outPath, err := s.outputPathFor(cfg, attemptStart, attemptIdx)
	if err != nil {
		s.setError(err.Error())
		return s.doneEvent()
	}

	budgetSecs := int(remaining.Seconds())
	if budgetSecs < 1 {
		budgetSecs = 1
	}
	args, err := settings.BuildTranscoderArgs(cfg, s.url, outPath, budgetSecs)
	if err != nil {
		s.setError(err.Error())
		return s.doneEvent()
	}

	newRunner := s.deps.NewRunner
	if newRunner == nil {
		newRunner = transcoder.NewRunner
	}
	runner := newRunner(cfg.TranscoderPath, 10*time.Second)

	if logPath, lerr := s.logPathFor(); lerr != nil {
		logger := log.WithComponent("recording")
		logger.Warn().Err(lerr).Str("recording_id", s.id).Msg("failed to resolve recording log path")
	} else {
		runner.LogPath = logPath
	}

	s.mu.Lock()
	s.currentRunner = runner
	s.mu.Unlock()

	// Recorded before Start so a crash or cancellation mid-spawn still
	// leaves outPath in the attempt list; a stitch later sees a possibly
	// empty file rather than losing track of it entirely.
	s.recordAttempt(outPath)

	if err := runner.Start(runCtx, args, s.onProgress); err != nil {
		s.setError(err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.exitEventForFailedStart()
	}

	type result struct {
		status transcoder.ExitStatus
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		st, err := runner.Wait()
		resultCh <- result{st, err}
	}()

	select {
	case <-s.ctx.Done():
		_ = runner.Stop(context.Background())
		<-resultCh
		return ""
	case res := <-resultCh:
		elapsed := time.Since(attemptStart)
		span.SetAttributes(
			attribute.Int("exit_code", res.status.Code),
			attribute.Bool("signaled", res.status.Signaled),
		)
		if res.err != nil {
			s.setError(res.err.Error())
			span.RecordError(res.err)
			span.SetStatus(codes.Error, res.err.Error())
		}
		return s.classifyExit(cfg, res.status, elapsed, remaining)
	}
}

// classifyExit decides whether an ended attempt consumed the full time
// budget (in which case it is final) or ended early and still has
// reconnect budget left (in which case the supervisor retries).
func (s *Supervisor) classifyExit(cfg settings.Settings, st transcoder.ExitStatus, elapsed, budgeted time.Duration) Event {
	const slack = 2 * time.Second
	ranFull := elapsed >= budgeted-slack
	clean := st.Code == 0 && !st.Signaled

	if ranFull || clean {
		return s.doneEvent()
	}

	s.mu.Lock()
	s.retryCount++
	retries := s.retryCount
	s.mu.Unlock()

	if cfg.ReconnectAttempts >= 0 && retries > cfg.ReconnectAttempts {
		return s.doneEvent()
	}
	return EventSubprocessExitMoreBudget
}

func (s *Supervisor) exitEventForFailedStart() Event {
	s.mu.Lock()
	s.retryCount++
	retries := s.retryCount
	s.mu.Unlock()
	cfg := s.deps.Settings()
	if cfg.ReconnectAttempts >= 0 && retries > cfg.ReconnectAttempts {
		return s.doneEvent()
	}
	return EventSubprocessExitMoreBudget
}

func (s *Supervisor) onProgress(p transcoder.Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

func (s *Supervisor) recordAttempt(path string) {
	s.mu.Lock()
	s.attempts = append(s.attempts, path)
	s.mu.Unlock()
}

func (s *Supervisor) setError(msg string) {
	s.mu.Lock()
	s.errorMessage = msg
	s.mu.Unlock()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/metrics"
	"github.com/streamkeep/streamkeep/internal/procgroup"
)

// ExitStatus describes how a capture attempt ended.
type ExitStatus struct {
	Code      int
	Signaled  bool
	StartedAt time.Time
	EndedAt   time.Time
}

// ProgressFunc receives each parsed progress snapshot as it is observed.
type ProgressFunc func(Progress)

// Runner drives a single media-transcoder subprocess for one capture
// attempt. A Runner is used exactly once; the Recording Supervisor creates
// a fresh Runner per attempt.
type Runner struct {
	BinPath     string
	KillTimeout time.Duration

	// LogPath, if set before Start, receives every stderr line verbatim,
	// appended to whatever the per-recording log file already holds
	// across earlier attempts. A failure to open it is logged and
	// otherwise ignored; the ring buffer is still populated either way.
	LogPath string

	mu   sync.Mutex
	cmd  *exec.Cmd
	ring *LineRing

	started  chan struct{}
	startErr error

	// waitDone is closed exactly once, by the single goroutine that calls
	// cmd.Wait(). Wait() and Stop() both block on it instead of calling
	// cmd.Wait() themselves, since exec.Cmd forbids concurrent or repeated
	// Wait calls.
	waitDone   chan struct{}
	waitStatus ExitStatus
	waitErr    error
}

// NewRunner creates a Runner. binPath defaults to "ffmpeg" when empty.
func NewRunner(binPath string, killTimeout time.Duration) *Runner {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	if killTimeout <= 0 {
		killTimeout = 5 * time.Second
	}
	return &Runner{
		BinPath:     binPath,
		KillTimeout: killTimeout,
		ring:        NewLineRing(256),
		started:     make(chan struct{}),
		waitDone:    make(chan struct{}),
	}
}

// Start spawns the subprocess with the given argument vector in its own
// process group and begins draining stderr into the ring buffer and the
// progress callback. It returns once the process has been started (or
// failed to start); it does not wait for exit.
func (r *Runner) Start(ctx context.Context, args []string, onProgress ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("transcoder: runner already started")
	}

	logger := log.WithContext(ctx, log.WithComponent("transcoder"))

	cmd := exec.CommandContext(ctx, r.BinPath, args...) // #nosec G204
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		close(r.started)
		return fmt.Errorf("transcoder: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		close(r.started)
		metrics.TranscoderExits.WithLabelValues("spawn_error").Inc()
		return fmt.Errorf("transcoder: start: %w", err)
	}

	r.cmd = cmd
	close(r.started)

	var logFile *os.File
	if r.LogPath != "" {
		if merr := os.MkdirAll(filepath.Dir(r.LogPath), 0750); merr != nil {
			logger.Warn().Err(merr).Str("path", r.LogPath).Msg("failed to create recording log directory")
		} else if f, ferr := os.OpenFile(r.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); ferr != nil { // #nosec G302
			logger.Warn().Err(ferr).Str("path", r.LogPath).Msg("failed to open recording log file")
		} else {
			logFile = f
		}
	}

	go func() {
		if logFile != nil {
			defer logFile.Close()
		}
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			_, _ = r.ring.Write([]byte(line))
			_, _ = r.ring.Write([]byte("\n"))
			if logFile != nil {
				_, _ = logFile.WriteString(line + "\n")
			}
			if onProgress != nil {
				if p, ok := ParseProgressLine(line); ok {
					onProgress(p)
				}
			}
		}
	}()

	logger.Info().Str("command", cmd.String()).Msg("starting transcoder attempt")

	go r.waitOnce(cmd)
	return nil
}

// waitOnce is the single caller of cmd.Wait() for this Runner. It runs in
// its own goroutine, started right after the process spawns, and records
// the outcome for Wait() and Stop() to read back from waitDone.
func (r *Runner) waitOnce(cmd *exec.Cmd) {
	start := time.Now()
	waitErr := cmd.Wait()
	end := time.Now()
	metrics.TranscoderAttemptDuration.WithLabelValues().Observe(end.Sub(start).Seconds())

	status := ExitStatus{StartedAt: start, EndedAt: end}
	switch {
	case waitErr == nil:
		status.Code = 0
		metrics.TranscoderExits.WithLabelValues("clean").Inc()
	default:
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			status.Code = exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				status.Signaled = true
				metrics.TranscoderExits.WithLabelValues("killed").Inc()
			} else {
				metrics.TranscoderExits.WithLabelValues("nonzero").Inc()
			}
		} else {
			status.Code = -1
			metrics.TranscoderExits.WithLabelValues("spawn_error").Inc()
		}
	}

	r.mu.Lock()
	r.waitStatus = status
	r.waitErr = waitErr
	r.mu.Unlock()
	close(r.waitDone)
}

// Wait blocks until the subprocess exits and returns its status.
func (r *Runner) Wait() (ExitStatus, error) {
	<-r.started

	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil {
		return ExitStatus{}, fmt.Errorf("transcoder: process never started")
	}

	<-r.waitDone

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitStatus, r.waitErr
}

// Stop sends the soft-stop signal to the subprocess's process group,
// escalating to SIGKILL after KillTimeout if it has not exited. It
// delegates the actual escalation to procgroup.Terminate, feeding it a
// one-shot channel sourced from the same waitOnce result Wait() reads.
// It returns nil once the process has exited, whatever its exit status;
// Wait reports that status.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cmd := r.cmd
	killTimeout := r.KillTimeout
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	logger := log.WithContext(ctx, log.WithComponent("transcoder"))
	logger.Debug().Msg("sending soft-stop signal to transcoder process group")

	waitCh := make(chan error, 1)
	go func() {
		<-r.waitDone
		r.mu.Lock()
		err := r.waitErr
		r.mu.Unlock()
		waitCh <- err
	}()

	err := procgroup.Terminate(cmd, waitCh, killTimeout)
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}

// LastLogLines returns the last n captured stderr lines.
func (r *Runner) LastLogLines(n int) []string {
	return r.ring.LastN(n)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
)

// Set is a no-op on Windows: there is no process-group concept to attach to
// a *syscall.SysProcAttr here.
func Set(cmd *exec.Cmd) {}

// Kill maps SIGKILL to Process.Kill and otherwise no-ops, since Windows has
// no equivalent to a graceful POSIX signal delivery. Terminate's SIGTERM
// phase is effectively skipped on this platform; the process only stops once
// the SIGKILL escalation fires.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		return cmd.Process.Kill()
	}
	return nil
}

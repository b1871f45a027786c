// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recording implements the Recording Supervisor: the per-job state
// machine that coordinates scheduling, liveness probing, subprocess
// lifecycle, retry/stitch logic, and persistence of outcome.
package recording

// Status is the derived runtime state of a recording. It is not persisted
// directly; it is computed from the in-memory supervisor plus the
// persisted Success field.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusStarting  Status = "starting"
	StatusRecording Status = "recording"
	StatusRetrying  Status = "retrying"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether a status absorbs all further events.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Event is an input to the supervisor's dispatcher.
type Event string

const (
	EventStart                      Event = "start"
	EventStop                       Event = "stop"
	EventUpdate                     Event = "update"
	EventProbeLive                  Event = "probe_live"
	EventProbeNotLive               Event = "probe_not_live"
	EventProbeIgnored               Event = "probe_ignored"
	EventSubprocessExitMoreBudget   Event = "subprocess_exit_more_budget"
	EventSubprocessExitDoneWithData Event = "subprocess_exit_done_with_data"
	EventSubprocessExitDoneNoData   Event = "subprocess_exit_done_no_data"
	EventProbeWaitExhaustedWithData Event = "probe_wait_exhausted_with_data"
	EventProbeWaitExhaustedNoData   Event = "probe_wait_exhausted_no_data"
)

// DecisionReason explains why an event was rejected for a given status.
type DecisionReason string

const (
	ReasonAllowed       DecisionReason = ""
	ReasonAlreadyStatus DecisionReason = "already in status"
	ReasonOutOfOrder    DecisionReason = "out of order"
	ReasonTerminal      DecisionReason = "terminal status absorbs all events"
	ReasonRequiresStart DecisionReason = "requires prior start"
)

// decisionRow is one (status, event) entry in the decision table.
type decisionRow struct {
	from   Status
	event  Event
	reason DecisionReason
}

// decisionTable enumerates every (status, event) pair the supervisor may
// encounter, stating whether it is allowed (ReasonAllowed) or, if not, why.
var decisionTable = []decisionRow{
	{StatusScheduled, EventStart, ReasonAllowed},
	{StatusScheduled, EventUpdate, ReasonAllowed},
	{StatusScheduled, EventStop, ReasonAllowed},

	{StatusStarting, EventProbeLive, ReasonAllowed},
	{StatusStarting, EventProbeNotLive, ReasonAllowed},
	{StatusStarting, EventProbeIgnored, ReasonAllowed},
	{StatusStarting, EventProbeWaitExhaustedWithData, ReasonAllowed},
	{StatusStarting, EventProbeWaitExhaustedNoData, ReasonAllowed},
	{StatusStarting, EventStop, ReasonAllowed},
	{StatusStarting, EventStart, ReasonAlreadyStatus},
	{StatusStarting, EventUpdate, ReasonOutOfOrder},

	{StatusRecording, EventSubprocessExitMoreBudget, ReasonAllowed},
	{StatusRecording, EventSubprocessExitDoneWithData, ReasonAllowed},
	{StatusRecording, EventSubprocessExitDoneNoData, ReasonAllowed},
	{StatusRecording, EventStop, ReasonAllowed},
	{StatusRecording, EventStart, ReasonAlreadyStatus},
	{StatusRecording, EventUpdate, ReasonOutOfOrder},

	{StatusRetrying, EventProbeLive, ReasonAllowed},
	{StatusRetrying, EventProbeNotLive, ReasonAllowed},
	{StatusRetrying, EventProbeIgnored, ReasonAllowed},
	{StatusRetrying, EventProbeWaitExhaustedWithData, ReasonAllowed},
	{StatusRetrying, EventProbeWaitExhaustedNoData, ReasonAllowed},
	{StatusRetrying, EventStop, ReasonAllowed},
	{StatusRetrying, EventUpdate, ReasonOutOfOrder},

	{StatusCompleted, EventStart, ReasonTerminal},
	{StatusCompleted, EventStop, ReasonTerminal},
	{StatusCompleted, EventUpdate, ReasonTerminal},
	{StatusFailed, EventStart, ReasonTerminal},
	{StatusFailed, EventStop, ReasonTerminal},
	{StatusFailed, EventUpdate, ReasonTerminal},
	{StatusCancelled, EventStart, ReasonTerminal},
	{StatusCancelled, EventStop, ReasonTerminal},
	{StatusCancelled, EventUpdate, ReasonTerminal},
}

// DecisionFor reports whether event is permitted from status from, and why
// not if it is rejected.
func DecisionFor(from Status, event Event) DecisionReason {
	for _, row := range decisionTable {
		if row.from == from && row.event == event {
			return row.reason
		}
	}
	if from.IsTerminal() {
		return ReasonTerminal
	}
	return ReasonOutOfOrder
}

// transitionRow is one (status, event) -> status entry in the transition
// table, kept separate from the decision table so that "is this allowed"
// and "what does it become" are independently readable.
type transitionRow struct {
	from  Status
	event Event
	to    Status
}

var transitionTable = []transitionRow{
	{StatusScheduled, EventStart, StatusStarting},
	{StatusScheduled, EventStop, StatusCancelled},

	{StatusStarting, EventProbeLive, StatusRecording},
	{StatusStarting, EventProbeIgnored, StatusRecording},
	{StatusStarting, EventProbeNotLive, StatusStarting},
	{StatusStarting, EventProbeWaitExhaustedWithData, StatusCompleted},
	{StatusStarting, EventProbeWaitExhaustedNoData, StatusFailed},
	{StatusStarting, EventStop, StatusCancelled},

	{StatusRecording, EventSubprocessExitMoreBudget, StatusRetrying},
	{StatusRecording, EventSubprocessExitDoneWithData, StatusCompleted},
	{StatusRecording, EventSubprocessExitDoneNoData, StatusFailed},
	{StatusRecording, EventStop, StatusCancelled},

	{StatusRetrying, EventProbeLive, StatusRecording},
	{StatusRetrying, EventProbeIgnored, StatusRecording},
	{StatusRetrying, EventProbeNotLive, StatusRetrying},
	{StatusRetrying, EventProbeWaitExhaustedWithData, StatusCompleted},
	{StatusRetrying, EventProbeWaitExhaustedNoData, StatusFailed},
	{StatusRetrying, EventStop, StatusCancelled},
}

// TransitionFor looks up the destination status for (from, event). ok is
// false if no such transition is tabulated.
func TransitionFor(from Status, event Event) (Status, bool) {
	for _, row := range transitionTable {
		if row.from == from && row.event == event {
			return row.to, true
		}
	}
	return from, false
}

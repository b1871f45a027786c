// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the process-wide Prometheus collectors for every
// subsystem. Collectors are registered at package init via promauto so that
// importing a subsystem package is enough to expose its metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TranscoderBytesOutput tracks total bytes written by attempt files.
	TranscoderBytesOutput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_transcoder_bytes_output_total",
		Help: "Total bytes produced by the transcoder driver",
	}, []string{"recording_id"})

	// TranscoderExits tracks subprocess exit outcomes.
	TranscoderExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_transcoder_exits_total",
		Help: "Transcoder subprocess exits by outcome",
	}, []string{"outcome"}) // "clean", "nonzero", "killed", "spawn_error"

	// TranscoderAttemptDuration tracks wall-clock duration of one attempt run.
	TranscoderAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recorderd_transcoder_attempt_duration_seconds",
		Help:    "Duration of a single transcoder attempt",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34min
	}, []string{})

	// StitchOutcomes tracks stitch success/failure.
	StitchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_stitch_outcomes_total",
		Help: "Segment stitch outcomes",
	}, []string{"outcome"}) // "ok", "undersized", "exec_error"

	// ProberOutcomes tracks DESCRIBE probe classifications.
	ProberOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_prober_outcomes_total",
		Help: "RTSP liveness probe outcomes",
	}, []string{"outcome"}) // "live", "not_found", "invalid", "timeout", "error"

	// ProberPoolEndpoints tracks the current count of open pooled endpoints.
	ProberPoolEndpoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorderd_prober_pool_endpoints",
		Help: "Current number of open endpoint connections in the prober pool",
	})

	// ProberPoolEvictions tracks endpoint eviction reasons.
	ProberPoolEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_prober_pool_evictions_total",
		Help: "Endpoint pool evictions by reason",
	}, []string{"reason"}) // "idle_ttl", "lru", "transport_error"

	// SupervisorTransitions tracks recording status transitions.
	SupervisorTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_supervisor_transitions_total",
		Help: "Recording supervisor status transitions",
	}, []string{"from", "to"})

	// SupervisorRetries tracks retry attempts consumed per recording.
	SupervisorRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorderd_supervisor_retries_total",
		Help: "Total transcoder retry attempts across all recordings",
	})

	// CustodianSweeps tracks custodian sweep runs.
	CustodianSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorderd_custodian_sweeps_total",
		Help: "Total storage custodian sweep runs",
	})

	// CustodianDeletions tracks files deleted by the custodian.
	CustodianDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_custodian_deletions_total",
		Help: "Files deleted by the storage custodian",
	}, []string{"reason"}) // "retention", "quota"

	// PersistenceWrites tracks durable document writes.
	PersistenceWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_persistence_writes_total",
		Help: "Durable persistence document writes",
	}, []string{"document", "outcome"})

	// ProcTerminate tracks soft-stop signal delivery outcomes.
	ProcTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_proc_terminate_total",
		Help: "Process group termination signal outcomes",
	}, []string{"signal", "result"})

	// ProcWait tracks the outcome of waiting on a terminated process group.
	ProcWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_proc_wait_total",
		Help: "Process group wait outcomes after a termination signal",
	}, []string{"result"})
)

// IncProcTerminate records the outcome of sending a termination signal to a
// process group. signal is e.g. "SIGTERM"/"SIGKILL"; result is e.g.
// "sent"/"esrch"/"error".
func IncProcTerminate(signal, result string) {
	ProcTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait records the outcome of draining a process group's wait
// channel after a termination signal was sent.
func IncProcWait(result string) {
	ProcWait.WithLabelValues(result).Inc()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package prober implements the RTSP liveness prober: a connection-pooled,
// CSeq-demultiplexed client for the DESCRIBE method.
package prober

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	netutil "github.com/streamkeep/streamkeep/internal/platform/net"
	"github.com/streamkeep/streamkeep/internal/telemetry"
)

var tracer = telemetry.Tracer("streamkeep/prober")

// Outcome classifies a probe result.
type Outcome string

const (
	OutcomeLive     Outcome = "live"
	OutcomeNotFound Outcome = "not_found"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeError    Outcome = "error"
)

// Prober answers liveness questions about RTSP URLs.
type Prober interface {
	Probe(ctx context.Context, rtspURL string, timeout time.Duration) (Outcome, error)
	Close()
}

// Pooled is the default Prober: one socket per (host, port) endpoint, held
// in a bounded LRU with an idle TTL, with requests and responses
// demultiplexed by RTSP CSeq.
type Pooled struct {
	pool *endpointPool
}

// Config tunes the pooled prober.
type Config struct {
	MaxEndpoints     int
	IdleTTL          time.Duration
	HeartbeatEnabled bool
	HeartbeatEvery   time.Duration
}

// DefaultConfig returns the documented defaults: 128 endpoints, 10 minute
// idle TTL, heartbeat off.
func DefaultConfig() Config {
	return Config{
		MaxEndpoints:   128,
		IdleTTL:        10 * time.Minute,
		HeartbeatEvery: 4 * time.Minute,
	}
}

// NewPooled constructs a Pooled prober.
func NewPooled(cfg Config) *Pooled {
	return &Pooled{pool: newEndpointPool(cfg)}
}

// Probe issues a DESCRIBE against rtspURL and classifies the response.
func (p *Pooled) Probe(ctx context.Context, rtspURL string, timeout time.Duration) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "prober.probe")
	defer span.End()

	host, port, err := netutil.NormalizeAuthority(rtspURL, "rtsp")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return OutcomeInvalid, fmt.Errorf("prober: parse authority: %w", err)
	}
	if port == "" {
		port = "554"
	}

	ep := p.pool.get(host, port)
	outcome, err := ep.describe(ctx, rtspURL, timeout)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

// Close tears down every pooled endpoint connection.
func (p *Pooled) Close() {
	p.pool.closeAll()
}

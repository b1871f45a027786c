// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package persistence implements the read-through cache and atomic durable
// writer shared by the recordings, streams, and settings documents.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/metrics"
	"github.com/streamkeep/streamkeep/internal/telemetry"
)

var tracer = telemetry.Tracer("streamkeep/persistence")

// Store is a file-backed, read-through cache for one JSON document of type
// T. It is safe for concurrent use: reads may proceed concurrently, writes
// are serialized.
type Store[T any] struct {
	path string
	name string // metrics/log label, e.g. "recordings"
	zero func() T

	mu     sync.RWMutex
	loaded bool
	cache  T
}

// New creates a Store bound to path. zero must return the default value to
// use when the file is missing or malformed.
func New[T any](path, name string, zero func() T) *Store[T] {
	return &Store[T]{path: path, name: name, zero: zero}
}

// Load reads the document from disk into the cache, treating a missing or
// malformed file as the zero value. It is idempotent; callers may call it
// repeatedly to force a re-read.
func (s *Store[T]) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.WithComponent("persistence")

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.cache = s.zero()
			s.loaded = true
			return nil
		}
		logger.Warn().Err(err).Str("document", s.name).Str("path", s.path).Msg("failed to read persisted document, using default")
		s.cache = s.zero()
		s.loaded = true
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Warn().Err(err).Str("document", s.name).Str("path", s.path).Msg("persisted document is malformed, using default")
		s.cache = s.zero()
		s.loaded = true
		return nil
	}

	s.cache = v
	s.loaded = true
	return nil
}

// Snapshot returns a JSON round-tripped defensive copy of the cached
// document. Load is called implicitly on first use.
func (s *Store[T]) Snapshot() T {
	s.ensureLoadedSafe()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.cache)
}

func (s *Store[T]) ensureLoadedSafe() {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		_ = s.Load()
	}
}

// MutateCache applies fn to the in-memory cache without touching disk. Use
// this for hot-path updates (e.g. progress counters) that can tolerate being
// lost on crash; a subsequent Mutate call flushes the accumulated state.
func (s *Store[T]) MutateCache(fn func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.cache = s.zero()
		s.loaded = true
	}
	fn(&s.cache)
}

// Mutate applies fn to the cache and durably persists the result via an
// atomic, fsync'd rename. On write failure the in-memory cache still
// reflects fn's mutation; the caller is responsible for deciding whether to
// retry.
func (s *Store[T]) Mutate(ctx context.Context, fn func(*T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.cache = s.zero()
		s.loaded = true
	}

	if err := fn(&s.cache); err != nil {
		return err
	}
	return s.writeLocked(ctx)
}

// Flush durably persists the current cache as-is, without mutation.
func (s *Store[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ctx)
}

func (s *Store[T]) writeLocked(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "persistence.write")
	defer span.End()
	span.SetAttributes(attribute.String("document", s.name))

	logger := log.WithContext(ctx, log.WithComponent("persistence"))

	fail := func(outcome string, err error) error {
		metrics.PersistenceWrites.WithLabelValues(s.name, outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return fail("marshal_error", fmt.Errorf("persistence: marshal %s: %w", s.name, err))
	}

	pending, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fail("open_error", fmt.Errorf("persistence: create pending file for %s: %w", s.name, err))
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			logger.Debug().Err(cerr).Str("document", s.name).Msg("cleanup pending persistence file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fail("write_error", fmt.Errorf("persistence: write %s: %w", s.name, err))
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fail("replace_error", fmt.Errorf("persistence: atomically replace %s: %w", s.name, err))
	}

	metrics.PersistenceWrites.WithLabelValues(s.name, "ok").Inc()
	return nil
}

func deepCopy[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

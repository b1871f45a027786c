// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storage implements the Storage Custodian: the periodic sweep
// that enforces age-based retention and a soft disk-usage cap over
// completed recordings.
package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/metrics"
	"github.com/streamkeep/streamkeep/internal/persistence"
	"github.com/streamkeep/streamkeep/internal/settings"
	"github.com/streamkeep/streamkeep/internal/telemetry"
)

var tracer = telemetry.Tracer("streamkeep/storage")

const bytesPerGB = 1 << 30

// Result reports the outcome of one sweep.
type Result struct {
	DeletedOld       int
	DeletedForSpace  int
	CurrentStorageGB float64
}

// Custodian runs the periodic retention and quota purge over the
// recordings document. It is armed on first use: the first call to Run
// starts the periodic cadence; Sweep can also be called directly (e.g.
// from the command surface) at any time, with concurrent triggers
// collapsed into whichever sweep is already in flight.
type Custodian struct {
	store    *persistence.Store[persistence.RecordingsDocument]
	settings func() settings.Settings
	clock    Clock

	sf       singleflight.Group
	triggers chan struct{}
}

// New constructs a Custodian bound to store and settings. clock may be
// nil, in which case RealClock is used.
func New(store *persistence.Store[persistence.RecordingsDocument], settingsFn func() settings.Settings, clock Clock) *Custodian {
	if clock == nil {
		clock = RealClock{}
	}
	return &Custodian{
		store:    store,
		settings: settingsFn,
		clock:    clock,
		triggers: make(chan struct{}, 1),
	}
}

// Run drives the Custodian's cadence until ctx is cancelled: an initial
// sweep 5s after arming, then every 3h, plus an extra sweep 1s after any
// successful recording completion signaled via TriggerSweep.
func (c *Custodian) Run(ctx context.Context) {
	logger := log.WithComponent("storage")

	initial := c.clock.NewTimer(5 * time.Second)
	defer initial.Stop()

	select {
	case <-initial.C():
		c.sweepLogged(ctx, logger)
	case <-ctx.Done():
		return
	}

	periodic := c.clock.NewTimer(3 * time.Hour)
	defer periodic.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-periodic.C():
			c.sweepLogged(ctx, logger)
			periodic = c.clock.NewTimer(3 * time.Hour)
		case <-c.triggers:
			after := c.clock.NewTimer(1 * time.Second)
			select {
			case <-after.C():
				c.sweepLogged(ctx, logger)
			case <-ctx.Done():
				after.Stop()
				return
			}
		}
	}
}

func (c *Custodian) sweepLogged(ctx context.Context, logger zerolog.Logger) {
	res, err := c.Sweep(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("storage sweep failed")
		return
	}
	logger.Info().
		Int("deleted_old", res.DeletedOld).
		Int("deleted_for_space", res.DeletedForSpace).
		Float64("current_storage_gb", res.CurrentStorageGB).
		Msg("storage sweep completed")
}

// TriggerSweep requests an extra sweep 1s from now. It is safe to wire
// directly as a Recording Supervisor's OnSweepTrigger hook. Non-blocking:
// a trigger already pending is sufficient, so a full channel is not an
// error.
func (c *Custodian) TriggerSweep() {
	select {
	case c.triggers <- struct{}{}:
	default:
	}
}

// Sweep runs one retention-then-quota purge pass immediately. Concurrent
// calls (from Run's cadence and an on-demand command-surface trigger)
// collapse into a single in-flight pass via singleflight; every caller
// observes that pass's result.
func (c *Custodian) Sweep(ctx context.Context) (Result, error) {
	v, err, _ := c.sf.Do("sweep", func() (interface{}, error) {
		return c.sweep(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (c *Custodian) sweep(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "storage.sweep")
	defer span.End()

	metrics.CustodianSweeps.Inc()
	cfg := c.settings()
	now := c.clock.Now()

	var result Result

	err := c.store.Mutate(ctx, func(doc *persistence.RecordingsDocument) error {
		if cfg.AutoDeleteAfterDays > 0 {
			result.DeletedOld = purgeByAge(doc, now, cfg.AutoDeleteAfterDays)
		}
		if cfg.MaxStorageGB > 0 {
			result.DeletedForSpace = purgeByQuota(doc, cfg.MaxStorageGB)
		}
		result.CurrentStorageGB = totalSuccessfulBytes(doc) / bytesPerGB
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("storage: sweep: %w", err)
	}

	span.SetAttributes(
		attribute.Int("deleted_old", result.DeletedOld),
		attribute.Int("deleted_for_space", result.DeletedForSpace),
		attribute.Float64("current_storage_gb", result.CurrentStorageGB),
	)
	return result, nil
}

// purgeByAge deletes the file and row of every successful recording whose
// completedAt is older than autoDeleteAfterDays. A recording whose file
// cannot be deleted keeps its row.
func purgeByAge(doc *persistence.RecordingsDocument, now time.Time, autoDeleteAfterDays int) int {
	cutoff := now.Add(-time.Duration(autoDeleteAfterDays) * 24 * time.Hour)

	kept := make([]persistence.Recording, 0, len(doc.Recordings))
	deleted := 0
	for _, rec := range doc.Recordings {
		if !isEligible(rec) || rec.CompletedAt.After(cutoff) {
			kept = append(kept, rec)
			continue
		}
		if !deleteOutputFile(rec.OutputPath) {
			kept = append(kept, rec)
			continue
		}
		deleted++
		metrics.CustodianDeletions.WithLabelValues("retention").Inc()
	}
	doc.Recordings = kept
	return deleted
}

// purgeByQuota deletes the oldest-by-completedAt successful recordings,
// file and row, until total on-disk usage is under maxStorageGB.
func purgeByQuota(doc *persistence.RecordingsDocument, maxStorageGB float64) int {
	capBytes := maxStorageGB * bytesPerGB

	type sized struct {
		rec  persistence.Recording
		size float64
	}
	var successful []sized
	var total float64
	for _, rec := range doc.Recordings {
		if !isEligible(rec) {
			continue
		}
		size := fileSize(rec.OutputPath)
		successful = append(successful, sized{rec, size})
		total += size
	}
	if total <= capBytes {
		return 0
	}

	sort.Slice(successful, func(i, j int) bool {
		return successful[i].rec.CompletedAt.Before(*successful[j].rec.CompletedAt)
	})

	toDelete := make(map[string]struct{})
	for _, s := range successful {
		if total <= capBytes {
			break
		}
		if !deleteOutputFile(s.rec.OutputPath) {
			continue
		}
		toDelete[s.rec.ID] = struct{}{}
		total -= s.size
	}

	kept := make([]persistence.Recording, 0, len(doc.Recordings))
	for _, rec := range doc.Recordings {
		if _, marked := toDelete[rec.ID]; marked {
			metrics.CustodianDeletions.WithLabelValues("quota").Inc()
			continue
		}
		kept = append(kept, rec)
	}
	doc.Recordings = kept
	return len(toDelete)
}

func totalSuccessfulBytes(doc *persistence.RecordingsDocument) float64 {
	var total float64
	for _, rec := range doc.Recordings {
		if isEligible(rec) {
			total += fileSize(rec.OutputPath)
		}
	}
	return total
}

func isEligible(rec persistence.Recording) bool {
	return rec.Success != nil && *rec.Success && rec.CompletedAt != nil
}

func fileSize(path string) float64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.Size())
}

// deleteOutputFile removes path if set, reporting whether the row is now
// safe to drop. A recording with no output path never had a file to
// orphan.
func deleteOutputFile(path string) bool {
	if path == "" {
		return true
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false
	}
	return true
}

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

// Bootstrap reconciles the persisted recordings document with the
// in-memory Registry at process startup: every recording with success
// still unset is either resumed via Start (time budget remains; a stored
// start time still in the future is waited out by the run loop, in
// StatusStarting) or finalized immediately as a missed start.
// It must run once, before the Storage Custodian's first sweep.
func Bootstrap(ctx context.Context, store *persistence.Store[persistence.RecordingsDocument], deps Deps, registry *Registry) error {
	logger := log.WithComponent("recording")
	now := time.Now().UTC()

	doc := store.Snapshot()
	for _, rec := range doc.Recordings {
		if rec.Success != nil {
			continue
		}

		elapsed := now.Sub(rec.StartTime)
		remaining := time.Duration(rec.Duration)*time.Second - elapsed
		if remaining <= 0 {
			finalizeMissedStart(ctx, store, rec)
			logger.Warn().Str("recording_id", rec.ID).Msg("recovered recording missed its scheduled start")
			continue
		}

		sup := NewSupervisor(rec, deps)
		if err := registry.Register(sup); err != nil {
			logger.Error().Err(err).Str("recording_id", rec.ID).Msg("failed to register recovered recording")
			continue
		}
		if err := sup.Start(ctx); err != nil {
			logger.Error().Err(err).Str("recording_id", rec.ID).Msg("failed to resume recovered recording")
		}
	}
	return nil
}

func finalizeMissedStart(ctx context.Context, store *persistence.Store[persistence.RecordingsDocument], rec persistence.Recording) {
	failed := false
	now := time.Now().UTC()
	_ = store.Mutate(ctx, func(doc *persistence.RecordingsDocument) error {
		for i := range doc.Recordings {
			if doc.Recordings[i].ID != rec.ID {
				continue
			}
			doc.Recordings[i].Success = &failed
			doc.Recordings[i].ErrorMessage = "missed scheduled start"
			doc.Recordings[i].UpdatedAt = now
			return nil
		}
		return nil
	})
}

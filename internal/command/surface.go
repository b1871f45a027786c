// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package command

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/streamkeep/streamkeep/internal/persistence"
	"github.com/streamkeep/streamkeep/internal/prober"
	"github.com/streamkeep/streamkeep/internal/recording"
	"github.com/streamkeep/streamkeep/internal/settings"
	"github.com/streamkeep/streamkeep/internal/storage"
	"github.com/streamkeep/streamkeep/internal/transcoder"
	"github.com/streamkeep/streamkeep/internal/validate"
)

// RecordingView is the Command Surface's public projection of one
// recording: persisted fields plus the supervisor's derived snapshot.
type RecordingView struct {
	ID           string
	Name         string
	RTSPURL      string
	StartTime    time.Time
	DurationSec  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Status       recording.Status
	Progress     transcoder.Progress
	Success      *bool
	OutputPath   string
	CompletedAt  *time.Time
	ErrorMessage string
	IgnoreProbe  bool
}

// RecordingStats is the per-status count breakdown returned by get
// recording stats.
type RecordingStats struct {
	Total    int
	ByStatus map[recording.Status]int
}

// StorageStats is the usage summary returned by get storage stats.
type StorageStats struct {
	UsedGB         float64
	MaxGB          float64
	Percentage     float64
	AutoDeleteDays int
}

// CreateRecordingInput is the input to create recording.
type CreateRecordingInput struct {
	Name        string
	RTSPURL     string
	StartTime   time.Time
	DurationSec int
}

// UpdateRecordingInput is the input to update recording; zero fields are
// left unchanged.
type UpdateRecordingInput struct {
	Name        string
	RTSPURL     string
	StartTime   time.Time
	DurationSec int
}

// SavedStreamInput is the input to create/update saved stream.
type SavedStreamInput struct {
	Name        string
	RTSPURL     string
	Description string
	Favorite    bool
}

// Surface is the transport-agnostic entry point for every operation the
// system exposes. internal/httpapi binds one transport (HTTP) over it;
// other transports (CLI, gRPC) could bind their own without touching this
// package.
type Surface struct {
	registry    *recording.Registry
	recordings  *persistence.Store[persistence.RecordingsDocument]
	streams     *persistence.Store[persistence.StreamsDocument]
	settingsDoc *persistence.Store[settings.Settings]
	prober      prober.Prober
	custodian   *storage.Custodian
	newRunner   func(binPath string, killTimeout time.Duration) *transcoder.Runner
	stitcher    *transcoder.Stitcher
	logsDir     string
}

// Deps bundles the collaborators a Surface needs.
type Deps struct {
	Registry    *recording.Registry
	Recordings  *persistence.Store[persistence.RecordingsDocument]
	Streams     *persistence.Store[persistence.StreamsDocument]
	SettingsDoc *persistence.Store[settings.Settings]
	Prober      prober.Prober
	Custodian   *storage.Custodian
	NewRunner   func(binPath string, killTimeout time.Duration) *transcoder.Runner
	Stitcher    *transcoder.Stitcher
	LogsDir     string
}

// New constructs a Surface.
func New(d Deps) *Surface {
	return &Surface{
		registry:    d.Registry,
		recordings:  d.Recordings,
		streams:     d.Streams,
		settingsDoc: d.SettingsDoc,
		prober:      d.Prober,
		custodian:   d.Custodian,
		newRunner:   d.NewRunner,
		stitcher:    d.Stitcher,
		logsDir:     d.LogsDir,
	}
}

func (s *Surface) currentSettings() settings.Settings {
	return settings.Merge(settings.Defaults(), s.settingsDoc.Snapshot())
}

func viewFromSupervisor(rec persistence.Recording, sup *recording.Supervisor) RecordingView {
	v := RecordingView{
		ID:           rec.ID,
		Name:         rec.Name,
		RTSPURL:      rec.RTSPURL,
		StartTime:    rec.StartTime,
		DurationSec:  rec.Duration,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		Success:      rec.Success,
		OutputPath:   rec.OutputPath,
		CompletedAt:  rec.CompletedAt,
		ErrorMessage: rec.ErrorMessage,
	}
	if sup != nil {
		snap := sup.Snapshot()
		v.Status = snap.Status
		v.Progress = snap.Progress
		v.IgnoreProbe = snap.IgnoreProbe
		if snap.Name != "" {
			v.Name = snap.Name
		}
	} else if rec.Success != nil {
		if *rec.Success {
			v.Status = recording.StatusCompleted
		} else {
			v.Status = recording.StatusFailed
		}
	} else {
		// No live Supervisor and no terminal outcome yet: either this
		// row predates Bootstrap running, or it was orphaned from the
		// registry. Report it as scheduled rather than a zero Status.
		v.Status = recording.StatusScheduled
	}
	return v
}

// ListRecordings returns every persisted recording with its derived
// status snapshot.
func (s *Surface) ListRecordings() []RecordingView {
	doc := s.recordings.Snapshot()
	out := make([]RecordingView, 0, len(doc.Recordings))
	for _, rec := range doc.Recordings {
		out = append(out, viewFromSupervisor(rec, s.registry.Lookup(rec.ID)))
	}
	return out
}

// GetRecording returns one recording or NotFound.
func (s *Surface) GetRecording(id string) (RecordingView, error) {
	doc := s.recordings.Snapshot()
	for _, rec := range doc.Recordings {
		if rec.ID == id {
			return viewFromSupervisor(rec, s.registry.Lookup(id)), nil
		}
	}
	return RecordingView{}, NotFound{Kind: "recording", ID: id}
}

// CreateRecording validates the input, persists a new scheduled
// recording, and instantiates its Supervisor.
func (s *Surface) CreateRecording(ctx context.Context, in CreateRecordingInput) (RecordingView, error) {
	v := validate.New()
	v.NotEmpty("name", in.Name)
	v.URL("rtspUrl", in.RTSPURL, []string{"rtsp"})
	v.Positive("duration", in.DurationSec)
	if in.StartTime.IsZero() {
		v.AddError("startTime", "must be set", in.StartTime)
	}
	if err := v.Err(); err != nil {
		return RecordingView{}, err
	}

	now := time.Now().UTC()
	rec := persistence.Recording{
		ID:        uuid.NewString(),
		Name:      in.Name,
		RTSPURL:   in.RTSPURL,
		Duration:  in.DurationSec,
		StartTime: in.StartTime,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.recordings.Mutate(ctx, func(doc *persistence.RecordingsDocument) error {
		doc.Recordings = append(doc.Recordings, rec)
		return nil
	})
	if err != nil {
		return RecordingView{}, PersistenceIOError{Document: "recordings", Err: err}
	}

	sup := recording.NewSupervisor(rec, recording.Deps{
		Prober:         s.prober,
		Settings:       s.currentSettings,
		Store:          s.recordings,
		Stitcher:       s.stitcher,
		NewRunner:      s.newRunner,
		OnSweepTrigger: s.onSweepTrigger,
		LogsDir:        s.logsDir,
	})
	if err := s.registry.Register(sup); err != nil {
		return RecordingView{}, err
	}
	sup.Arm()

	return viewFromSupervisor(rec, sup), nil
}

func (s *Surface) onSweepTrigger() {
	if s.custodian != nil {
		s.custodian.TriggerSweep()
	}
}

// UpdateRecording mutates a scheduled recording's fields, or returns
// Conflict if it has already started.
func (s *Surface) UpdateRecording(ctx context.Context, id string, in UpdateRecordingInput) (RecordingView, error) {
	sup := s.registry.Lookup(id)
	if sup == nil {
		return RecordingView{}, NotFound{Kind: "recording", ID: id}
	}
	if sup.Status() != recording.StatusScheduled {
		return RecordingView{}, Conflict{Kind: "recording", ID: id, Reason: "cannot update a recording that has already started"}
	}
	if err := sup.Update(in.Name, in.RTSPURL, in.StartTime, in.DurationSec); err != nil {
		return RecordingView{}, Conflict{Kind: "recording", ID: id, Reason: err.Error()}
	}

	now := time.Now().UTC()
	err := s.recordings.Mutate(ctx, func(doc *persistence.RecordingsDocument) error {
		for i := range doc.Recordings {
			if doc.Recordings[i].ID != id {
				continue
			}
			if in.Name != "" {
				doc.Recordings[i].Name = in.Name
			}
			if in.RTSPURL != "" {
				doc.Recordings[i].RTSPURL = in.RTSPURL
			}
			if !in.StartTime.IsZero() {
				doc.Recordings[i].StartTime = in.StartTime
			}
			if in.DurationSec > 0 {
				doc.Recordings[i].Duration = in.DurationSec
			}
			doc.Recordings[i].UpdatedAt = now
			return nil
		}
		return NotFound{Kind: "recording", ID: id}
	})
	if err != nil {
		return RecordingView{}, err
	}
	return s.GetRecording(id)
}

// DeleteRecording cancels any active supervisor, removes the registry
// entry, deletes any output file, and removes the persisted row.
func (s *Surface) DeleteRecording(ctx context.Context, id string) error {
	if sup := s.registry.Lookup(id); sup != nil {
		sup.Stop(ctx)
		s.registry.Remove(id)
	}

	var outputPath string
	err := s.recordings.Mutate(ctx, func(doc *persistence.RecordingsDocument) error {
		kept := make([]persistence.Recording, 0, len(doc.Recordings))
		found := false
		for _, rec := range doc.Recordings {
			if rec.ID == id {
				found = true
				outputPath = rec.OutputPath
				continue
			}
			kept = append(kept, rec)
		}
		if !found {
			return NotFound{Kind: "recording", ID: id}
		}
		doc.Recordings = kept
		return nil
	})
	if err != nil {
		return err
	}
	if outputPath != "" {
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return StorageIOError{Path: outputPath, Op: "delete", Err: rmErr}
		}
	}
	return nil
}

// StartRecording transitions a scheduled recording into starting,
// pre-empting its armed countdown. A recording that has already left
// scheduled (by its own countdown firing, or by a prior start) reports
// Conflict rather than silently succeeding a second time.
func (s *Surface) StartRecording(ctx context.Context, id string) error {
	sup := s.registry.Lookup(id)
	if sup == nil {
		return NotFound{Kind: "recording", ID: id}
	}
	if sup.Status() != recording.StatusScheduled {
		return Conflict{Kind: "recording", ID: id, Reason: "recording has already started"}
	}
	if err := sup.Start(ctx); err != nil {
		return Conflict{Kind: "recording", ID: id, Reason: err.Error()}
	}
	return nil
}

// StopRecording cancels a running or retrying recording.
func (s *Surface) StopRecording(ctx context.Context, id string) error {
	sup := s.registry.Lookup(id)
	if sup == nil {
		return NotFound{Kind: "recording", ID: id}
	}
	if sup.Status().IsTerminal() {
		return Conflict{Kind: "recording", ID: id, Reason: "recording already reached a terminal status"}
	}
	sup.Stop(ctx)
	return nil
}

// SetProbeMode toggles whether a recording's supervisor skips liveness
// probing.
func (s *Surface) SetProbeMode(id string, ignore bool) error {
	sup := s.registry.Lookup(id)
	if sup == nil {
		return NotFound{Kind: "recording", ID: id}
	}
	sup.SetIgnoreProbe(ignore)
	return nil
}

// RecordingStats returns per-status counts across every persisted
// recording; one with a registered supervisor is counted under that
// supervisor's live status.
func (s *Surface) RecordingStats() RecordingStats {
	stats := RecordingStats{ByStatus: make(map[recording.Status]int)}
	for _, rec := range s.recordings.Snapshot().Recordings {
		sup := s.registry.Lookup(rec.ID)
		v := viewFromSupervisor(rec, sup)
		stats.ByStatus[v.Status]++
		stats.Total++
	}
	return stats
}

// ListSavedStreams returns every saved stream.
func (s *Surface) ListSavedStreams() []persistence.SavedStream {
	return s.streams.Snapshot().Streams
}

// CreateSavedStream validates and persists a new saved stream.
func (s *Surface) CreateSavedStream(ctx context.Context, in SavedStreamInput) (persistence.SavedStream, error) {
	v := validate.New()
	v.NotEmpty("name", in.Name)
	v.URL("rtspUrl", in.RTSPURL, []string{"rtsp"})
	if err := v.Err(); err != nil {
		return persistence.SavedStream{}, err
	}

	now := time.Now().UTC()
	stream := persistence.SavedStream{
		ID:          uuid.NewString(),
		Name:        in.Name,
		RTSPURL:     in.RTSPURL,
		Description: in.Description,
		Favorite:    in.Favorite,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.streams.Mutate(ctx, func(doc *persistence.StreamsDocument) error {
		doc.Streams = append(doc.Streams, stream)
		return nil
	})
	if err != nil {
		return persistence.SavedStream{}, PersistenceIOError{Document: "streams", Err: err}
	}
	return stream, nil
}

// UpdateSavedStream mutates an existing saved stream's fields.
func (s *Surface) UpdateSavedStream(ctx context.Context, id string, in SavedStreamInput) (persistence.SavedStream, error) {
	var updated persistence.SavedStream
	now := time.Now().UTC()
	err := s.streams.Mutate(ctx, func(doc *persistence.StreamsDocument) error {
		for i := range doc.Streams {
			if doc.Streams[i].ID != id {
				continue
			}
			if in.Name != "" {
				doc.Streams[i].Name = in.Name
			}
			if in.RTSPURL != "" {
				doc.Streams[i].RTSPURL = in.RTSPURL
			}
			doc.Streams[i].Description = in.Description
			doc.Streams[i].Favorite = in.Favorite
			doc.Streams[i].UpdatedAt = now
			updated = doc.Streams[i]
			return nil
		}
		return NotFound{Kind: "saved stream", ID: id}
	})
	if err != nil {
		return persistence.SavedStream{}, err
	}
	return updated, nil
}

// DeleteSavedStream removes a saved stream.
func (s *Surface) DeleteSavedStream(ctx context.Context, id string) error {
	return s.streams.Mutate(ctx, func(doc *persistence.StreamsDocument) error {
		kept := make([]persistence.SavedStream, 0, len(doc.Streams))
		found := false
		for _, stream := range doc.Streams {
			if stream.ID == id {
				found = true
				continue
			}
			kept = append(kept, stream)
		}
		if !found {
			return NotFound{Kind: "saved stream", ID: id}
		}
		doc.Streams = kept
		return nil
	})
}

// ProbeStream runs a single liveness probe against an arbitrary RTSP URL,
// independent of any saved stream or recording.
func (s *Surface) ProbeStream(ctx context.Context, rtspURL string) (prober.Outcome, error) {
	if s.prober == nil {
		return prober.OutcomeError, nil
	}
	return s.prober.Probe(ctx, rtspURL, 5*time.Second)
}

// StorageStats reports current usage against the configured cap.
func (s *Surface) StorageStats() StorageStats {
	cfg := s.currentSettings()
	var usedGB float64
	for _, rec := range s.recordings.Snapshot().Recordings {
		if rec.Success == nil || !*rec.Success || rec.OutputPath == "" {
			continue
		}
		if info, err := os.Stat(rec.OutputPath); err == nil {
			usedGB += float64(info.Size()) / (1 << 30)
		}
	}
	stats := StorageStats{UsedGB: usedGB, MaxGB: cfg.MaxStorageGB, AutoDeleteDays: cfg.AutoDeleteAfterDays}
	if cfg.MaxStorageGB > 0 {
		stats.Percentage = 100 * usedGB / cfg.MaxStorageGB
	}
	return stats
}

// RunStorageCleanup triggers an immediate Custodian sweep and returns its
// result.
func (s *Surface) RunStorageCleanup(ctx context.Context) (storage.Result, error) {
	if s.custodian == nil {
		return storage.Result{}, nil
	}
	res, err := s.custodian.Sweep(ctx)
	if err != nil {
		return storage.Result{}, StorageIOError{Op: "sweep", Err: err}
	}
	return res, nil
}

// GetSettings returns the current merged settings record.
func (s *Surface) GetSettings() settings.Settings {
	return s.currentSettings()
}

// UpdateSettings validates and persists a partial settings update.
func (s *Surface) UpdateSettings(ctx context.Context, partial settings.Settings) (settings.Settings, error) {
	merged := settings.Merge(s.currentSettings(), partial)
	if err := settings.Validate(merged); err != nil {
		return settings.Settings{}, err
	}
	err := s.settingsDoc.Mutate(ctx, func(cur *settings.Settings) error {
		*cur = merged
		return nil
	})
	if err != nil {
		return settings.Settings{}, PersistenceIOError{Document: "settings", Err: err}
	}
	return merged, nil
}

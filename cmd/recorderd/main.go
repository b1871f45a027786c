// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command recorderd is the composition root: it wires persistence, the
// liveness prober, the Recording Supervisor registry, the Storage
// Custodian, the Command Surface, and the example HTTP binding, then
// serves until signaled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamkeep/streamkeep/internal/command"
	"github.com/streamkeep/streamkeep/internal/httpapi"
	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/persistence"
	"github.com/streamkeep/streamkeep/internal/prober"
	"github.com/streamkeep/streamkeep/internal/recording"
	"github.com/streamkeep/streamkeep/internal/settings"
	"github.com/streamkeep/streamkeep/internal/storage"
	"github.com/streamkeep/streamkeep/internal/telemetry"
	"github.com/streamkeep/streamkeep/internal/transcoder"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	log.Configure(log.Config{Level: settings.LogLevelFromEnvironment(), Service: "recorderd"})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		ServiceName: "recorderd",
		Endpoint:    settings.OTLPEndpointFromEnvironment(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	paths := settings.PathsFromEnvironment()
	recordingsStore := persistence.New(paths.RecordingsPath, "recordings", persistence.ZeroRecordingsDocument)
	streamsStore := persistence.New(paths.StreamsPath, "streams", persistence.ZeroStreamsDocument)
	settingsStore := persistence.New(paths.SettingsPath, "settings", settings.Defaults)

	if err := recordingsStore.Load(); err != nil {
		logger.Error().Err(err).Msg("failed to load recordings document")
	}
	if err := streamsStore.Load(); err != nil {
		logger.Error().Err(err).Msg("failed to load streams document")
	}
	if err := settingsStore.Load(); err != nil {
		logger.Error().Err(err).Msg("failed to load settings document")
	}

	proberEnv := settings.ProberFromEnvironment()
	proberCfg := prober.DefaultConfig()
	proberCfg.HeartbeatEnabled = proberEnv.HeartbeatEnabled
	if proberEnv.HeartbeatInterval > 0 {
		proberCfg.HeartbeatEvery = time.Duration(proberEnv.HeartbeatInterval) * time.Second
	}
	rtspProber := prober.NewPooled(proberCfg)
	defer rtspProber.Close()

	currentSettings := func() settings.Settings {
		return settings.Merge(settings.Defaults(), settings.FromEnvironment(settingsStore.Snapshot()))
	}

	custodian := storage.New(recordingsStore, currentSettings, nil)

	registry := recording.NewRegistry()
	supervisorDeps := recording.Deps{
		Prober:         rtspProber,
		Settings:       currentSettings,
		Store:          recordingsStore,
		Stitcher:       transcoder.NewStitcher(currentSettings().TranscoderPath),
		NewRunner:      transcoder.NewRunner,
		OnSweepTrigger: custodian.TriggerSweep,
		LogsDir:        paths.LogsDir,
	}

	if err := recording.Bootstrap(ctx, recordingsStore, supervisorDeps, registry); err != nil {
		logger.Error().Err(err).Msg("recording recovery failed")
	}

	go custodian.Run(ctx)

	surface := command.New(command.Deps{
		Registry:    registry,
		Recordings:  recordingsStore,
		Streams:     streamsStore,
		SettingsDoc: settingsStore,
		Prober:      rtspProber,
		Custodian:   custodian,
		NewRunner:   transcoder.NewRunner,
		Stitcher:    supervisorDeps.Stitcher,
		LogsDir:     paths.LogsDir,
	})

	srv := &http.Server{
		Addr:    *addr,
		Handler: httpapi.NewRouter(surface),
	}

	go func() {
		logger.Info().Str("addr", *addr).Msg("recorderd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}
	if err := registry.CloseAndWait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("registry drain error")
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpapi binds the Command Surface to HTTP using chi, wrapped in
// otelhttp for request tracing. It exists to demonstrate embeddability of
// the transport-agnostic core, not as a required deliverable.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/streamkeep/streamkeep/internal/command"
)

// NewRouter builds the chi router for every recording, saved-stream,
// storage, and settings endpoint, backed by surface.
func NewRouter(surface *command.Surface) http.Handler {
	h := &handlers{surface: surface}

	r := chi.NewRouter()

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/recordings", func(r chi.Router) {
		r.Get("/", h.listRecordings)
		r.Post("/", h.createRecording)
		r.Get("/stats", h.recordingStats)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getRecording)
			r.Patch("/", h.updateRecording)
			r.Delete("/", h.deleteRecording)
			r.Post("/start", h.startRecording)
			r.Post("/stop", h.stopRecording)
			r.Post("/probe-mode", h.setProbeMode)
		})
	})

	r.Route("/api/v1/streams", func(r chi.Router) {
		r.Get("/", h.listStreams)
		r.Post("/", h.createStream)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", h.updateStream)
			r.Delete("/", h.deleteStream)
		})
	})

	r.Post("/api/v1/probe", h.probeStream)

	r.Route("/api/v1/storage", func(r chi.Router) {
		r.Get("/stats", h.storageStats)
		r.Post("/cleanup", h.runStorageCleanup)
	})

	r.Route("/api/v1/settings", func(r chi.Router) {
		r.Get("/", h.getSettings)
		r.Patch("/", h.updateSettings)
	})

	return otelhttp.NewHandler(r, "streamkeep-recorderd", otelhttp.WithTracerProvider(otel.GetTracerProvider()))
}

type handlers struct {
	surface *command.Surface
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

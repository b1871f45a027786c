// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/streamkeep/streamkeep/internal/command"
	"github.com/streamkeep/streamkeep/internal/settings"
	"github.com/streamkeep/streamkeep/internal/validate"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a Command Surface error to an HTTP status and body. It
// is the sole place that translates the typed error taxonomy into
// transport semantics.
func writeError(w http.ResponseWriter, err error) {
	var notFound command.NotFound
	var conflict command.Conflict
	var valErr validate.ValidationError
	var storageErr command.StorageIOError
	var persistErr command.PersistenceIOError

	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "fields": valErr.Errors()})
	case errors.As(err, &storageErr), errors.As(err, &persistErr):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *handlers) listRecordings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.surface.ListRecordings())
}

func (h *handlers) getRecording(w http.ResponseWriter, r *http.Request) {
	view, err := h.surface.GetRecording(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type createRecordingRequest struct {
	Name        string    `json:"name"`
	RTSPURL     string    `json:"rtspUrl"`
	StartTime   time.Time `json:"startTime"`
	DurationSec int       `json:"duration"`
}

func (h *handlers) createRecording(w http.ResponseWriter, r *http.Request) {
	var req createRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	view, err := h.surface.CreateRecording(r.Context(), command.CreateRecordingInput{
		Name:        req.Name,
		RTSPURL:     req.RTSPURL,
		StartTime:   req.StartTime,
		DurationSec: req.DurationSec,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *handlers) updateRecording(w http.ResponseWriter, r *http.Request) {
	var req createRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	view, err := h.surface.UpdateRecording(r.Context(), chi.URLParam(r, "id"), command.UpdateRecordingInput{
		Name:        req.Name,
		RTSPURL:     req.RTSPURL,
		StartTime:   req.StartTime,
		DurationSec: req.DurationSec,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) deleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.DeleteRecording(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) startRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.StartRecording(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) stopRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.StopRecording(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) setProbeMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ignore bool `json:"ignore"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if err := h.surface.SetProbeMode(chi.URLParam(r, "id"), body.Ignore); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) recordingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.surface.RecordingStats())
}

func (h *handlers) listStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.surface.ListSavedStreams())
}

type savedStreamRequest struct {
	Name        string `json:"name"`
	RTSPURL     string `json:"rtspUrl"`
	Description string `json:"description"`
	Favorite    bool   `json:"favorite"`
}

func (h *handlers) createStream(w http.ResponseWriter, r *http.Request) {
	var req savedStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	stream, err := h.surface.CreateSavedStream(r.Context(), command.SavedStreamInput{
		Name:        req.Name,
		RTSPURL:     req.RTSPURL,
		Description: req.Description,
		Favorite:    req.Favorite,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stream)
}

func (h *handlers) updateStream(w http.ResponseWriter, r *http.Request) {
	var req savedStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	stream, err := h.surface.UpdateSavedStream(r.Context(), chi.URLParam(r, "id"), command.SavedStreamInput{
		Name:        req.Name,
		RTSPURL:     req.RTSPURL,
		Description: req.Description,
		Favorite:    req.Favorite,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stream)
}

func (h *handlers) deleteStream(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.DeleteSavedStream(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) probeStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RTSPURL string `json:"rtspUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	outcome, err := h.surface.ProbeStream(r.Context(), body.RTSPURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (h *handlers) storageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.surface.StorageStats())
}

func (h *handlers) runStorageCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.surface.RunStorageCleanup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.surface.GetSettings())
}

func (h *handlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	var partial settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	updated, err := h.surface.UpdateSettings(r.Context(), partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

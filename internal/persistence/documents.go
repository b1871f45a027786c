// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"encoding/json"
	"time"
)

// Recording is the persisted record of one recording job, per the data
// model's Recording attributes (identity, source, schedule, provenance,
// outcome).
type Recording struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RTSPURL  string `json:"rtspUrl"`
	Duration int    `json:"duration"` // seconds

	StartTime time.Time `json:"startTime"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Success is a tri-state: nil == unset (unfinished), otherwise the
	// terminal outcome.
	Success      *bool      `json:"success,omitempty"`
	OutputPath   string     `json:"outputPath,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`

	// Extra holds fields present on disk that this version of the struct
	// does not know about, so a load-mutate-save cycle (including the
	// deepCopy round-trip in store.go) does not silently drop them. It is
	// populated by UnmarshalJSON and replayed by MarshalJSON.
	Extra map[string]json.RawMessage `json:"-"`
}

var recordingKnownFields = map[string]struct{}{
	"id": {}, "name": {}, "rtspUrl": {}, "duration": {},
	"startTime": {}, "createdAt": {}, "updatedAt": {},
	"success": {}, "outputPath": {}, "completedAt": {}, "errorMessage": {},
}

// MarshalJSON folds Extra back into the encoded object alongside the known
// fields, without overwriting any of them.
func (r Recording) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(recordingAlias(r), r.Extra)
}

// UnmarshalJSON decodes the known fields normally and stashes everything
// else in Extra.
func (r *Recording) UnmarshalJSON(data []byte) error {
	var a recordingAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownFields(data, recordingKnownFields)
	if err != nil {
		return err
	}
	*r = Recording(a)
	r.Extra = extra
	return nil
}

// recordingAlias has the same fields as Recording, minus the Marshaler and
// Unmarshaler methods, so the alias can be encoded/decoded with the default
// struct-tag-driven behavior instead of recursing into Recording's own
// MarshalJSON/UnmarshalJSON.
type recordingAlias Recording

// SavedStream is a reusable name+URL+description record.
type SavedStream struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RTSPURL     string    `json:"rtspUrl"`
	Description string    `json:"description,omitempty"`
	Favorite    bool      `json:"favorite,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Extra map[string]json.RawMessage `json:"-"`
}

var savedStreamKnownFields = map[string]struct{}{
	"id": {}, "name": {}, "rtspUrl": {}, "description": {}, "favorite": {},
	"createdAt": {}, "updatedAt": {},
}

func (s SavedStream) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(savedStreamAlias(s), s.Extra)
}

func (s *SavedStream) UnmarshalJSON(data []byte) error {
	var a savedStreamAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownFields(data, savedStreamKnownFields)
	if err != nil {
		return err
	}
	*s = SavedStream(a)
	s.Extra = extra
	return nil
}

type savedStreamAlias SavedStream

// RecordingsDocument is the top-level container persisted to the
// recordings JSON file.
type RecordingsDocument struct {
	Recordings []Recording                `json:"recordings"`
	Extra      map[string]json.RawMessage `json:"-"`
}

var recordingsDocumentKnownFields = map[string]struct{}{"recordings": {}}

func (d RecordingsDocument) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(recordingsDocumentAlias(d), d.Extra)
}

func (d *RecordingsDocument) UnmarshalJSON(data []byte) error {
	var a recordingsDocumentAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownFields(data, recordingsDocumentKnownFields)
	if err != nil {
		return err
	}
	*d = RecordingsDocument(a)
	d.Extra = extra
	return nil
}

type recordingsDocumentAlias RecordingsDocument

// StreamsDocument is the top-level container persisted to the saved-streams
// JSON file.
type StreamsDocument struct {
	Streams []SavedStream              `json:"streams"`
	Extra   map[string]json.RawMessage `json:"-"`
}

var streamsDocumentKnownFields = map[string]struct{}{"streams": {}}

func (d StreamsDocument) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(streamsDocumentAlias(d), d.Extra)
}

func (d *StreamsDocument) UnmarshalJSON(data []byte) error {
	var a streamsDocumentAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownFields(data, streamsDocumentKnownFields)
	if err != nil {
		return err
	}
	*d = StreamsDocument(a)
	d.Extra = extra
	return nil
}

type streamsDocumentAlias StreamsDocument

// marshalWithExtra encodes v via the default struct-tag path, then merges
// extra's keys into the resulting object for any key not already present.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// unknownFields decodes data as a generic object and returns every key not
// present in known, or nil if there are none.
func unknownFields(data []byte, known map[string]struct{}) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

// ZeroRecordingsDocument returns the empty default recordings document.
func ZeroRecordingsDocument() RecordingsDocument { return RecordingsDocument{Recordings: nil} }

// ZeroStreamsDocument returns the empty default streams document.
func ZeroStreamsDocument() StreamsDocument { return StreamsDocument{Streams: nil} }

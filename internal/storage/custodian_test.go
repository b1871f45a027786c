// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamkeep/streamkeep/internal/persistence"
	"github.com/streamkeep/streamkeep/internal/settings"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func TestCustodian_RetentionPurgeDeletesPastCutoff(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "recordings.json")
	store := persistence.New(storePath, "recordings", persistence.ZeroRecordingsDocument)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ages := []int{1, 3, 8, 10, 30}

	err := store.Mutate(context.Background(), func(doc *persistence.RecordingsDocument) error {
		for i, ageDays := range ages {
			name := fileNameForAge(i)
			path := writeFile(t, dir, name, 10)
			doc.Recordings = append(doc.Recordings, persistence.Recording{
				ID:          name,
				Name:        name,
				Success:     boolPtr(true),
				OutputPath:  path,
				CompletedAt: timePtr(now.Add(-time.Duration(ageDays) * 24 * time.Hour)),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return nil
	})
	require.NoError(t, err)

	c := New(store, func() settings.Settings {
		return settings.Settings{AutoDeleteAfterDays: 7}
	}, fixedClock{now})

	result, err := c.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.DeletedOld)

	doc := store.Snapshot()
	require.Len(t, doc.Recordings, 2)
}

func fileNameForAge(i int) string {
	return [...]string{"one", "three", "eight", "ten", "thirty"}[i]
}

func TestCustodian_QuotaPurgeDeletesOldestUntilUnderCap(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "recordings.json")
	store := persistence.New(storePath, "recordings", persistence.ZeroRecordingsDocument)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sizesGB := []float64{0.6, 0.5, 0.5}

	err := store.Mutate(context.Background(), func(doc *persistence.RecordingsDocument) error {
		for i, gb := range sizesGB {
			name := []string{"first", "second", "third"}[i]
			path := writeFile(t, dir, name, int(gb*bytesPerGB))
			doc.Recordings = append(doc.Recordings, persistence.Recording{
				ID:          name,
				Name:        name,
				Success:     boolPtr(true),
				OutputPath:  path,
				CompletedAt: timePtr(now.Add(time.Duration(i) * time.Hour)),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return nil
	})
	require.NoError(t, err)

	c := New(store, func() settings.Settings {
		return settings.Settings{MaxStorageGB: 1}
	}, fixedClock{now})

	result, err := c.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.DeletedForSpace)
	require.InDelta(t, 1.0, result.CurrentStorageGB, 0.01)

	doc := store.Snapshot()
	require.Len(t, doc.Recordings, 2)
	for _, rec := range doc.Recordings {
		require.NotEqual(t, "first", rec.ID)
	}
}

func TestCustodian_SweepCollapsesConcurrentTriggers(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "recordings.json")
	store := persistence.New(storePath, "recordings", persistence.ZeroRecordingsDocument)

	c := New(store, func() settings.Settings {
		return settings.Settings{}
	}, fixedClock{time.Now()})

	var results [3]Result
	var errs [3]error
	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		go func(i int) {
			results[i], errs[i] = c.Sweep(context.Background())
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, errs[i])
	}
}

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }
func (f fixedClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

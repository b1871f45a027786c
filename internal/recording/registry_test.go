// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recording

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/streamkeep/streamkeep/internal/persistence"
)

func TestRegistry_RegisterLookupRemove(t *testing.T) {
	r := NewRegistry()
	sup := NewSupervisor(persistence.Recording{ID: "a", StartTime: time.Now().Add(time.Hour), Duration: 10}, Deps{
		Settings: testSettings(t, fakeFFmpeg(t, 0), 10),
	})

	require.NoError(t, r.Register(sup))
	require.Error(t, r.Register(sup))
	require.Same(t, sup, r.Lookup("a"))
	require.Len(t, r.List(), 1)

	r.Remove("a")
	require.Nil(t, r.Lookup("a"))
}

func TestRegistry_CloseAndWaitLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewRegistry()
	store := newTestStore(t)
	bin := fakeFFmpeg(t, 30)

	sup := NewSupervisor(persistence.Recording{ID: "leak-check", StartTime: time.Now().Add(time.Hour), Duration: 30}, Deps{
		Settings: testSettings(t, bin, 30),
		Store:    store,
	})
	require.NoError(t, r.Register(sup))
	require.NoError(t, sup.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.CloseAndWait(ctx))
}

func TestRegistry_CloseAndWaitStopsEverything(t *testing.T) {
	r := NewRegistry()
	store := newTestStore(t)
	bin := fakeFFmpeg(t, 30)

	for _, id := range []string{"x", "y"} {
		sup := NewSupervisor(persistence.Recording{ID: id, StartTime: time.Now().Add(time.Hour), Duration: 30}, Deps{
			Settings: testSettings(t, bin, 30),
			Store:    store,
		})
		require.NoError(t, r.Register(sup))
		require.NoError(t, sup.Start(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.CloseAndWait(ctx))

	for _, sup := range r.List() {
		require.Equal(t, StatusCancelled, sup.Status())
	}
}

package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDocumentStoreContract runs a suite of tests to verify that a DocumentStore implementation
// adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	runUID := "contract-run-" + time.Now().Format("20060102150405.000000")
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("Append and Load", func(t *testing.T) {
		start := domain.RunStart{UID: runUID, Time: now, PlanName: "count"}
		event := domain.Event{
			UID:    "ev-1",
			RunUID: runUID,
			Seq:    1,
			Time:   now,
			Data:   map[string]any{"det": 1.0},
		}
		stop := domain.RunStop{UID: "stop-1", RunUID: runUID, Time: now, ExitStatus: domain.StatusCompleted, NumEvents: 1}

		require.NoError(t, store.Append(ctx, runUID, start))
		require.NoError(t, store.Append(ctx, runUID, event))
		require.NoError(t, store.Append(ctx, runUID, stop))

		records, err := store.Load(ctx, runUID)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, records, 3)
		assert.Equal(t, domain.DocStart, records[0].Type)
		assert.Equal(t, domain.DocEvent, records[1].Type)
		assert.Equal(t, domain.DocStop, records[2].Type)

		doc, err := records[1].Decode()
		require.NoError(t, err)
		ev, ok := doc.(domain.Event)
		require.True(t, ok, "expected an Event, got %T", doc)
		assert.Equal(t, 1, ev.Seq)
		// JSON round trips keep float64 values intact.
		assert.Equal(t, 1.0, ev.Data["det"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runUID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := runUID + "-1"
		id2 := runUID + "-2"
		require.NoError(t, store.Append(ctx, id1, domain.RunStart{UID: id1, Time: now}))
		require.NoError(t, store.Append(ctx, id2, domain.RunStart{UID: id2, Time: now}))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, runUID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runUID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})
}

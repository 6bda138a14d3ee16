package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.SessionRecord {
		now := time.Now().UTC().Truncate(time.Second)
		return &domain.SessionRecord{
			SessionID:   id,
			Flow:        "claims",
			State:       domain.NewState(),
			Status:      domain.StatusSuspended,
			Awaiting:    "insurance_type",
			SuspendedAt: "Greet",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		rec := newRecord(sessionID)
		require.NoError(t, rec.State.Set("insurance_type", "health"))
		require.NoError(t, rec.State.Set("claim_amount", 1200))
		rec.State.Loops["ConfirmRaise"] = 1

		err := store.Save(ctx, sessionID, rec)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.Flow, loaded.Flow)
		assert.Equal(t, rec.Status, loaded.Status)
		assert.Equal(t, rec.Awaiting, loaded.Awaiting)
		assert.Equal(t, rec.SuspendedAt, loaded.SuspendedAt)
		assert.Equal(t, "health", loaded.State.Fields["insurance_type"])
		assert.Equal(t, 1, loaded.State.Loops["ConfirmRaise"])
		// JSON-backed stores turn ints into float64; only the value matters.
		amount, ok := loaded.State.Float("claim_amount")
		assert.True(t, ok)
		assert.Equal(t, 1200.0, amount)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		rec := newRecord(sessionID)
		rec.Status = domain.StatusDone
		rec.Awaiting = ""
		require.NoError(t, store.Save(ctx, sessionID, rec))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, loaded.Status)
		assert.Empty(t, loaded.Awaiting)
		assert.NotContains(t, loaded.State.Fields, "insurance_type")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newRecord(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newRecord(id1))
		_ = store.Save(ctx, id2, newRecord(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

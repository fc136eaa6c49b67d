package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"punchinout.com/punchinout/core/coretest"
	"punchinout.com/punchinout/model"
)

func TestAppendAndList(t *testing.T) {
	dm := coretest.New(t)
	store := NewStore(dm)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Entry{Actor: AdminActor(1), Action: ActionDeviceCreated, Metadata: map[string]any{"deviceCode": "K-1"}}))
	require.NoError(t, store.Record(ctx, Entry{Actor: DeviceActor(2), Action: ActionPunchIn}))
	require.NoError(t, store.Record(ctx, Entry{Actor: SystemActor, Action: ActionFaceEnrolled}))

	rows, total, err := store.List(ctx, Filter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, rows, 3)

	rows, total, err = store.List(ctx, Filter{ActorType: "ADMIN", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(rows[0].Metadata, &meta))
	assert.Equal(t, "K-1", meta["deviceCode"])
}

func TestAppendRollsBackWithCaller(t *testing.T) {
	dm := coretest.New(t)
	store := NewStore(dm)
	ctx := context.Background()

	_ = dm.Transaction(ctx, func(tx *gorm.DB) error {
		require.NoError(t, store.Append(tx, Entry{Actor: SystemActor, Action: ActionPunchOut}))
		return assert.AnError
	})

	_, total, err := store.List(ctx, Filter{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSessionLifecycle(t *testing.T) {
	dm := coretest.New(t)
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(dm).WithClock(func() time.Time { return t0 })
	ctx := context.Background()

	session, err := store.CreateSession(ctx, model.SubjectAdmin, 1, t0.Add(time.Hour))
	require.NoError(t, err)

	found, err := store.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, found.Valid(t0))
	assert.False(t, found.Valid(t0.Add(2*time.Hour)))

	require.NoError(t, store.RevokeSession(ctx, session.ID))
	require.NoError(t, store.RevokeSession(ctx, session.ID))

	found, err = store.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, found.Valid(t0))

	_, err = store.FindSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

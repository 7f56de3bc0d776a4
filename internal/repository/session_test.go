package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/immob/internal/model"
	"github.com/and161185/immob/internal/storage"
)

func sampleUser() *model.User {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.User{
		ID:            "enc-id",
		Email:         "test@example.com",
		FirstName:     "test",
		LastName:      "User",
		Role:          model.RoleGuest,
		Verified:      true,
		CreatedAt:     now,
		SessionExpiry: now.Add(24 * time.Hour),
	}
}

func TestSessionRepo_SaveLoadClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	r := NewSessionRepo(store)

	u, err := r.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, u)

	require.NoError(t, r.Save(ctx, sampleUser()))
	u, err = r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleUser(), u)

	raw, err := store.Get(ctx, SessionKey)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"state": {
			"user": {
				"id": "enc-id",
				"email": "test@example.com",
				"firstName": "test",
				"lastName": "User",
				"role": "guest",
				"verified": true,
				"createdAt": "2026-01-02T03:04:05Z",
				"sessionExpiry": "2026-01-03T03:04:05Z"
			},
			"isAuthenticated": true
		},
		"version": 0
	}`, string(raw))

	require.NoError(t, r.Clear(ctx))
	_, err = store.Get(ctx, SessionKey)
	require.Error(t, err)
}

func TestSessionRepo_NormalizesFlag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	r := NewSessionRepo(store)

	require.NoError(t, store.Set(ctx, SessionKey, []byte(`{"state":{"user":null,"isAuthenticated":true},"version":0}`)))
	u, err := r.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, u)

	require.NoError(t, store.Set(ctx, SessionKey, []byte(`{"state":{"user":{"email":"a@b.co","role":"guest"},"isAuthenticated":false},"version":0}`)))
	u, err = r.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, u)

	require.NoError(t, r.Save(ctx, nil))
	raw, _ := store.Get(ctx, SessionKey)
	require.JSONEq(t, `{"state":{"user":null,"isAuthenticated":false},"version":0}`, string(raw))
}

func TestSessionRepo_Corrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	r := NewSessionRepo(store)

	require.NoError(t, store.Set(ctx, SessionKey, []byte(`not json`)))
	_, err := r.Load(ctx)
	require.ErrorIs(t, err, storage.ErrCorrupt)

	require.NoError(t, store.Set(ctx, SessionKey, []byte(`{"state":{"user":{"role":"root"},"isAuthenticated":true}}`)))
	_, err = r.Load(ctx)
	require.ErrorIs(t, err, storage.ErrCorrupt)
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/immob/internal/errs"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Get(ctx, "auth-storage")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Set(ctx, "auth-storage", []byte(`{"v":1}`)))
	require.NoError(t, s.Set(ctx, "auth-storage", []byte(`{"v":2}`)))
	got, err := s.Get(ctx, "auth-storage")
	require.NoError(t, err)
	require.JSONEq(t, `{"v":2}`, string(got))

	require.NoError(t, s.Remove(ctx, "auth-storage"))
	_, err = s.Get(ctx, "auth-storage")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_KeysPrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Set(ctx, "rate-limiter-login", []byte("[]")))
	require.NoError(t, s.Set(ctx, "rate-limiter-api", []byte("[]")))
	require.NoError(t, s.Set(ctx, "rate_limiter_x", []byte("[]")))
	require.NoError(t, s.Set(ctx, "favorites", []byte("[]")))

	keys, err := s.Keys(ctx, "rate-limiter-")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"rate-limiter-login", "rate-limiter-api"}, keys)

	keys, err = s.Keys(ctx, "rate_")
	require.NoError(t, err)
	require.Equal(t, []string{"rate_limiter_x"}, keys)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "immob.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "rate-limiter-login", []byte("[1,2]")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "rate-limiter-login")
	require.NoError(t, err)
	require.Equal(t, "[1,2]", string(got))
}

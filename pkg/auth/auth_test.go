package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	t.Parallel()
	m := auth.NewTokenManager(auth.Config{Secret: "secret", TokenTTL: time.Hour})
	actor := auth.Actor{ID: "u-1", Username: "alice", Role: auth.RoleAdmin}

	token, exp, err := m.GenerateToken(actor)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	got, err := m.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, actor, got)
}

func TestTokenManager_Invalid(t *testing.T) {
	t.Parallel()
	m := auth.NewTokenManager(auth.Config{Secret: "secret", TokenTTL: time.Hour})
	other := auth.NewTokenManager(auth.Config{Secret: "other", TokenTTL: time.Hour})

	token, _, err := other.GenerateToken(auth.Actor{ID: "u-1"})
	require.NoError(t, err)

	_, err = m.ParseToken(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = m.ParseToken("garbage")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	expired := auth.NewTokenManager(auth.Config{Secret: "secret", TokenTTL: -time.Minute})
	token, _, err = expired.GenerateToken(auth.Actor{ID: "u-1"})
	require.NoError(t, err)
	_, err = m.ParseToken(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestActor_CanActFor(t *testing.T) {
	t.Parallel()
	user := auth.Actor{ID: "u-1", Role: auth.RoleUser}
	admin := auth.Actor{ID: "a-1", Role: auth.RoleAdmin}

	require.True(t, user.CanActFor("u-1"))
	require.False(t, user.CanActFor("u-2"))
	require.False(t, user.CanActFor(""))
	require.True(t, admin.CanActFor("u-2"))
}

func TestActorContext(t *testing.T) {
	t.Parallel()
	_, err := auth.GetActor(context.Background())
	require.Error(t, err)

	ctx := auth.SetActor(context.Background(), auth.Actor{ID: "a-1", Role: auth.RoleAdmin})
	got, err := auth.GetActor(ctx)
	require.NoError(t, err)
	require.Equal(t, "a-1", got.ID)
	require.True(t, auth.IsAdmin(ctx))
}

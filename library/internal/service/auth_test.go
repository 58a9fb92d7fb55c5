package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	repo_mocks "github.com/Astemirdum/library-catalog/library/internal/repository/mocks"
	"github.com/Astemirdum/library-catalog/pkg/auth"
)

func newAuthService(t *testing.T) (*AuthService, *repo_mocks.MockRepository) {
	t.Helper()
	repo := repo_mocks.NewMockRepository(gomock.NewController(t))
	svc := NewAuthService(repo, auth.NewTokenManager(auth.Config{Secret: "secret", TokenTTL: time.Hour}), zap.NewNop())
	svc.cost = bcrypt.MinCost
	return svc, repo
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to user role and hashes the password", func(t *testing.T) {
		svc, repo := newAuthService(t)
		repo.EXPECT().CreateUser(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, u model.User) (model.User, error) {
			require.Equal(t, "alice", u.Username)
			require.Equal(t, auth.RoleUser, u.Role)
			require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")))
			return u, nil
		})

		user, err := svc.Register(ctx, model.RegisterRequest{Username: " alice ", Password: "secret1"})
		require.NoError(t, err)
		require.NotEmpty(t, user.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, repo := newAuthService(t)
		repo.EXPECT().CreateUser(ctx, gomock.Any()).Return(model.User{}, errs.DuplicateKey("user already exists"))

		_, err := svc.Register(ctx, model.RegisterRequest{Username: "alice", Password: "secret1"})
		require.ErrorIs(t, err, errs.ErrDuplicateKey)
	})

	t.Run("invalid input", func(t *testing.T) {
		svc, _ := newAuthService(t)
		for _, req := range []model.RegisterRequest{
			{Username: " al ", Password: "secret1"},
			{Username: "alice", Password: "12345"},
			{Username: "alice", Password: "secret1", Role: "librarian"},
		} {
			_, err := svc.Register(ctx, req)
			require.ErrorIs(t, err, errs.ErrValidation)
		}
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := model.User{ID: "u-alice", Username: "alice", PasswordHash: string(hash), Role: auth.RoleAdmin}

	t.Run("ok", func(t *testing.T) {
		svc, repo := newAuthService(t)
		repo.EXPECT().GetUserByUsername(ctx, "alice").Return(stored, nil)

		session, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "secret1"})
		require.NoError(t, err)
		require.Equal(t, stored.Actor(), session.User)
		require.NotEmpty(t, session.Token)

		actor, err := auth.NewTokenManager(auth.Config{Secret: "secret"}).ParseToken(session.Token)
		require.NoError(t, err)
		require.True(t, actor.IsAdmin())
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, repo := newAuthService(t)
		repo.EXPECT().GetUserByUsername(ctx, "alice").Return(stored, nil)

		_, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "wrong!"})
		require.ErrorIs(t, err, errs.ErrAuthorization)
		require.EqualError(t, err, "invalid credentials")
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, repo := newAuthService(t)
		repo.EXPECT().GetUserByUsername(ctx, "mallory").Return(model.User{}, errs.NotFound("user not found"))

		_, err := svc.Login(ctx, model.LoginRequest{Username: "mallory", Password: "secret1"})
		require.EqualError(t, err, "invalid credentials")
	})
}

func TestAuthService_CheckSession(t *testing.T) {
	ctx := context.Background()
	svc, repo := newAuthService(t)
	repo.EXPECT().GetUserByID(ctx, "u-gone").Return(model.User{}, errs.NotFound("user not found"))

	_, err := svc.CheckSession(ctx, auth.Actor{ID: "u-gone"})
	require.ErrorIs(t, err, errs.ErrAuthorization)
}

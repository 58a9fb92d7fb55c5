package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-catalog/library/internal/repository"
	"github.com/Astemirdum/library-catalog/pkg/auth"
)

const passwordCost = 10

type TokenIssuer interface {
	GenerateToken(actor auth.Actor) (string, time.Time, error)
}

type AuthService struct {
	log    *zap.Logger
	repo   libraryRepo.UserRepository
	tokens TokenIssuer
	cost   int
}

func NewAuthService(repo libraryRepo.UserRepository, tokens TokenIssuer, log *zap.Logger) *AuthService {
	return &AuthService{
		log:    log.Named("auth"),
		repo:   repo,
		tokens: tokens,
		cost:   passwordCost,
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.User, error) {
	username := strings.TrimSpace(req.Username)
	if len([]rune(username)) < 3 {
		return model.User{}, errs.Validation("username must be at least 3 characters")
	}
	if len(req.Password) < 6 {
		return model.User{}, errs.Validation("password must be at least 6 characters")
	}
	role := req.Role
	switch role {
	case "":
		role = auth.RoleUser
	case auth.RoleUser, auth.RoleAdmin:
	default:
		return model.User{}, errs.Validation("invalid role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "hash password")
	}
	user, err := s.repo.CreateUser(ctx, model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return user, nil
}

// Login never tells an unknown user from a wrong password.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.Session, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Session{}, errs.Authorization("invalid credentials")
		}
		return model.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.Session{}, errs.Authorization("invalid credentials")
	}

	actor := user.Actor()
	token, expiresAt, err := s.tokens.GenerateToken(actor)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{User: actor, Token: token, ExpiresAt: expiresAt}, nil
}

// CheckSession resolves the session actor to the stored user.
func (s *AuthService) CheckSession(ctx context.Context, actor auth.Actor) (model.User, error) {
	user, err := s.repo.GetUserByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, errs.Authorization("session user no longer exists")
		}
		return model.User{}, err
	}
	return user, nil
}

func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (model.User, error) {
	return s.Register(ctx, model.RegisterRequest{
		Username: username,
		Password: password,
		Role:     auth.RoleAdmin,
	})
}

package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanActFor reports whether the actor may act on a resource held by ownerID.
func (a Actor) CanActFor(ownerID string) bool {
	return a.IsAdmin() || (ownerID != "" && a.ID == ownerID)
}

type Config struct {
	Secret   string        `envconfig:"JWT_SECRET" required:"true" json:"-"`
	TokenTTL time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type Claims struct {
	Profile struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     Role   `json:"role"`
	} `json:"profile"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(cfg Config) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
	}
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) GenerateToken(actor Actor) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	claims.Profile.ID = actor.ID
	claims.Profile.Username = actor.Username
	claims.Profile.Role = actor.Role

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "SignedString")
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) ParseToken(tokenStr string) (Actor, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}
	return Actor{
		ID:       claims.Profile.ID,
		Username: claims.Profile.Username,
		Role:     claims.Profile.Role,
	}, nil
}

type actorKey struct{}

func SetActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func GetActor(ctx context.Context) (Actor, error) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, errors.New("no actor in context")
	}
	return actor, nil
}

func IsAdmin(ctx context.Context) bool {
	actor, err := GetActor(ctx)
	return err == nil && actor.IsAdmin()
}

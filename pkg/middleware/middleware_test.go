package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/auth"
	md "github.com/Astemirdum/library-catalog/pkg/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestJwtAuthentication(t *testing.T) {
	t.Parallel()
	tm := auth.NewTokenManager(auth.Config{Secret: "secret", TokenTTL: time.Hour})
	token, _, err := tm.GenerateToken(auth.Actor{ID: "u-1", Username: "alice", Role: auth.RoleUser})
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		actor, err := auth.GetActor(c.Request().Context())
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, actor.Username)
	}, md.JwtAuthentication(tm))
	e.GET("/admin", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, md.JwtAuthentication(tm), md.RequireAdmin)

	tests := []struct {
		name     string
		path     string
		setup    func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{
			name:     "no token",
			path:     "/me",
			setup:    func(r *http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "cookie",
			path: "/me",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: md.TokenCookie, Value: token})
			},
			wantCode: http.StatusOK,
			wantBody: "alice",
		},
		{
			name: "bearer",
			path: "/me",
			setup: func(r *http.Request) {
				r.Header.Set(md.AuthorizationHeader, "Bearer "+token)
			},
			wantCode: http.StatusOK,
			wantBody: "alice",
		},
		{
			name: "invalid token",
			path: "/me",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: md.TokenCookie, Value: "broken"})
			},
			wantCode: http.StatusForbidden,
		},
		{
			name: "not admin",
			path: "/admin",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: md.TokenCookie, Value: token})
			},
			wantCode: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			tt.setup(r)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				require.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

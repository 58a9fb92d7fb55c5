package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/auth"
)

// Register godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "credentials"
// @Success 201 {object} response{data=model.User}
// @Failure 400 {object} response
// @Router /api/auth/register [post]
func (h *Handler) Register(c echo.Context) error {
	var req model.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.authSvc.Register(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusCreated, "user registered", user)
}

// Login godoc
// @Summary Log in
// @Description Sets the httpOnly session cookie "token".
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "credentials"
// @Success 200 {object} response{data=auth.Actor}
// @Failure 401 {object} response
// @Router /api/auth/login [post]
func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session, err := h.authSvc.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrAuthorization) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return h.httpError(err)
	}

	c.SetCookie(sessionCookie(session.Token, session.ExpiresAt, h.cfg.Production))
	return ok(c, http.StatusOK, "logged in", session.User)
}

// Logout godoc
// @Summary Log out
// @Tags auth
// @Produce json
// @Success 200 {object} response
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c echo.Context) error {
	cookie := sessionCookie("", time.Unix(0, 0), h.cfg.Production)
	cookie.MaxAge = -1
	c.SetCookie(cookie)
	return ok(c, http.StatusOK, "logged out", nil)
}

// CheckSession godoc
// @Summary Current session user
// @Tags auth
// @Produce json
// @Success 200 {object} response{data=model.User}
// @Failure 401 {object} response
// @Router /api/auth/check-session [get]
func (h *Handler) CheckSession(c echo.Context) error {
	actor, err := auth.GetActor(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	user, err := h.authSvc.CheckSession(c.Request().Context(), actor)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, "", user)
}

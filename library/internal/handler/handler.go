package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	_ "github.com/Astemirdum/library-catalog/library/docs"
	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/metrics"
	md "github.com/Astemirdum/library-catalog/pkg/middleware"
	"github.com/Astemirdum/library-catalog/pkg/validate"
)

// DefaultAllowOrigin is the frontend allowed when no CORS origins are configured.
const DefaultAllowOrigin = "http://localhost:3000"

type Config struct {
	// Production marks the session cookie Secure.
	Production bool
	// UploadDir is served under /uploads/images when set.
	UploadDir string
	// AllowOrigins lists the origins that may send credentialed requests.
	AllowOrigins []string
}

type Handler struct {
	librarySvc LibraryService
	authSvc    AuthService
	images     ImageSaver
	tokens     md.TokenParser
	cfg        Config
	started    time.Time
	log        *zap.Logger
}

func New(librarySvc LibraryService, authSvc AuthService, images ImageSaver, tokens md.TokenParser, cfg Config, log *zap.Logger) *Handler {
	return &Handler{
		librarySvc: librarySvc,
		authSvc:    authSvc,
		images:     images,
		tokens:     tokens,
		cfg:        cfg,
		started:    time.Now(),
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.HTTPErrorHandler = h.errorHandler
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	origins := h.cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{DefaultAllowOrigin}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))
	e.Use(metrics.Middleware())

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/health", h.Health)
	base.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	base.GET("/swagger/*", echoSwagger.WrapHandler)
	if h.cfg.UploadDir != "" {
		e.Static("/uploads/images", h.cfg.UploadDir)
	}

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)
	authMW := md.JwtAuthentication(h.tokens)

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout, authMW)
	api.GET("/auth/check-session", h.CheckSession, authMW)

	uploadLimit := middleware.BodyLimit("6M")
	api.GET("/books", h.ListBooks)
	api.GET("/books/:id", h.GetBook)
	api.POST("/books", h.CreateBook, authMW, uploadLimit)
	api.PUT("/books/:id", h.UpdateBook, authMW, uploadLimit)
	api.DELETE("/books/:id", h.DeleteBook, authMW)
	api.POST("/books/:id/borrow", h.BorrowBook, authMW)
	api.POST("/books/:id/return", h.ReturnBook, authMW)
	api.POST("/books/:id/reserve", h.ReserveBook, authMW)
	api.DELETE("/books/:id/reserve", h.CancelReservation, authMW)
	api.GET("/books/:id/history", h.BookHistory, authMW, md.RequireAdmin)

	return e
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	// Uptime is in seconds.
	Uptime float64 `json:"uptime"`
}

// Health godoc
// @Summary Liveness probe
// @Tags manage
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func (h *Handler) Health(c echo.Context) error {
	now := time.Now()
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now,
		Uptime:    now.Sub(h.started).Seconds(),
	})
}

type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, response{Success: true, Message: message, Data: data})
}

// httpError maps domain errors onto HTTP statuses.
func (h *Handler) httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrDuplicateKey),
		errors.Is(err, errs.ErrConflict):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrAuthorization):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		h.log.Error("internal error", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he := h.httpError(err)
	msg := fmt.Sprint(he.Message)
	if m, isStr := he.Message.(string); isStr {
		msg = m
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, response{Success: false, Message: msg})
	}
	if err != nil {
		h.log.Error("write error response", zap.Error(err))
	}
}

func sessionCookie(token string, expiresAt time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     md.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

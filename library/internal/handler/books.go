package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/library/internal/storage"
	"github.com/Astemirdum/library-catalog/pkg/auth"
)

const imageField = "image"

// ListBooks godoc
// @Summary List catalog books
// @Tags books
// @Produce json
// @Param page query int false "page, default 1"
// @Param limit query int false "page size, default 10, at most 100"
// @Param search query string false "substring of title or author"
// @Param status query string false "available, borrowed or reserved"
// @Param sortBy query string false "createdAt, title, author or year"
// @Param order query string false "asc or desc"
// @Param yearFrom query int false "lowest publication year"
// @Param yearTo query int false "highest publication year"
// @Success 200 {object} response{data=model.ListBooks}
// @Failure 400 {object} response
// @Router /api/books [get]
func (h *Handler) ListBooks(c echo.Context) error {
	q := model.BookQuery{
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
		Search: strings.TrimSpace(c.QueryParam("search")),
		Status: lifecycle.Status(c.QueryParam("status")),
		SortBy: model.SortField(c.QueryParam("sortBy")),
		Order:  model.SortOrder(c.QueryParam("order")),
	}
	var err error
	if q.YearFrom, err = queryYear(c, "yearFrom"); err != nil {
		return err
	}
	if q.YearTo, err = queryYear(c, "yearTo"); err != nil {
		return err
	}

	books, err := h.librarySvc.ListBooks(c.Request().Context(), q)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, "", books)
}

// GetBook godoc
// @Summary Get a book
// @Tags books
// @Produce json
// @Param id path string true "book id"
// @Success 200 {object} response{data=model.Book}
// @Failure 404 {object} response
// @Router /api/books/{id} [get]
func (h *Handler) GetBook(c echo.Context) error {
	id, err := bookID(c)
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, "", book)
}

// CreateBook godoc
// @Summary Add a book
// @Tags books
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "title"
// @Param author formData string true "author"
// @Param year formData int true "publication year"
// @Param isbn formData string false "catalog code"
// @Param description formData string false "description"
// @Param image formData file false "cover image"
// @Success 201 {object} response{data=model.Book}
// @Failure 400 {object} response
// @Router /api/books [post]
func (h *Handler) CreateBook(c echo.Context) error {
	actor, err := auth.GetActor(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	image, err := h.saveUpload(c)
	if err != nil {
		return err
	}
	book, err := h.librarySvc.CreateBook(c.Request().Context(), actor, req, image)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusCreated, "book created", book)
}

// UpdateBook godoc
// @Summary Edit a book
// @Description Partial update. Lifecycle status is not editable.
// @Tags books
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param id path string true "book id"
// @Success 200 {object} response{data=model.Book}
// @Failure 400 {object} response
// @Failure 404 {object} response
// @Router /api/books/{id} [put]
func (h *Handler) UpdateBook(c echo.Context) error {
	actor, err := auth.GetActor(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := bookID(c)
	if err != nil {
		return err
	}
	req, err := bindUpdate(c)
	if err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	image, err := h.saveUpload(c)
	if err != nil {
		return err
	}
	book, err := h.librarySvc.UpdateBook(c.Request().Context(), actor, id, req, image)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, "book updated", book)
}

// DeleteBook godoc
// @Summary Remove a book
// @Tags books
// @Produce json
// @Param id path string true "book id"
// @Success 200 {object} response
// @Failure 404 {object} response
// @Router /api/books/{id} [delete]
func (h *Handler) DeleteBook(c echo.Context) error {
	actor, err := auth.GetActor(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := bookID(c)
	if err != nil {
		return err
	}
	if err := h.librarySvc.DeleteBook(c.Request().Context(), actor, id); err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, "book deleted", nil)
}

// BorrowBook godoc
// @Summary Borrow a book
// @Tags lifecycle
// @Accept json
// @Produce json
// @Param id path string true "book id"
// @Param request body model.BorrowRequest false "loan length in days, default 14"
// @Success 200 {object} response{data=model.Book}
// @Failure 400 {object} response
// @Router /api/books/{id}/borrow [post]
func (h *Handler) BorrowBook(c echo.Context) error {
	actor, err := auth.GetActor(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := bookID(c)
	if err != nil {
		return err
	}
	var req model.BorrowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	days := lifecycle.DefaultLoanDays
	if req.Days != nil {
		days = *req.Days
	}

	book, err := h.librarySvc.Borrow(c.Request().Context(), actor, id, days)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, "book borrowed", book)
}

// ReturnBook godoc
// @Summary Return a borrowed book
// @Tags lifecycle
// @Produce json
// @Param id path string true "book id"
// @Success 200 {object} response{data=model.Book}
// @Failure 400 {object} response
// @Failure 403 {object} response
// @Router /api/books/{id}/return [post]
func (h *Handler) ReturnBook(c echo.Context) error {
	return h.lifecycleOp(c, "book returned", h.librarySvc.Return)
}

// ReserveBook godoc
// @Summary Reserve a borrowed book
// @Tags lifecycle
// @Produce json
// @Param id path string true "book id"
// @Success 200 {object} response{data=model.Book}
// @Failure 400 {object} response
// @Router /api/books/{id}/reserve [post]
func (h *Handler) ReserveBook(c echo.Context) error {
	return h.lifecycleOp(c, "book reserved", h.librarySvc.Reserve)
}

// CancelReservation godoc
// @Summary Cancel a reservation
// @Tags lifecycle
// @Produce json
// @Param id path string true "book id"
// @Success 200 {object} response{data=model.Book}
// @Failure 403 {object} response
// @Router /api/books/{id}/reserve [delete]
func (h *Handler) CancelReservation(c echo.Context) error {
	return h.lifecycleOp(c, "reservation cancelled", h.librarySvc.CancelReservation)
}

// BookHistory godoc
// @Summary Lifecycle history of a book
// @Tags lifecycle
// @Produce json
// @Param id path string true "book id"
// @Success 200 {object} response{data=[]model.BookEvent}
// @Failure 403 {object} response
// @Router /api/books/{id}/history [get]
func (h *Handler) BookHistory(c echo.Context) error {
	id, err := bookID(c)
	if err != nil {
		return err
	}
	history, err := h.librarySvc.BookHistory(c.Request().Context(), id)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, "", history)
}

type lifecycleFunc func(ctx context.Context, actor auth.Actor, bookID string) (model.Book, error)

func (h *Handler) lifecycleOp(c echo.Context, message string, op lifecycleFunc) error {
	actor, err := auth.GetActor(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := bookID(c)
	if err != nil {
		return err
	}
	book, err := op(c.Request().Context(), actor, id)
	if err != nil {
		return h.httpError(err)
	}
	return ok(c, http.StatusOK, message, book)
}

// saveUpload stores the optional cover and returns its name, or "" when none was sent.
func (h *Handler) saveUpload(c echo.Context) (string, error) {
	file, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid image upload")
	}
	if err := storage.ValidateUpload(file.Filename, file.Size); err != nil {
		return "", h.httpError(err)
	}
	return h.storeFile(c, file)
}

func (h *Handler) storeFile(c echo.Context, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid image upload")
	}
	defer src.Close()

	name := storage.NewImageName(file.Filename, time.Now())
	if err := h.images.Save(c.Request().Context(), name, src); err != nil {
		h.log.Error("save image", zap.String("name", name), zap.Error(err))
		return "", echo.NewHTTPError(http.StatusInternalServerError, "failed to store image")
	}
	return name, nil
}

// bindUpdate reads a partial update from JSON or from form fields. Only the
// fields present in the request are set.
func bindUpdate(c echo.Context) (model.UpdateBookRequest, error) {
	var req model.UpdateBookRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := c.Bind(&req); err != nil {
			return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		return req, nil
	}

	form, err := c.FormParams()
	if err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	str := func(key string) *string {
		if _, present := form[key]; !present {
			return nil
		}
		v := form.Get(key)
		return &v
	}
	req.Title = str("title")
	req.Author = str("author")
	req.ISBN = str("isbn")
	req.Description = str("description")
	if year := str("year"); year != nil {
		y, err := strconv.Atoi(strings.TrimSpace(*year))
		if err != nil {
			return req, echo.NewHTTPError(http.StatusBadRequest, "year must be a number")
		}
		req.Year = &y
	}
	return req, nil
}

func bookID(c echo.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid book id")
	}
	return id, nil
}

// queryInt is lenient: malformed values fall back to the defaults downstream.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}

func queryYear(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a number")
	}
	return &year, nil
}

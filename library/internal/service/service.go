package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/events"
	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/metrics"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-catalog/library/internal/repository"
	"github.com/Astemirdum/library-catalog/pkg/auth"
)

const (
	opBorrow            = "borrow"
	opReturn            = "return"
	opReserve           = "reserve"
	opCancelReservation = "cancel_reservation"
)

// ImageReleaser frees a stored cover image.
type ImageReleaser interface {
	Delete(ctx context.Context, name string) error
}

type Service struct {
	log       *zap.Logger
	repo      libraryRepo.BookRepository
	history   libraryRepo.EventRepository
	publisher events.Publisher
	images    ImageReleaser
	now       func() time.Time
}

func NewService(repo libraryRepo.BookRepository, history libraryRepo.EventRepository, publisher events.Publisher, images ImageReleaser, log *zap.Logger) *Service {
	return &Service{
		log:       log.Named("service"),
		repo:      repo,
		history:   history,
		publisher: publisher,
		images:    images,
		now:       time.Now,
	}
}

func (s *Service) Borrow(ctx context.Context, actor auth.Actor, bookID string, days int) (model.Book, error) {
	if days < 1 || days > lifecycle.MaxLoanDays {
		metrics.RecordTransition(opBorrow, metrics.ResultError)
		return model.Book{}, errs.Validation("days must be between 1 and %d", lifecycle.MaxLoanDays)
	}
	now := s.now()
	return s.transition(ctx, opBorrow, actor, bookID, model.EventBorrowed, func(st lifecycle.State) (lifecycle.State, bool, error) {
		next, err := st.Borrow(actor.ID, now, days)
		return next, true, err
	})
}

func (s *Service) Return(ctx context.Context, actor auth.Actor, bookID string) (model.Book, error) {
	return s.transition(ctx, opReturn, actor, bookID, model.EventReturned, func(st lifecycle.State) (lifecycle.State, bool, error) {
		next, err := st.Return()
		if err != nil {
			return lifecycle.State{}, false, err
		}
		if !actor.CanActFor(st.BorrowerID()) {
			return lifecycle.State{}, false, errs.Authorization("only the borrower or an admin can return this book")
		}
		return next, true, nil
	})
}

func (s *Service) Reserve(ctx context.Context, actor auth.Actor, bookID string) (model.Book, error) {
	now := s.now()
	return s.transition(ctx, opReserve, actor, bookID, model.EventReserved, func(st lifecycle.State) (lifecycle.State, bool, error) {
		next, err := st.Reserve(actor.ID, now)
		return next, true, err
	})
}

// CancelReservation is a no-op when the book holds no reservation.
func (s *Service) CancelReservation(ctx context.Context, actor auth.Actor, bookID string) (model.Book, error) {
	return s.transition(ctx, opCancelReservation, actor, bookID, model.EventReservationCancelled, func(st lifecycle.State) (lifecycle.State, bool, error) {
		next, ok := st.CancelReservation()
		if !ok {
			return st, false, nil
		}
		if !actor.CanActFor(st.ReserverID()) {
			return lifecycle.State{}, false, errs.Authorization("only the reserver or an admin can cancel this reservation")
		}
		return next, true, nil
	})
}

// transitionFunc computes the next state. changed is false for a no-op.
type transitionFunc func(st lifecycle.State) (next lifecycle.State, changed bool, err error)

// transition persists fn's result with a conditional update keyed on the
// state it was computed from. If another writer got there first the fresh
// state is re-evaluated so the caller sees the error that now applies.
func (s *Service) transition(ctx context.Context, op string, actor auth.Actor, bookID string, event model.EventType, fn transitionFunc) (model.Book, error) {
	book, err := s.transitionOnce(ctx, actor, bookID, event, fn)
	metrics.RecordTransition(op, transitionResult(err))
	if err != nil {
		s.log.Debug(op, zap.String("book", bookID), zap.String("actor", actor.ID), zap.Error(err))
	}
	return book, err
}

func (s *Service) transitionOnce(ctx context.Context, actor auth.Actor, bookID string, event model.EventType, fn transitionFunc) (model.Book, error) {
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	next, changed, err := fn(book.State)
	if err != nil {
		return model.Book{}, err
	}
	if !changed {
		return book, nil
	}

	applied, err := s.repo.TransitionBook(ctx, bookID, book.State, next)
	if err != nil {
		return model.Book{}, err
	}
	if !applied {
		fresh, err := s.repo.GetBook(ctx, bookID)
		if err != nil {
			return model.Book{}, err
		}
		if _, _, err := fn(fresh.State); err != nil {
			return model.Book{}, err
		}
		return model.Book{}, errs.Conflict("book was modified concurrently, try again")
	}

	updated, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	s.publisher.Publish(ctx, events.NewEvent(bookID, event, actor.ID, s.now()))
	return updated, nil
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, errs.ErrConflict):
		return metrics.ResultConflict
	case errors.Is(err, errs.ErrAuthorization):
		return metrics.ResultDenied
	default:
		return metrics.ResultError
	}
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

// CreateBook stores a new available book. image is the stored cover name or
// empty for the default cover; it is released again if the book is rejected.
func (s *Service) CreateBook(ctx context.Context, actor auth.Actor, req model.CreateBookRequest, image string) (model.Book, error) {
	book := model.Book{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Year:        req.Year,
		ISBN:        normalizeISBN(req.ISBN),
		Description: strings.TrimSpace(req.Description),
		Image:       image,
		CreatedBy:   model.UserRef{ID: actor.ID, Username: actor.Username},
	}
	if book.Image == "" {
		book.Image = model.DefaultImage
	}
	if err := validateBook(book); err != nil {
		s.releaseImage(ctx, image)
		return model.Book{}, err
	}

	created, err := s.repo.CreateBook(ctx, book)
	if err != nil {
		s.releaseImage(ctx, image)
		return model.Book{}, err
	}
	s.publisher.Publish(ctx, events.NewEvent(created.ID, model.EventCreated, actor.ID, s.now()))
	return created, nil
}

// UpdateBook applies a partial edit. Lifecycle fields are never touched.
func (s *Service) UpdateBook(ctx context.Context, actor auth.Actor, id string, req model.UpdateBookRequest, image string) (model.Book, error) {
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		s.releaseImage(ctx, image)
		return model.Book{}, err
	}
	oldImage := book.Image

	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		book.Author = strings.TrimSpace(*req.Author)
	}
	if req.Year != nil {
		book.Year = *req.Year
	}
	if req.ISBN != nil {
		book.ISBN = normalizeISBN(*req.ISBN)
	}
	if req.Description != nil {
		book.Description = strings.TrimSpace(*req.Description)
	}
	if image != "" {
		book.Image = image
	}
	if err := validateBook(book); err != nil {
		s.releaseImage(ctx, image)
		return model.Book{}, err
	}

	updated, err := s.repo.UpdateBook(ctx, book)
	if err != nil {
		s.releaseImage(ctx, image)
		return model.Book{}, err
	}
	if image != "" && oldImage != image {
		s.releaseImage(ctx, oldImage)
	}
	s.publisher.Publish(ctx, events.NewEvent(id, model.EventUpdated, actor.ID, s.now()))
	return updated, nil
}

func (s *Service) DeleteBook(ctx context.Context, actor auth.Actor, id string) error {
	deleted, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return err
	}
	s.releaseImage(ctx, deleted.Image)
	s.publisher.Publish(ctx, events.NewEvent(id, model.EventDeleted, actor.ID, s.now()))
	return nil
}

func (s *Service) ListBooks(ctx context.Context, q model.BookQuery) (model.ListBooks, error) {
	q, err := q.Normalize()
	if err != nil {
		return model.ListBooks{}, err
	}
	if q.EmptyRange() {
		return model.ListBooks{Items: []model.Book{}, Pagination: model.NewPagination(q, 0)}, nil
	}

	var (
		items []model.Book
		total int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.ListBooks(gCtx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountBooks(gCtx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.ListBooks{}, err
	}
	if items == nil {
		items = []model.Book{}
	}
	return model.ListBooks{Items: items, Pagination: model.NewPagination(q, total)}, nil
}

func (s *Service) BookHistory(ctx context.Context, id string) ([]model.BookEvent, error) {
	return s.history.ListEvents(ctx, id)
}

// releaseImage frees an uploaded cover. The shared default cover is never released.
func (s *Service) releaseImage(ctx context.Context, name string) {
	if name == "" || name == model.DefaultImage {
		return
	}
	if err := s.images.Delete(ctx, name); err != nil {
		s.log.Warn("release image", zap.String("image", name), zap.Error(err))
	}
}

func normalizeISBN(isbn string) *string {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return nil
	}
	return &isbn
}

func validateBook(b model.Book) error {
	switch {
	case b.Title == "":
		return errs.Validation("title is required")
	case len([]rune(b.Title)) > 200:
		return errs.Validation("title must be at most 200 characters")
	case b.Author == "":
		return errs.Validation("author is required")
	case len([]rune(b.Author)) > 100:
		return errs.Validation("author must be at most 100 characters")
	case b.Year < 1000 || b.Year > time.Now().Year()+1:
		return errs.Validation("year must be between 1000 and %d", time.Now().Year()+1)
	case len([]rune(b.Description)) > 1000:
		return errs.Validation("description must be at most 1000 characters")
	}
	return nil
}

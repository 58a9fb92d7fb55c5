package handler

import (
	"context"
	"io"

	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/Astemirdum/library-catalog/library/internal/service"
	"github.com/Astemirdum/library-catalog/library/internal/storage"
	"github.com/Astemirdum/library-catalog/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	ListBooks(ctx context.Context, q model.BookQuery) (model.ListBooks, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	CreateBook(ctx context.Context, actor auth.Actor, req model.CreateBookRequest, image string) (model.Book, error)
	UpdateBook(ctx context.Context, actor auth.Actor, id string, req model.UpdateBookRequest, image string) (model.Book, error)
	DeleteBook(ctx context.Context, actor auth.Actor, id string) error
	Borrow(ctx context.Context, actor auth.Actor, bookID string, days int) (model.Book, error)
	Return(ctx context.Context, actor auth.Actor, bookID string) (model.Book, error)
	Reserve(ctx context.Context, actor auth.Actor, bookID string) (model.Book, error)
	CancelReservation(ctx context.Context, actor auth.Actor, bookID string) (model.Book, error)
	BookHistory(ctx context.Context, id string) ([]model.BookEvent, error)
}

type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (model.Session, error)
	CheckSession(ctx context.Context, actor auth.Actor) (model.User, error)
}

type ImageSaver interface {
	Save(ctx context.Context, name string, r io.Reader) error
}

var (
	_ LibraryService = (*service.Service)(nil)
	_ AuthService    = (*service.AuthService)(nil)
	_ ImageSaver     = (storage.ImageStore)(nil)
)

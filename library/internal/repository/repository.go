package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type BookRepository interface {
	GetBook(ctx context.Context, id string) (model.Book, error)
	ListBooks(ctx context.Context, q model.BookQuery) ([]model.Book, error)
	CountBooks(ctx context.Context, q model.BookQuery) (int, error)
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	UpdateBook(ctx context.Context, book model.Book) (model.Book, error)
	TransitionBook(ctx context.Context, id string, from, to lifecycle.State) (bool, error)
	DeleteBook(ctx context.Context, id string) (model.Book, error)
	CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error)
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

type Repository interface {
	BookRepository
	UserRepository
	EventRepository
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName  = `books`
	usersTableName  = `users`
	eventsTableName = `book_events`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sortColumns = map[model.SortField]string{
	model.SortCreatedAt: "b.created_at",
	model.SortTitle:     "b.title",
	model.SortAuthor:    "b.author",
	model.SortYear:      "b.year",
}

type bookRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Author         string         `db:"author"`
	Year           int            `db:"year"`
	Status         string         `db:"status"`
	ISBN           sql.NullString `db:"isbn"`
	Description    string         `db:"description"`
	Image          string         `db:"image"`
	BorrowedBy     sql.NullString `db:"borrowed_by"`
	BorrowedAt     sql.NullTime   `db:"borrowed_at"`
	DueDate        sql.NullTime   `db:"due_date"`
	ReservedBy     sql.NullString `db:"reserved_by"`
	ReservedAt     sql.NullTime   `db:"reserved_at"`
	CreatedBy      string         `db:"created_by"`
	CreatedByName  string         `db:"created_by_username"`
	BorrowedByName string         `db:"borrowed_by_username"`
	ReservedByName string         `db:"reserved_by_username"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r bookRow) toModel() (model.Book, error) {
	var (
		loan        *lifecycle.Loan
		reservation *lifecycle.Reservation
	)
	if r.BorrowedBy.Valid {
		loan = &lifecycle.Loan{
			BorrowerID: r.BorrowedBy.String,
			BorrowedAt: r.BorrowedAt.Time,
			DueDate:    r.DueDate.Time,
		}
	}
	if r.ReservedBy.Valid {
		reservation = &lifecycle.Reservation{
			ReserverID: r.ReservedBy.String,
			ReservedAt: r.ReservedAt.Time,
		}
	}
	state, err := lifecycle.Restore(lifecycle.Status(r.Status), loan, reservation)
	if err != nil {
		return model.Book{}, errors.Wrapf(err, "book %s", r.ID)
	}
	book := model.Book{
		ID:           r.ID,
		Title:        r.Title,
		Author:       r.Author,
		Year:         r.Year,
		Description:  r.Description,
		Image:        r.Image,
		State:        state,
		CreatedBy:    model.UserRef{ID: r.CreatedBy, Username: r.CreatedByName},
		BorrowerName: r.BorrowedByName,
		ReserverName: r.ReservedByName,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ISBN.Valid {
		isbn := r.ISBN.String
		book.ISBN = &isbn
	}
	return book, nil
}

func selectBooks() sq.SelectBuilder {
	return qb.Select(
		"b.id", "b.title", "b.author", "b.year", "b.status", "b.isbn", "b.description", "b.image",
		"b.borrowed_by", "b.borrowed_at", "b.due_date", "b.reserved_by", "b.reserved_at",
		"b.created_by", "b.created_at", "b.updated_at",
		"coalesce(cu.username, '') as created_by_username",
		"coalesce(bu.username, '') as borrowed_by_username",
		"coalesce(ru.username, '') as reserved_by_username",
	).
		From(booksTableName + " b").
		LeftJoin(usersTableName + " cu on cu.id = b.created_by").
		LeftJoin(usersTableName + " bu on bu.id = b.borrowed_by").
		LeftJoin(usersTableName + " ru on ru.id = b.reserved_by")
}

// bookFilter is the predicate shared by the page query and the total count.
func bookFilter(q model.BookQuery) sq.And {
	pred := sq.And{}
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		pred = append(pred, sq.Or{
			sq.ILike{"b.title": pattern},
			sq.ILike{"b.author": pattern},
		})
	}
	if q.Status != "" {
		pred = append(pred, sq.Eq{"b.status": string(q.Status)})
	}
	if q.YearFrom != nil {
		pred = append(pred, sq.GtOrEq{"b.year": *q.YearFrom})
	}
	if q.YearTo != nil {
		pred = append(pred, sq.LtOrEq{"b.year": *q.YearTo})
	}
	return pred
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *repository) GetBook(ctx context.Context, id string) (model.Book, error) {
	query, args, err := selectBooks().
		Where(sq.Eq{"b.id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var row bookRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.NotFound("book not found")
		}
		return model.Book{}, errors.Wrap(err, "GetBook")
	}
	return row.toModel()
}

func (r *repository) ListBooks(ctx context.Context, q model.BookQuery) ([]model.Book, error) {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns[model.SortCreatedAt]
	}
	direction := " DESC"
	if q.Order == model.OrderAsc {
		direction = " ASC"
	}

	query, args, err := selectBooks().
		Where(bookFilter(q)).
		OrderBy(col + direction).
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset())).
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	var rows []bookRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "ListBooks")
	}
	books := make([]model.Book, 0, len(rows))
	for _, row := range rows {
		book, err := row.toModel()
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func (r *repository) CountBooks(ctx context.Context, q model.BookQuery) (int, error) {
	query, args, err := qb.Select("count(*)").
		From(booksTableName + " b").
		Where(bookFilter(q)).
		ToSql()
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, errors.Wrap(err, "CountBooks")
	}
	return total, nil
}

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("id", "title", "author", "year", "status", "isbn", "description", "image", "created_by").
		Values(book.ID, book.Title, book.Author, book.Year, string(lifecycle.Available), book.ISBN, book.Description, book.Image, book.CreatedBy.ID).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Book{}, errs.DuplicateKey("isbn already exists")
		}
		r.log.Error("CreateBook", zap.String("q", query), zap.Error(err))
		return model.Book{}, errors.Wrap(err, "CreateBook")
	}
	return r.GetBook(ctx, book.ID)
}

// UpdateBook writes the editable attributes only; lifecycle columns are left to TransitionBook.
func (r *repository) UpdateBook(ctx context.Context, book model.Book) (model.Book, error) {
	query, args, err := qb.Update(booksTableName).
		SetMap(map[string]interface{}{
			"title":       book.Title,
			"author":      book.Author,
			"year":        book.Year,
			"isbn":        book.ISBN,
			"description": book.Description,
			"image":       book.Image,
			"updated_at":  sq.Expr("now()"),
		}).
		Where(sq.Eq{"id": book.ID}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Book{}, errs.DuplicateKey("isbn already exists")
		}
		return model.Book{}, errors.Wrap(err, "UpdateBook")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Book{}, errs.NotFound("book not found")
	}
	return r.GetBook(ctx, book.ID)
}

// TransitionBook moves a book from one lifecycle state to another in a single
// conditional update. It reports false when the stored state is no longer from.
func (r *repository) TransitionBook(ctx context.Context, id string, from, to lifecycle.State) (bool, error) {
	set := stateColumns(to)
	set["updated_at"] = sq.Expr("now()")

	query, args, err := qb.Update(booksTableName).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Where(stateMatch(from)).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "TransitionBook")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "RowsAffected")
	}
	return n == 1, nil
}

func stateColumns(s lifecycle.State) map[string]interface{} {
	cols := map[string]interface{}{
		"status":      string(s.Status()),
		"borrowed_by": nil,
		"borrowed_at": nil,
		"due_date":    nil,
		"reserved_by": nil,
		"reserved_at": nil,
	}
	if loan, ok := s.Loan(); ok {
		cols["borrowed_by"] = loan.BorrowerID
		cols["borrowed_at"] = loan.BorrowedAt
		cols["due_date"] = loan.DueDate
	}
	if res, ok := s.Reservation(); ok {
		cols["reserved_by"] = res.ReserverID
		cols["reserved_at"] = res.ReservedAt
	}
	return cols
}

// stateMatch renders NULL holders as IS NULL, so the match is exact.
func stateMatch(s lifecycle.State) sq.Eq {
	match := sq.Eq{
		"status":      string(s.Status()),
		"borrowed_by": nil,
		"reserved_by": nil,
	}
	if id := s.BorrowerID(); id != "" {
		match["borrowed_by"] = id
	}
	if id := s.ReserverID(); id != "" {
		match["reserved_by"] = id
	}
	return match
}

func (r *repository) DeleteBook(ctx context.Context, id string) (model.Book, error) {
	query, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"id": id}).
		Suffix("returning id, title, image").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var deleted struct {
		ID    string `db:"id"`
		Title string `db:"title"`
		Image string `db:"image"`
	}
	if err := r.db.GetContext(ctx, &deleted, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.NotFound("book not found")
		}
		return model.Book{}, errors.Wrap(err, "DeleteBook")
	}
	return model.Book{ID: deleted.ID, Title: deleted.Title, Image: deleted.Image}, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error) {
	query, args, err := qb.Select("status", "count(*) as cnt").
		From(booksTableName).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "CountByStatus")
	}
	counts := map[lifecycle.Status]int{
		lifecycle.Available: 0,
		lifecycle.Borrowed:  0,
		lifecycle.Reserved:  0,
	}
	for _, row := range rows {
		counts[lifecycle.Status(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *repository) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	query, args, err := qb.Select("count(*)").
		From(booksTableName).
		Where(sq.NotEq{"borrowed_by": nil}).
		Where(sq.Lt{"due_date": now}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, errors.Wrap(err, "CountOverdue")
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

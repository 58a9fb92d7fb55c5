package model

import (
	"encoding/json"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/pkg/auth"
)

// DefaultImage is the cover reference of books created without an upload.
// It is shared by all such books and never released.
const DefaultImage = "default-book.png"

type UserRef struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
}

type Book struct {
	ID          string
	Title       string
	Author      string
	Year        int
	ISBN        *string
	Description string
	Image       string
	State       lifecycle.State
	CreatedBy   UserRef
	// Usernames of the loan and reservation holders, resolved on read.
	BorrowerName string
	ReserverName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type bookView struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Author      string           `json:"author"`
	Year        int              `json:"year"`
	Status      lifecycle.Status `json:"status"`
	ISBN        *string          `json:"isbn"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	BorrowedBy  *UserRef         `json:"borrowedBy"`
	BorrowedAt  *time.Time       `json:"borrowedAt"`
	DueDate     *time.Time       `json:"dueDate"`
	ReservedBy  *UserRef         `json:"reservedBy"`
	ReservedAt  *time.Time       `json:"reservedAt"`
	CreatedBy   UserRef          `json:"createdBy"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (b Book) MarshalJSON() ([]byte, error) {
	v := bookView{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Year:        b.Year,
		Status:      b.State.Status(),
		ISBN:        b.ISBN,
		Description: b.Description,
		Image:       b.Image,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if loan, ok := b.State.Loan(); ok {
		v.BorrowedBy = &UserRef{ID: loan.BorrowerID, Username: b.BorrowerName}
		v.BorrowedAt = &loan.BorrowedAt
		v.DueDate = &loan.DueDate
	}
	if r, ok := b.State.Reservation(); ok {
		v.ReservedBy = &UserRef{ID: r.ReserverID, Username: b.ReserverName}
		v.ReservedAt = &r.ReservedAt
	}
	return json.Marshal(v)
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password"`
	Role         auth.Role `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

func (u User) Actor() auth.Actor {
	return auth.Actor{ID: u.ID, Username: u.Username, Role: u.Role}
}

type CreateBookRequest struct {
	Title       string `json:"title" form:"title" validate:"required,max=200"`
	Author      string `json:"author" form:"author" validate:"required,max=100"`
	Year        int    `json:"year" form:"year" validate:"required,min=1000,maxyear"`
	ISBN        string `json:"isbn" form:"isbn" validate:"max=32"`
	Description string `json:"description" form:"description" validate:"max=1000"`
}

// UpdateBookRequest is a partial update: nil fields keep their stored value.
type UpdateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=100"`
	Year        *int    `json:"year" validate:"omitempty,min=1000,maxyear"`
	ISBN        *string `json:"isbn" validate:"omitempty,max=32"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type BorrowRequest struct {
	Days *int `json:"days" form:"days" validate:"omitempty,min=1,max=365"`
}

type RegisterRequest struct {
	Username string    `json:"username" validate:"required,min=3,max=50"`
	Password string    `json:"password" validate:"required,min=6,max=72"`
	Role     auth.Role `json:"role" validate:"omitempty,oneof=admin user"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Session struct {
	User      auth.Actor
	Token     string
	ExpiresAt time.Time
}

type EventType string

const (
	EventCreated              EventType = "created"
	EventUpdated              EventType = "updated"
	EventDeleted              EventType = "deleted"
	EventBorrowed             EventType = "borrowed"
	EventReturned             EventType = "returned"
	EventReserved             EventType = "reserved"
	EventReservationCancelled EventType = "reservation_cancelled"
)

type BookEvent struct {
	ID         string    `json:"id" db:"id"`
	BookID     string    `json:"bookId" db:"book_id"`
	Type       EventType `json:"type" db:"type"`
	ActorID    string    `json:"actorId" db:"actor_id"`
	OccurredAt time.Time `json:"occurredAt" db:"occurred_at"`
}

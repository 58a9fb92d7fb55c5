// Package lifecycle holds the book availability state machine.
//
// A book is exactly one of
//
//	Available
//	Borrowed{loan}
//	Reserved{reservation, prior loan or none}
//
// Transitions are pure functions returning the next state, so the caller can
// persist them with a conditional update keyed on the state it started from.
package lifecycle

import (
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
)

type Status string

const (
	Available Status = "available"
	Borrowed  Status = "borrowed"
	Reserved  Status = "reserved"
)

func (s Status) Valid() bool {
	switch s {
	case Available, Borrowed, Reserved:
		return true
	}
	return false
}

const (
	DefaultLoanDays = 14
	MaxLoanDays     = 365
)

type Loan struct {
	BorrowerID string
	BorrowedAt time.Time
	DueDate    time.Time
}

type Reservation struct {
	ReserverID string
	ReservedAt time.Time
}

// State is a book lifecycle state. The zero value is Available.
type State struct {
	status      Status
	loan        *Loan
	reservation *Reservation
}

func NewAvailable() State {
	return State{status: Available}
}

func NewBorrowed(loan Loan) State {
	return State{status: Borrowed, loan: &loan}
}

// NewReserved returns a reserved state; prior is the loan the reservation queues behind, if any.
func NewReserved(r Reservation, prior *Loan) State {
	s := State{status: Reserved, reservation: &r}
	if prior != nil {
		l := *prior
		s.loan = &l
	}
	return s
}

// Restore rebuilds a state from stored columns, rejecting combinations the
// state machine can never produce.
func Restore(status Status, loan *Loan, reservation *Reservation) (State, error) {
	switch status {
	case Available:
		if loan != nil || reservation != nil {
			return State{}, errs.Validation("available book carries loan or reservation data")
		}
		return NewAvailable(), nil
	case Borrowed:
		if loan == nil || reservation != nil {
			return State{}, errs.Validation("borrowed book must carry exactly a loan")
		}
		return NewBorrowed(*loan), nil
	case Reserved:
		if reservation == nil {
			return State{}, errs.Validation("reserved book without reservation")
		}
		return NewReserved(*reservation, loan), nil
	}
	return State{}, errs.Validation("unknown status %q", status)
}

func (s State) Status() Status {
	if s.status == "" {
		return Available
	}
	return s.status
}

// Loan returns the active loan. A reserved book may still carry the loan it was reserved behind.
func (s State) Loan() (Loan, bool) {
	if s.loan == nil {
		return Loan{}, false
	}
	return *s.loan, true
}

func (s State) Reservation() (Reservation, bool) {
	if s.reservation == nil {
		return Reservation{}, false
	}
	return *s.reservation, true
}

func (s State) BorrowerID() string {
	if s.loan == nil {
		return ""
	}
	return s.loan.BorrowerID
}

func (s State) ReserverID() string {
	if s.reservation == nil {
		return ""
	}
	return s.reservation.ReserverID
}

func (s State) Equal(o State) bool {
	if s.Status() != o.Status() {
		return false
	}
	l1, ok1 := s.Loan()
	l2, ok2 := o.Loan()
	if ok1 != ok2 || (ok1 && !loanEqual(l1, l2)) {
		return false
	}
	r1, ok1 := s.Reservation()
	r2, ok2 := o.Reservation()
	return ok1 == ok2 && (!ok1 || (r1.ReserverID == r2.ReserverID && r1.ReservedAt.Equal(r2.ReservedAt)))
}

func loanEqual(a, b Loan) bool {
	return a.BorrowerID == b.BorrowerID && a.BorrowedAt.Equal(b.BorrowedAt) && a.DueDate.Equal(b.DueDate)
}

func (s State) Borrow(borrowerID string, now time.Time, days int) (State, error) {
	if days < 1 || days > MaxLoanDays {
		return State{}, errs.Validation("loan days must be between 1 and %d", MaxLoanDays)
	}
	if s.Status() != Available {
		return State{}, errs.Conflict("book is not available for loan")
	}
	return NewBorrowed(Loan{
		BorrowerID: borrowerID,
		BorrowedAt: now,
		DueDate:    now.Add(time.Duration(days) * 24 * time.Hour),
	}), nil
}

func (s State) Return() (State, error) {
	if s.Status() != Borrowed {
		return State{}, errs.Conflict("book is not currently borrowed")
	}
	return NewAvailable(), nil
}

// Reserve queues reserverID behind the current loan. Free books are borrowed, not reserved.
func (s State) Reserve(reserverID string, now time.Time) (State, error) {
	switch s.Status() {
	case Reserved:
		return State{}, errs.Conflict("book is already reserved")
	case Available:
		return State{}, errs.Conflict("book is available, borrow it directly instead of reserving")
	}
	return NewReserved(Reservation{ReserverID: reserverID, ReservedAt: now}, s.loan), nil
}

// CancelReservation drops the reservation, falling back to the loan it was
// queued behind or to Available. ok is false when there was nothing to cancel.
func (s State) CancelReservation() (next State, ok bool) {
	if s.reservation == nil {
		return s, false
	}
	if s.loan != nil {
		return NewBorrowed(*s.loan), true
	}
	return NewAvailable(), true
}

// Overdue reports whether the active loan is past its due date at now.
func (s State) Overdue(now time.Time) bool {
	return s.loan != nil && now.After(s.loan.DueDate)
}

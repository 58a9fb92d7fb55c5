package model

import (
	"math"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// maxPage keeps Offset within int for any limit up to MaxLimit.
	maxPage = math.MaxInt32
)

type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortTitle     SortField = "title"
	SortAuthor    SortField = "author"
	SortYear      SortField = "year"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// BookQuery selects a page of the catalog.
type BookQuery struct {
	Page     int
	Limit    int
	Search   string
	Status   lifecycle.Status
	SortBy   SortField
	Order    SortOrder
	YearFrom *int
	YearTo   *int
}

// Normalize fills defaults and rejects unknown enum values. Non-positive page
// and limit fall back to their defaults; oversized ones are clamped.
func (q BookQuery) Normalize() (BookQuery, error) {
	switch {
	case q.Page < 1:
		q.Page = DefaultPage
	case q.Page > maxPage:
		q.Page = maxPage
	}
	switch {
	case q.Limit < 1:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Status != "" && !q.Status.Valid() {
		return BookQuery{}, errs.Validation("invalid status %q", q.Status)
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortCreatedAt
	case SortCreatedAt, SortTitle, SortAuthor, SortYear:
	default:
		return BookQuery{}, errs.Validation("invalid sortBy %q", q.SortBy)
	}
	switch q.Order {
	case "":
		q.Order = OrderDesc
	case OrderAsc, OrderDesc:
	default:
		return BookQuery{}, errs.Validation("invalid order %q", q.Order)
	}
	return q, nil
}

// EmptyRange reports a year range no book can satisfy.
func (q BookQuery) EmptyRange() bool {
	return q.YearFrom != nil && q.YearTo != nil && *q.YearFrom > *q.YearTo
}

func (q BookQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(q BookQuery, total int) Pagination {
	return Pagination{
		Page:  q.Page,
		Limit: q.Limit,
		Total: total,
		Pages: pageCount(total, q.Limit),
	}
}

func pageCount(total, limit int) int {
	if limit < 1 {
		return 0
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pages
}

type ListBooks struct {
	Items      []Book     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

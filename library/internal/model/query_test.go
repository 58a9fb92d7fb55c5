package model_test

import (
	"math"
	"testing"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestBookQuery_Normalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      model.BookQuery
		want    model.BookQuery
		wantErr bool
	}{
		{
			name: "defaults",
			in:   model.BookQuery{},
			want: model.BookQuery{Page: 1, Limit: 10, SortBy: model.SortCreatedAt, Order: model.OrderDesc},
		},
		{
			name: "negative paging clamped",
			in:   model.BookQuery{Page: -3, Limit: 0, SortBy: model.SortTitle, Order: model.OrderAsc},
			want: model.BookQuery{Page: 1, Limit: 10, SortBy: model.SortTitle, Order: model.OrderAsc},
		},
		{
			name: "kept",
			in:   model.BookQuery{Page: 3, Limit: 5, Status: "borrowed", SortBy: model.SortYear, Order: model.OrderDesc},
			want: model.BookQuery{Page: 3, Limit: 5, Status: "borrowed", SortBy: model.SortYear, Order: model.OrderDesc},
		},
		{
			name: "oversized paging clamped",
			in:   model.BookQuery{Page: math.MaxInt, Limit: math.MaxInt},
			want: model.BookQuery{Page: math.MaxInt32, Limit: model.MaxLimit, SortBy: model.SortCreatedAt, Order: model.OrderDesc},
		},
		{name: "bad status", in: model.BookQuery{Status: "lost"}, wantErr: true},
		{name: "bad sort", in: model.BookQuery{SortBy: "isbn"}, wantErr: true},
		{name: "bad order", in: model.BookQuery{Order: "up"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.in.Normalize()
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewPagination(t *testing.T) {
	t.Parallel()
	q := model.BookQuery{Page: 3, Limit: 10}
	require.Equal(t, model.Pagination{Page: 3, Limit: 10, Total: 25, Pages: 3}, model.NewPagination(q, 25))
	require.Equal(t, 0, model.NewPagination(q, 0).Pages)
	require.Equal(t, 2, model.NewPagination(q, 20).Pages)
	require.Equal(t, 20, q.Offset())
}

func TestNewPagination_LargeLimit(t *testing.T) {
	t.Parallel()
	require.Equal(t, 1, model.NewPagination(model.BookQuery{Page: 1, Limit: math.MaxInt}, 5).Pages)
	require.Equal(t, 0, model.NewPagination(model.BookQuery{Page: 1, Limit: math.MaxInt}, 0).Pages)
}

func TestBookQuery_OffsetAfterNormalize(t *testing.T) {
	t.Parallel()
	for _, in := range []model.BookQuery{
		{Page: 3, Limit: math.MaxInt/2 + 1},
		{Page: math.MaxInt, Limit: model.MaxLimit},
		{Page: math.MaxInt, Limit: math.MaxInt},
	} {
		q, err := in.Normalize()
		require.NoError(t, err)
		require.GreaterOrEqual(t, q.Offset(), 0, "page=%d limit=%d", in.Page, in.Limit)
		require.LessOrEqual(t, q.Limit, model.MaxLimit)
	}
}

func TestBookQuery_EmptyRange(t *testing.T) {
	t.Parallel()
	require.True(t, model.BookQuery{YearFrom: intPtr(2000), YearTo: intPtr(1990)}.EmptyRange())
	require.False(t, model.BookQuery{YearFrom: intPtr(1990), YearTo: intPtr(1990)}.EmptyRange())
	require.False(t, model.BookQuery{YearFrom: intPtr(2000)}.EmptyRange())
}

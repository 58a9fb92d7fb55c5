package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-catalog/library/internal/model"
)

type EventRepository interface {
	InsertEvent(ctx context.Context, event model.BookEvent) error
	ListEvents(ctx context.Context, bookID string) ([]model.BookEvent, error)
}

// InsertEvent is idempotent on the event id, so redelivered messages are harmless.
func (r *repository) InsertEvent(ctx context.Context, event model.BookEvent) error {
	var actor interface{}
	if event.ActorID != "" {
		actor = event.ActorID
	}
	query, args, err := qb.Insert(eventsTableName).
		Columns("id", "book_id", "type", "actor_id", "occurred_at").
		Values(event.ID, event.BookID, string(event.Type), actor, event.OccurredAt).
		Suffix("on conflict (id) do nothing").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "InsertEvent")
	}
	return nil
}

func (r *repository) ListEvents(ctx context.Context, bookID string) ([]model.BookEvent, error) {
	query, args, err := qb.Select("id", "book_id", "type", "coalesce(actor_id::text, '') as actor_id", "occurred_at").
		From(eventsTableName).
		Where(sq.Eq{"book_id": bookID}).
		OrderBy("occurred_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	events := make([]model.BookEvent, 0)
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, errors.Wrap(err, "ListEvents")
	}
	return events, nil
}

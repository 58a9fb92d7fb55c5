package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
}

var userColumns = []string{"id", "username", "password", "role", "created_at"}

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	query, args, err := qb.Insert(usersTableName).
		Columns("id", "username", "password", "role").
		Values(user.ID, user.Username, user.PasswordHash, string(user.Role)).
		Suffix("returning created_at").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.DuplicateKey("user already exists")
		}
		r.log.Error("CreateUser", zap.String("q", query), zap.Error(err))
		return model.User{}, errors.Wrap(err, "CreateUser")
	}
	return user, nil
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"username": username})
}

func (r *repository) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"id": id})
}

func (r *repository) getUser(ctx context.Context, pred sq.Eq) (model.User, error) {
	query, args, err := qb.Select(userColumns...).
		From(usersTableName).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.NotFound("user not found")
		}
		return model.User{}, errors.Wrap(err, "getUser")
	}
	return user, nil
}

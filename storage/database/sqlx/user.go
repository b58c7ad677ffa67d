package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolfin/core"
	"github.com/trezcool/schoolfin/core/user"
)

const (
	usersTable    = "users"
	usersEmailKey = "users_email_key"
	userColumns   = "id, name, email, role, password_hash, is_active, last_login, created_at, updated_at"
)

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	PasswordHash []byte    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	LastLogin    null.Time `db:"last_login"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type userRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DBExecutor) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) unboil(row userRow) user.User {
	lastLogin := row.LastLogin
	if lastLogin.Valid {
		lastLogin.Time = lastLogin.Time.UTC()
	}
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		LastLogin:    lastLogin,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (repo userRepository) trapWriteErr(err error, msg string) error {
	if isConstraintErr(err, pqUniqueViolation, usersEmailKey) {
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) getUser(ctx context.Context, where sq.Eq) (user.User, error) {
	query, args, err := psql.Select(userColumns).From(usersTable).Where(where).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user query")
	}
	var row userRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	query, args, err := psql.Insert(usersTable).
		Columns("id", "name", "email", "role", "password_hash", "is_active", "last_login", "created_at", "updated_at").
		Values(usr.ID, usr.Name, usr.Email, usr.Role, usr.PasswordHash, usr.IsActive, usr.LastLogin, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, repo.trapWriteErr(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"email": email})
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	query, args, err := psql.Update(usersTable).
		SetMap(map[string]interface{}{
			"name":          usr.Name,
			"email":         usr.Email,
			"role":          usr.Role,
			"password_hash": usr.PasswordHash,
			"is_active":     usr.IsActive,
			"last_login":    usr.LastLogin,
			"updated_at":    usr.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": usr.ID}).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building user update")
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, repo.trapWriteErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/safeher/apiserver/types"
)

const selectUser = `
	SELECT id, email, full_name, role, is_active, password_hash, created_at
	FROM users`

// UserRepository handles persistence for users.
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: utcNow}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

// GetByEmail looks up a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getOne(ctx, selectUser+` WHERE email = $1`, types.NormalizeEmail(email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Email = types.NormalizeEmail(user.Email)
	user.CreatedAt = r.now()

	const query = `
		INSERT INTO users (email, full_name, role, is_active, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.FullName,
		user.Role,
		user.IsActive,
		user.PasswordHash,
		user.CreatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// SetActive toggles the activation flag. It is the only write path for an
// existing user; the role is never rewritten here.
func (r *UserRepository) SetActive(ctx context.Context, id int, active bool) (types.User, error) {
	const query = `
		UPDATE users
		SET is_active = $1
		WHERE id = $2
		RETURNING id, email, full_name, role, is_active, password_hash, created_at`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, active, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func scanUser(s scanner) (types.User, error) {
	var user types.User
	err := s.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.IsActive,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Signal/internal/core"
	"github.com/dkeye/Signal/internal/domain"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// Users is the SQL user directory.
type Users struct {
	db *DB
}

var _ core.UserDirectory = (*Users)(nil)

func NewUsers(db *DB) *Users {
	return &Users{db: db}
}

// UserPatch carries the optional fields of an update.
type UserPatch struct {
	Name        *string
	DeviceToken *string
}

func (u *Users) FindUserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := u.db.db.QueryRowContext(ctx, u.db.q(
		`SELECT user_id, device_token, name FROM users WHERE user_id = ?`), string(id))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return user, nil
}

// ListUsers returns every user except the given ids, ordered by id.
func (u *Users) ListUsers(ctx context.Context, except []domain.UserID) ([]domain.User, error) {
	query := `SELECT user_id, device_token, name FROM users`
	args := make([]any, 0, len(except))
	if len(except) > 0 {
		marks := make([]string, len(except))
		for i, id := range except {
			marks[i] = "?"
			args = append(args, string(id))
		}
		query += ` WHERE user_id NOT IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY user_id`

	rows, err := u.db.db.QueryContext(ctx, u.db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}

func (u *Users) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	_, err := u.db.db.ExecContext(ctx, u.db.q(
		`INSERT INTO users (user_id, device_token, name) VALUES (?, ?, ?)`),
		string(user.ID), nullString(user.DeviceToken), nullString(user.Name))
	if err != nil {
		if u.db.dialect.classify(err) == classUnique {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, user.ID)
		}
		return nil, fmt.Errorf("create user %s: %w", user.ID, err)
	}
	return &user, nil
}

func (u *Users) UpdateUser(ctx context.Context, id domain.UserID, patch UserPatch) (*domain.User, error) {
	var updated *domain.User
	err := u.db.inTx(ctx, func(tx *sql.Tx) error {
		user, err := scanUser(tx.QueryRowContext(ctx, u.db.q(
			`SELECT user_id, device_token, name FROM users WHERE user_id = ?`+u.db.dialect.lockSuffix()), string(id)))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if err := user.SetUsername(*patch.Name); err != nil {
				return err
			}
		}
		if patch.DeviceToken != nil {
			if err := user.SetDeviceToken(*patch.DeviceToken); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, u.db.q(
			`UPDATE users SET device_token = ?, name = ? WHERE user_id = ?`),
			nullString(user.DeviceToken), nullString(user.Name), string(id)); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		id          string
		deviceToken sql.NullString
		name        sql.NullString
	)
	if err := s.Scan(&id, &deviceToken, &name); err != nil {
		return nil, err
	}
	return &domain.User{ID: domain.UserID(id), DeviceToken: deviceToken.String, Name: name.String}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

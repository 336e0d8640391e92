package store

import (
	"context"
	"database/sql"
	"errors"

	"example.com/pixsoul/internal/models"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// --- User operations ---

// CreateUser inserts a new account. A duplicate username or email surfaces
// as models.ErrConflict via the unique constraints on the users table.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash, profileImage string) (int, error) {
	var id int
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (username, email, password_hash, profile_image)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		username, email, passwordHash, profileImage,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, models.ErrConflict
		}
		logg.Error("store", "Failed to create user", err)
		return 0, err
	}

	logg.Info("store", "User created successfully (username anonymized)")
	return id, nil
}

// GetUserByEmail returns the account for an email address, or
// models.ErrNotFound if no such account exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, username, email, password_hash, profile_image, created_at
		FROM users WHERE email = $1`,
		email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}
		logg.Error("store", "Failed to query user by email", err)
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, username, email, password_hash, profile_image, created_at
		FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}
		logg.Error("store", "Failed to query user by id", err)
		return models.User{}, err
	}
	return u, nil
}

// UpdatePassword replaces the stored hash for the account with the given email.
func (s *Store) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE email = $2`,
		passwordHash, email,
	)
	if err != nil {
		logg.Error("store", "Failed to update password", err)
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrNotFound
	}

	logg.Info("store", "Password updated (email anonymized)")
	return nil
}

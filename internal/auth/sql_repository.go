package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SQLRepository implements Repository on SQLite or PostgreSQL through sqlx.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a new SQLRepository.
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// GetUser looks up a user by subject identifier.
func (r *SQLRepository) GetUser(ctx context.Context, id string) (*User, error) {
	query := r.db.Rebind(`
		SELECT id, name, email, COALESCE(profile_pic, '') AS profile_pic, created_at
		FROM users
		WHERE id = ?
	`)

	var user User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// UpsertUser inserts the user or overwrites the profile of the existing row in
// a single statement, so concurrent callbacks for the same id end up
// last-write-wins without a read-then-write window.
func (r *SQLRepository) UpsertUser(ctx context.Context, user User) (err error) {
	query := r.db.Rebind(`
		INSERT INTO users (id, name, email, profile_pic)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name, email = excluded.email, profile_pic = excluded.profile_pic
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.ProfilePic); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrEmailTaken, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// isUniqueViolation reports a unique constraint failure from either driver.
// The id conflict is absorbed by ON CONFLICT, so the email index is the only
// constraint that can still fire.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

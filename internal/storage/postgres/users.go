package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage"
)

// UserDirectory reads the auth-owned users table. This service never
// writes to it.
type UserDirectory struct {
	db *sql.DB
}

// NewUserDirectory shares the message store's connection pool.
func NewUserDirectory(s *MessageStore) *UserDirectory {
	return &UserDirectory{db: s.db}
}

func (d *UserDirectory) List(ctx context.Context, excludeID string) ([]models.User, error) {
	query := `
		SELECT id, name, COALESCE(avatar_url, '')
		FROM users
		WHERE id <> $1
		ORDER BY name ASC
	`
	rows, err := d.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

func (d *UserDirectory) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(avatar_url, '') FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	prefs, err := json.Marshal(orEmptyMap(u.Preferences))
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, preferences, tier, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.DisplayName, string(prefs), string(u.Tier), formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", u.Username, err)
	}
	return nil
}

// GetUser fetches a user by id. Returns ErrNotFound if absent.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, preferences, tier, created_at
		 FROM users WHERE id = ?`, id))
}

// GetUserByUsername fetches a user by username. Returns ErrNotFound if absent.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, preferences, tier, created_at
		 FROM users WHERE username = ?`, username))
}

// UpdateUser updates mutable profile fields.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	prefs, err := json.Marshal(orEmptyMap(u.Preferences))
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, preferences = ?, tier = ? WHERE id = ?`,
		u.DisplayName, string(prefs), string(u.Tier), u.ID)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var prefs, tier, createdAt string
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &prefs, &tier, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	if err := json.Unmarshal([]byte(prefs), &u.Preferences); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	u.Tier = domain.Tier(tier)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &u, nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CustomerByEmail looks up a customer account. Email matching is
// case-insensitive (enforced by the column collation).
func (s *Store) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, COALESCE(favorite_genres, '[]'),
		       shipping_address IS NOT NULL, created_at
		FROM customers WHERE email = ?`, email)

	var (
		c         Customer
		genresRaw string
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Email, &c.Name, &genresRaw, &c.HasShippingAddress, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}

	if err := json.Unmarshal([]byte(genresRaw), &c.FavoriteGenres); err != nil {
		c.FavoriteGenres = nil
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// OrderCount returns the number of orders a customer has placed.
func (s *Store) OrderCount(ctx context.Context, customerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE customer_id = ?`, customerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// parseTime handles the timestamp formats SQLite hands back. Zero time
// on failure; callers treat that as "unknown".
func parseTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

package store

import (
	"context"
	"fmt"
	"strings"
)

// SearchBooks matches title or author against query (case-insensitive
// substring), optionally filtered by genre, capped at limit.
func (s *Store) SearchBooks(ctx context.Context, query, genre string, limit int) ([]Book, error) {
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `
		SELECT id, title, author, genre, price, rating, description, stock_quantity
		FROM books
		WHERE (title LIKE ? COLLATE NOCASE OR author LIKE ? COLLATE NOCASE)`
	pattern := "%" + query + "%"
	args := []any{pattern, pattern}

	if genre != "" {
		sqlQuery += ` AND genre = ?`
		args = append(args, genre)
	}
	sqlQuery += ` LIMIT ?`
	args = append(args, limit)

	return s.queryBooks(ctx, sqlQuery, args...)
}

// Recommendations returns in-stock books the customer has not bought,
// ordered by rating. An explicit genre filter wins; otherwise the
// customer's favorite genres (when known) narrow the pool. The second
// return value is the favorite-genre list the result was based on
// (nil when the email was unknown or the customer has no favorites).
func (s *Store) Recommendations(ctx context.Context, email, genre string, limit int) ([]Book, []string, error) {
	if limit <= 0 {
		limit = 5
	}

	var favoriteGenres []string
	var customerID int64

	if email != "" {
		customer, err := s.CustomerByEmail(ctx, email)
		if err == nil {
			favoriteGenres = customer.FavoriteGenres
			customerID = customer.ID
		}
		// Unknown email is not an error here: recommendations fall
		// back to popular books.
	}

	sqlQuery := `
		SELECT id, title, author, genre, price, rating, description, stock_quantity
		FROM books WHERE stock_quantity > 0`
	var args []any

	if customerID != 0 {
		sqlQuery += ` AND id NOT IN (
			SELECT i.book_id FROM order_items i
			JOIN orders o ON o.id = i.order_id
			WHERE o.customer_id = ?)`
		args = append(args, customerID)
	}

	switch {
	case genre != "":
		sqlQuery += ` AND genre = ?`
		args = append(args, genre)
	case len(favoriteGenres) > 0:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(favoriteGenres)), ",")
		sqlQuery += ` AND genre IN (` + placeholders + `)`
		for _, g := range favoriteGenres {
			args = append(args, g)
		}
	}

	sqlQuery += ` ORDER BY rating DESC LIMIT ?`
	args = append(args, limit)

	books, err := s.queryBooks(ctx, sqlQuery, args...)
	if err != nil {
		return nil, nil, err
	}
	return books, favoriteGenres, nil
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Price,
			&b.Rating, &b.Description, &b.StockQuantity); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

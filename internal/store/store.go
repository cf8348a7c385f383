// Package store is the SQLite-backed data-access layer for the support
// agent: catalog, customers, orders, policies, support tickets, and the
// analytics tables. Every lookup returns either a typed result or a
// typed error; nothing above this package sees SQL.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver for database/sql
)

// Sentinel errors returned by lookups and mutations. Handlers map
// these to the structured payloads the model sees.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailMismatch means the supplied email does not match the
	// record's owner.
	ErrEmailMismatch = errors.New("email does not match")

	// ErrReturnAlreadyRequested means a return was already initiated
	// for the order. Detecting this is what makes InitiateReturn
	// idempotent-safe: a duplicate call reports it instead of issuing
	// a second refund.
	ErrReturnAlreadyRequested = errors.New("return already requested")
)

// NotReturnableError reports an order whose status does not allow a
// return (only delivered orders can be returned).
type NotReturnableError struct {
	Status string
}

func (e *NotReturnableError) Error() string {
	return fmt.Sprintf("order status is %q, only delivered orders can be returned", e.Status)
}

// ReturnWindowError reports an order delivered too long ago.
type ReturnWindowError struct {
	DaysSinceDelivery int
}

func (e *ReturnWindowError) Error() string {
	return fmt.Sprintf("delivered %d days ago, outside the 30-day return window", e.DaysSinceDelivery)
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		name TEXT NOT NULL,
		favorite_genres TEXT,                  -- JSON array of genre strings
		shipping_address TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		genre TEXT NOT NULL,
		price REAL NOT NULL,
		rating REAL NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		stock_quantity INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_books_genre ON books(genre);

	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_number TEXT NOT NULL UNIQUE COLLATE NOCASE,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		status TEXT NOT NULL,                  -- pending, processing, shipped, delivered, returned, cancelled
		total_amount REAL NOT NULL,
		order_date TIMESTAMP NOT NULL,
		shipping_method TEXT,
		tracking_number TEXT,
		carrier TEXT,
		estimated_delivery TIMESTAMP,
		shipped_date TIMESTAMP,
		delivered_date TIMESTAMP,
		return_requested BOOLEAN NOT NULL DEFAULT FALSE,
		return_reason TEXT,
		return_approved BOOLEAN NOT NULL DEFAULT FALSE,
		refund_amount REAL,
		refund_processed BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, order_date);

	CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		book_id INTEGER NOT NULL REFERENCES books(id),
		quantity INTEGER NOT NULL,
		price_per_unit REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS policies (
		policy_type TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		last_updated TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS support_tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_number TEXT NOT NULL UNIQUE,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		category TEXT NOT NULL,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		session_id TEXT,
		user_email TEXT,
		timestamp TIMESTAMP NOT NULL,
		metadata TEXT                          -- JSON object
	);
	CREATE INDEX IF NOT EXISTS idx_analytics_events_session ON analytics_events(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS conversation_analytics (
		session_id TEXT PRIMARY KEY,
		user_email TEXT,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		message_count INTEGER NOT NULL DEFAULT 0,
		tool_count INTEGER NOT NULL DEFAULT 0,
		tools_used TEXT NOT NULL DEFAULT '[]', -- JSON array of tool names
		sentiment TEXT NOT NULL DEFAULT 'neutral',
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		escalated BOOLEAN NOT NULL DEFAULT FALSE
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

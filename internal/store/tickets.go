package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PolicyByType fetches an official policy document by its type key
// (return, refund, shipping, privacy, payment, account).
func (s *Store) PolicyByType(ctx context.Context, policyType string) (*Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT policy_type, title, content, last_updated
		FROM policies WHERE policy_type = ?`, policyType)

	var (
		p           Policy
		lastUpdated string
	)
	err := row.Scan(&p.PolicyType, &p.Title, &p.Content, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query policy: %w", err)
	}
	p.LastUpdated = parseTime(lastUpdated)
	return &p, nil
}

// CreateTicket opens a support ticket for an existing customer.
// Returns ErrNotFound when no account matches the email.
func (s *Store) CreateTicket(ctx context.Context, email, category, subject, description, priority string) (*Ticket, error) {
	customer, err := s.CustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ticket := &Ticket{
		TicketNumber: "TKT-" + now.Format("20060102150405"),
		Category:     category,
		Subject:      subject,
		Priority:     priority,
		Status:       "open",
		CreatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO support_tickets
			(ticket_number, customer_id, category, subject, description, priority, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.TicketNumber, customer.ID, category, subject, description,
		priority, ticket.Status, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return ticket, nil
}

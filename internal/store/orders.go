package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const orderColumns = `
	o.id, o.order_number, c.email, c.name, o.status, o.total_amount,
	o.order_date, COALESCE(o.shipping_method, ''), COALESCE(o.tracking_number, ''),
	COALESCE(o.carrier, ''), o.estimated_delivery, o.shipped_date, o.delivered_date,
	o.return_requested, o.return_approved, COALESCE(o.refund_amount, 0)`

// OrderByNumber fetches one order with its line items. The order
// number comparison is case-insensitive.
func (s *Store) OrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.order_number = ?`, strings.ToUpper(orderNumber))

	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// OrdersByEmail returns all of a customer's orders, newest first,
// with line items loaded. Returns ErrNotFound when no account exists
// for the email (an account with zero orders returns an empty slice).
func (s *Store) OrdersByEmail(ctx context.Context, email string) ([]*Order, error) {
	if _, err := s.CustomerByEmail(ctx, email); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE c.email = ?
		ORDER BY o.order_date DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for _, order := range orders {
		if err := s.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// InitiateReturn runs the full return eligibility check and, when the
// order qualifies, marks it returned with a full refund in a single
// transaction. A second call for the same order fails with
// ErrReturnAlreadyRequested rather than refunding twice.
func (s *Store) InitiateReturn(ctx context.Context, orderNumber, reason, email string) (*Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.order_number = ?`, strings.ToUpper(orderNumber))

	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(order.CustomerEmail, email) {
		return nil, ErrEmailMismatch
	}
	if order.ReturnRequested {
		return nil, ErrReturnAlreadyRequested
	}
	if order.Status != StatusDelivered {
		return nil, &NotReturnableError{Status: order.Status}
	}
	if order.DeliveredDate != nil {
		days := int(time.Since(*order.DeliveredDate).Hours() / 24)
		if days > ReturnWindowDays {
			return nil, &ReturnWindowError{DaysSinceDelivery: days}
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET
			return_requested = TRUE,
			return_reason = ?,
			return_approved = TRUE,
			status = ?,
			refund_amount = total_amount,
			refund_processed = TRUE
		WHERE id = ?`, reason, StatusReturned, order.ID)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	order.ReturnRequested = true
	order.ReturnApproved = true
	order.Status = StatusReturned
	order.RefundAmount = order.TotalAmount
	return order, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanOrder.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var (
		o                           Order
		orderDate                   string
		estDelivery, shipped, deliv sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerEmail, &o.CustomerName, &o.Status,
		&o.TotalAmount, &orderDate, &o.ShippingMethod, &o.TrackingNumber,
		&o.Carrier, &estDelivery, &shipped, &deliv,
		&o.ReturnRequested, &o.ReturnApproved, &o.RefundAmount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.OrderDate = parseTime(orderDate)
	o.EstimatedDelivery = nullTime(estDelivery)
	o.ShippedDate = nullTime(shipped)
	o.DeliveredDate = nullTime(deliv)
	return &o, nil
}

func nullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Store) loadItems(ctx context.Context, order *Order) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.title, b.author, i.quantity, i.price_per_unit
		FROM order_items i JOIN books b ON b.id = i.book_id
		WHERE i.order_id = ?
		ORDER BY i.id`, order.ID)
	if err != nil {
		return fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.Title, &item.Author, &item.Quantity, &item.PricePerUnit); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

package store

import (
	"context"
	"fmt"
	"time"
)

// Genre values used by the catalog.
var Genres = []string{
	"Fiction", "Sci-Fi", "Mystery", "Romance", "Self-Help",
	"Biography", "History", "Business", "Fantasy", "Thriller",
}

// Seed loads the demo dataset: a small catalog, customer accounts with
// preferences, orders in every lifecycle state, and policy documents.
// Idempotent: a database that already has customers is left alone.
func (s *Store) Seed(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return fmt.Errorf("check seed: %w", err)
	}
	if n > 0 {
		return nil
	}

	now := time.Now().UTC()
	ts := func(daysAgo int) string { return now.AddDate(0, 0, -daysAgo).Format(time.RFC3339) }

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	books := []struct {
		title, author, genre, desc string
		price, rating              float64
		stock                      int
	}{
		{"The Silent Keeper", "Sarah Mitchell", "Fiction", "A quiet librarian discovers a hidden archive that rewrites her town's history.", 14.99, 4.6, 42},
		{"Quantum Horizon", "James Chen", "Sci-Fi", "First contact arrives not from the stars but from a parallel branch of time.", 16.99, 4.8, 31},
		{"Death in Rivermouth", "Arthur Conan Doyle", "Mystery", "A coastal village, a missing lighthouse keeper, and a detective out of his depth.", 12.49, 4.3, 25},
		{"Summer Letters", "Elena Rodriguez", "Romance", "Two pen pals agree to meet after twenty years of letters.", 11.99, 4.1, 57},
		{"The Deep Work Habit", "Aisha Patel", "Self-Help", "Practical systems for reclaiming attention in a distracted age.", 18.99, 4.5, 64},
		{"Becoming Alexander", "Michael O'Brien", "Biography", "The unlikely rise of a dockworker who rebuilt a city's harbor.", 21.99, 4.7, 18},
		{"Empires of Salt", "Thomas Anderson", "History", "How the salt trade shaped three continents.", 24.99, 4.4, 12},
		{"The Mars Protocol", "Jennifer Lee", "Sci-Fi", "A terraforming crew finds the previous mission never left.", 15.99, 4.2, 0},
		{"Shadows of the Old Court", "Emma Thompson", "Fantasy", "A cartographer maps a kingdom that refuses to stay still.", 17.49, 4.9, 38},
		{"The Glass Ledger", "David Kim", "Thriller", "A forensic accountant uncovers a bank inside a bank.", 13.99, 4.0, 29},
		{"Whispers of the Tide", "Mary Shelley", "Fiction", "Linked stories from a fishing town across four generations.", 10.99, 3.9, 44},
		{"Atomic Focus", "Lisa Wang", "Self-Help", "Small rituals that compound into lasting change.", 19.99, 4.6, 71},
	}
	for _, b := range books {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO books (title, author, genre, price, rating, description, stock_quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.title, b.author, b.genre, b.price, b.rating, b.desc, b.stock); err != nil {
			return fmt.Errorf("seed books: %w", err)
		}
	}

	customers := []struct {
		email, name, genres, address string
		createdDaysAgo               int
	}{
		{"sarah.johnson@email.com", "Sarah Johnson", `["Fiction","Mystery"]`, `123 Main Street, Boston, MA 02101`, 365},
		{"mike.chen@email.com", "Mike Chen", `["Sci-Fi","Fantasy"]`, `44 Pine Ave, Seattle, WA 98101`, 290},
		{"emily.davis@email.com", "Emily Davis", `["Romance"]`, ``, 120},
		{"alex.rivera@email.com", "Alex Rivera", `[]`, `9 Harbor Rd, Miami, FL 33101`, 30},
	}
	for _, c := range customers {
		var addr any
		if c.address != "" {
			addr = c.address
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO customers (email, name, favorite_genres, shipping_address, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			c.email, c.name, c.genres, addr, ts(c.createdDaysAgo)); err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}
	}

	// Orders cover every status the tools care about: delivered inside
	// and outside the return window, shipped, processing, and returned.
	orders := []struct {
		number, email, status         string
		total                         float64
		orderedDaysAgo                int
		shippedDaysAgo, delivDaysAgo  int // 0 = NULL
		tracking, carrier, shipMethod string
		items                         []struct {
			bookID int64
			qty    int
			price  float64
		}
	}{
		{"ORD-2024-00001", "sarah.johnson@email.com", StatusDelivered, 26.98, 20, 18, 14,
			"1Z999AA10123456784", "UPS", "standard",
			[]struct {
				bookID int64
				qty    int
				price  float64
			}{{1, 1, 14.99}, {11, 1, 10.99}}},
		{"ORD-2024-00002", "sarah.johnson@email.com", StatusShipped, 12.49, 6, 3, 0,
			"9400110200881234567890", "USPS", "standard",
			[]struct {
				bookID int64
				qty    int
				price  float64
			}{{3, 1, 12.49}}},
		{"ORD-2024-00003", "mike.chen@email.com", StatusDelivered, 33.98, 90, 88, 84,
			"1Z999AA10123456790", "UPS", "express",
			[]struct {
				bookID int64
				qty    int
				price  float64
			}{{2, 2, 16.99}}},
		{"ORD-2024-00004", "emily.davis@email.com", StatusProcessing, 11.99, 1, 0, 0,
			"", "", "standard",
			[]struct {
				bookID int64
				qty    int
				price  float64
			}{{4, 1, 11.99}}},
	}
	for _, o := range orders {
		var custID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM customers WHERE email = ?`, o.email).Scan(&custID); err != nil {
			return fmt.Errorf("seed orders: lookup %s: %w", o.email, err)
		}

		var shipped, delivered, estimated any
		if o.shippedDaysAgo > 0 {
			shipped = ts(o.shippedDaysAgo)
			estimated = ts(o.shippedDaysAgo - 5)
		}
		if o.delivDaysAgo > 0 {
			delivered = ts(o.delivDaysAgo)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO orders (order_number, customer_id, status, total_amount, order_date,
				shipping_method, tracking_number, carrier, estimated_delivery, shipped_date, delivered_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.number, custID, o.status, o.total, ts(o.orderedDaysAgo),
			o.shipMethod, o.tracking, o.carrier, estimated, shipped, delivered)
		if err != nil {
			return fmt.Errorf("seed orders: %w", err)
		}
		orderID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("seed orders: %w", err)
		}

		for _, item := range o.items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, book_id, quantity, price_per_unit)
				VALUES (?, ?, ?, ?)`,
				orderID, item.bookID, item.qty, item.price); err != nil {
				return fmt.Errorf("seed order items: %w", err)
			}
		}
	}

	policies := []struct{ ptype, title, content string }{
		{"return", "Return Policy",
			"Items may be returned within 30 days of delivery for a full refund. Books must be in resellable condition. A prepaid return label is provided by email once a return is approved."},
		{"refund", "Refund Policy",
			"Refunds are issued to the original payment method within 5-7 business days after the returned items are received and inspected."},
		{"shipping", "Shipping Policy",
			"Standard shipping takes 5-7 business days. Express shipping takes 2-3 business days. Orders over $35 ship free with standard shipping."},
		{"privacy", "Privacy Policy",
			"We collect only the information needed to fulfill orders and personalize recommendations. We never sell customer data to third parties."},
		{"payment", "Payment Policy",
			"We accept major credit cards and PayPal. Payment is captured when the order ships, not when it is placed."},
		{"account", "Account Policy",
			"Accounts are free. You may request deletion of your account and associated data at any time through support."},
	}
	for _, p := range policies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO policies (policy_type, title, content, last_updated)
			VALUES (?, ?, ?, ?)`,
			p.ptype, p.title, p.content, ts(60)); err != nil {
			return fmt.Errorf("seed policies: %w", err)
		}
	}

	return tx.Commit()
}

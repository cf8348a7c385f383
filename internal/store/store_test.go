package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return s
}

func TestSeedIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	orders, err := s.OrdersByEmail(ctx, "sarah.johnson@email.com")
	if err != nil {
		t.Fatalf("OrdersByEmail: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("orders = %d, want 2 (seed must not duplicate)", len(orders))
	}
}

func TestOrderByNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	order, err := s.OrderByNumber(ctx, "ord-2024-00001") // lowercase on purpose
	if err != nil {
		t.Fatalf("OrderByNumber: %v", err)
	}

	if order.OrderNumber != "ORD-2024-00001" {
		t.Errorf("OrderNumber = %q", order.OrderNumber)
	}
	if order.Status != StatusDelivered {
		t.Errorf("Status = %q", order.Status)
	}
	if order.CustomerEmail != "sarah.johnson@email.com" {
		t.Errorf("CustomerEmail = %q", order.CustomerEmail)
	}
	if order.TrackingNumber != "1Z999AA10123456784" || order.Carrier != "UPS" {
		t.Errorf("tracking = %q via %q", order.TrackingNumber, order.Carrier)
	}
	if len(order.Items) != 2 {
		t.Errorf("items = %d, want 2", len(order.Items))
	}
	if order.DeliveredDate == nil {
		t.Error("DeliveredDate is nil for a delivered order")
	}
}

func TestOrderByNumberNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.OrderByNumber(context.Background(), "ORD-9999-99999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOrdersByEmailUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	_, err := s.OrdersByEmail(context.Background(), "nobody@email.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOrdersByEmailNewestFirst(t *testing.T) {
	s := newTestStore(t)
	orders, err := s.OrdersByEmail(context.Background(), "sarah.johnson@email.com")
	if err != nil {
		t.Fatalf("OrdersByEmail: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders = %d", len(orders))
	}
	if orders[0].OrderNumber != "ORD-2024-00002" {
		t.Errorf("first order = %s, want the newer ORD-2024-00002", orders[0].OrderNumber)
	}
}

func TestInitiateReturn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	order, err := s.InitiateReturn(ctx, "ORD-2024-00001", "changed my mind", "sarah.johnson@email.com")
	if err != nil {
		t.Fatalf("InitiateReturn: %v", err)
	}

	if order.Status != StatusReturned || !order.ReturnRequested || !order.ReturnApproved {
		t.Errorf("order after return = %+v", order)
	}
	if order.RefundAmount != order.TotalAmount {
		t.Errorf("RefundAmount = %v, want full %v", order.RefundAmount, order.TotalAmount)
	}

	// Second attempt must not refund again.
	_, err = s.InitiateReturn(ctx, "ORD-2024-00001", "again", "sarah.johnson@email.com")
	if !errors.Is(err, ErrReturnAlreadyRequested) {
		t.Errorf("second return err = %v, want ErrReturnAlreadyRequested", err)
	}
}

func TestInitiateReturnEmailMismatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InitiateReturn(context.Background(), "ORD-2024-00001", "reason", "mike.chen@email.com")
	if !errors.Is(err, ErrEmailMismatch) {
		t.Errorf("err = %v, want ErrEmailMismatch", err)
	}
}

func TestInitiateReturnNotDelivered(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InitiateReturn(context.Background(), "ORD-2024-00002", "reason", "sarah.johnson@email.com")

	var notReturnable *NotReturnableError
	if !errors.As(err, &notReturnable) {
		t.Fatalf("err = %v, want NotReturnableError", err)
	}
	if notReturnable.Status != StatusShipped {
		t.Errorf("Status = %q, want shipped", notReturnable.Status)
	}
}

func TestInitiateReturnOutsideWindow(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InitiateReturn(context.Background(), "ORD-2024-00003", "reason", "mike.chen@email.com")

	var window *ReturnWindowError
	if !errors.As(err, &window) {
		t.Fatalf("err = %v, want ReturnWindowError", err)
	}
	if window.DaysSinceDelivery <= ReturnWindowDays {
		t.Errorf("DaysSinceDelivery = %d, want > %d", window.DaysSinceDelivery, ReturnWindowDays)
	}
}

func TestCustomerByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CustomerByEmail(ctx, "SARAH.JOHNSON@EMAIL.COM") // NOCASE
	if err != nil {
		t.Fatalf("CustomerByEmail: %v", err)
	}
	if c.Name != "Sarah Johnson" {
		t.Errorf("Name = %q", c.Name)
	}
	if len(c.FavoriteGenres) != 2 || c.FavoriteGenres[0] != "Fiction" {
		t.Errorf("FavoriteGenres = %v", c.FavoriteGenres)
	}
	if !c.HasShippingAddress {
		t.Error("HasShippingAddress = false, want true")
	}

	n, err := s.OrderCount(ctx, c.ID)
	if err != nil {
		t.Fatalf("OrderCount: %v", err)
	}
	if n != 2 {
		t.Errorf("OrderCount = %d, want 2", n)
	}
}

func TestCustomerWithoutAddress(t *testing.T) {
	s := newTestStore(t)
	c, err := s.CustomerByEmail(context.Background(), "emily.davis@email.com")
	if err != nil {
		t.Fatalf("CustomerByEmail: %v", err)
	}
	if c.HasShippingAddress {
		t.Error("HasShippingAddress = true, want false")
	}
}

func TestSearchBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	books, err := s.SearchBooks(ctx, "quantum", "", 10)
	if err != nil {
		t.Fatalf("SearchBooks: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Quantum Horizon" {
		t.Errorf("books = %+v", books)
	}

	// Author search, case-insensitive.
	books, err = s.SearchBooks(ctx, "SHELLEY", "", 10)
	if err != nil {
		t.Fatalf("SearchBooks: %v", err)
	}
	if len(books) != 1 || books[0].Author != "Mary Shelley" {
		t.Errorf("author search = %+v", books)
	}

	// Genre filter excludes non-matching titles.
	books, err = s.SearchBooks(ctx, "the", "Self-Help", 10)
	if err != nil {
		t.Fatalf("SearchBooks: %v", err)
	}
	for _, b := range books {
		if b.Genre != "Self-Help" {
			t.Errorf("genre filter leaked %q (%s)", b.Title, b.Genre)
		}
	}
}

func TestRecommendations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Known customer: favorites drive the result, purchases are excluded.
	books, favorites, err := s.Recommendations(ctx, "sarah.johnson@email.com", "", 5)
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(favorites) != 2 {
		t.Errorf("favorites = %v", favorites)
	}
	for _, b := range books {
		if b.Title == "The Silent Keeper" || b.Title == "Whispers of the Tide" {
			t.Errorf("recommended already-purchased book %q", b.Title)
		}
		if b.Genre != "Fiction" && b.Genre != "Mystery" {
			t.Errorf("recommendation outside favorites: %q (%s)", b.Title, b.Genre)
		}
	}

	// Explicit genre overrides favorites; out-of-stock excluded.
	books, _, err = s.Recommendations(ctx, "", "Sci-Fi", 5)
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	for _, b := range books {
		if b.Genre != "Sci-Fi" {
			t.Errorf("genre override leaked %q (%s)", b.Title, b.Genre)
		}
		if b.Title == "The Mars Protocol" {
			t.Error("recommended out-of-stock book")
		}
	}
}

func TestPolicyByType(t *testing.T) {
	s := newTestStore(t)
	p, err := s.PolicyByType(context.Background(), "return")
	if err != nil {
		t.Fatalf("PolicyByType: %v", err)
	}
	if p.Title != "Return Policy" {
		t.Errorf("Title = %q", p.Title)
	}

	if _, err := s.PolicyByType(context.Background(), "warranty"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown policy err = %v, want ErrNotFound", err)
	}
}

func TestCreateTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "sarah.johnson@email.com", "returns", "Late return", "Outside window", "high")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.TicketNumber == "" || ticket.Status != "open" {
		t.Errorf("ticket = %+v", ticket)
	}

	if _, err := s.CreateTicket(ctx, "nobody@email.com", "x", "y", "z", "low"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown email err = %v, want ErrNotFound", err)
	}
}

func TestAnalyticsLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sessionID := "sess-test-1"
	now := time.Now()
	if err := s.StartConversation(ctx, sessionID, "sarah.johnson@email.com", now); err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	// Reconnect with the same session id is a no-op.
	if err := s.StartConversation(ctx, sessionID, "sarah.johnson@email.com", now); err != nil {
		t.Fatalf("second StartConversation: %v", err)
	}

	if err := s.RecordMessage(ctx, sessionID, "positive"); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if err := s.RecordMessage(ctx, sessionID, ""); err != nil {
		t.Fatalf("RecordMessage neutral: %v", err)
	}
	if err := s.RecordToolUse(ctx, sessionID, "get_order_status", false); err != nil {
		t.Fatalf("RecordToolUse: %v", err)
	}
	if err := s.RecordToolUse(ctx, sessionID, "create_support_ticket", true); err != nil {
		t.Fatalf("RecordToolUse escalated: %v", err)
	}
	if err := s.EndConversation(ctx, sessionID, now); err != nil {
		t.Fatalf("EndConversation: %v", err)
	}

	var msgCount, toolCount int
	var sentiment, toolsUsed string
	var escalated bool
	err := s.db.QueryRowContext(ctx, `
		SELECT message_count, tool_count, sentiment, tools_used, escalated
		FROM conversation_analytics WHERE session_id = ?`, sessionID).
		Scan(&msgCount, &toolCount, &sentiment, &toolsUsed, &escalated)
	if err != nil {
		t.Fatalf("query rollup: %v", err)
	}

	if msgCount != 2 || toolCount != 2 {
		t.Errorf("counts = %d msgs / %d tools", msgCount, toolCount)
	}
	if sentiment != "positive" {
		t.Errorf("sentiment = %q (neutral must not overwrite)", sentiment)
	}
	if !escalated {
		t.Error("escalated = false, want true")
	}
	if toolsUsed != `["get_order_status","create_support_ticket"]` {
		t.Errorf("tools_used = %s", toolsUsed)
	}

	if err := s.InsertEvent(ctx, "topic_detected", sessionID, "", now, map[string]any{"topic": "order_inquiry"}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
}

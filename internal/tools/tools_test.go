package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bookly/bookly-support/internal/store"
)

func newTestBackend(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return s
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistryHasAllTools(t *testing.T) {
	r := newTestRegistry(t)
	want := []string{
		"get_order_status", "search_orders", "get_customer_info",
		"initiate_return", "get_policy_info", "get_recommendations",
		"search_books", "create_support_ticket",
	}

	defs := r.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("definitions = %d, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("defs[%d] = %q, want %q", i, defs[i].Name, name)
		}
		if !r.Has(name) {
			t.Errorf("Has(%q) = false", name)
		}
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	payload := r.Execute(context.Background(), newTestBackend(t), "launch_rocket", nil)
	if payload["error"] != "Unknown tool: launch_rocket" {
		t.Errorf("payload = %v", payload)
	}
}

func TestExecuteNilBackend(t *testing.T) {
	r := newTestRegistry(t)
	payload := r.Execute(context.Background(), nil, "get_order_status", map[string]any{"order_id": "ORD-2024-00001"})
	if payload["error"] != "Database session not available. Please try again in a moment." {
		t.Errorf("payload = %v", payload)
	}
}

func TestExecutePanicContainment(t *testing.T) {
	r := newTestRegistry(t)
	r.tools["explode"] = &Tool{
		Name: "explode",
		Handler: func(context.Context, *store.Store, map[string]any) (map[string]any, error) {
			panic("boom")
		},
	}

	payload := r.Execute(context.Background(), newTestBackend(t), "explode", nil)
	errMsg, _ := payload["error"].(string)
	if !strings.Contains(errMsg, "failed unexpectedly") {
		t.Errorf("payload = %v", payload)
	}
}

func TestGetOrderStatus(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
		check   func(t *testing.T, payload map[string]any)
	}{
		{
			name:    "no identifiers",
			args:    map[string]any{},
			wantErr: "Please provide either order_id or email",
		},
		{
			name:    "email only steers to search",
			args:    map[string]any{"email": "sarah.johnson@email.com"},
			wantErr: "Please provide the order number, or use search_orders to list all orders for this email.",
		},
		{
			name:    "unknown order",
			args:    map[string]any{"order_id": "ORD-9999-99999"},
			wantErr: "Order not found. Please verify the order number.",
		},
		{
			name:    "email mismatch",
			args:    map[string]any{"order_id": "ORD-2024-00001", "email": "mike.chen@email.com"},
			wantErr: "Email does not match this order. Please verify your information.",
		},
		{
			name: "found",
			args: map[string]any{"order_id": "ORD-2024-00001", "email": "sarah.johnson@email.com"},
			check: func(t *testing.T, payload map[string]any) {
				if payload["status"] != store.StatusDelivered {
					t.Errorf("status = %v", payload["status"])
				}
				if payload["tracking_number"] != "1Z999AA10123456784" {
					t.Errorf("tracking_number = %v", payload["tracking_number"])
				}
				items, _ := payload["items"].([]map[string]any)
				if len(items) != 2 {
					t.Errorf("items = %v", payload["items"])
				}
				if payload["delivered_date"] == nil {
					t.Error("delivered_date missing")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := r.Execute(ctx, backend, "get_order_status", tt.args)
			if tt.wantErr != "" {
				if payload["error"] != tt.wantErr {
					t.Errorf("error = %v, want %q", payload["error"], tt.wantErr)
				}
				return
			}
			if payload["error"] != nil {
				t.Fatalf("unexpected error: %v", payload["error"])
			}
			tt.check(t, payload)
		})
	}
}

func TestSearchOrders(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)
	ctx := context.Background()

	payload := r.Execute(ctx, backend, "search_orders", map[string]any{})
	if payload["error"] != "Email is required to search orders" {
		t.Errorf("missing email: %v", payload)
	}

	payload = r.Execute(ctx, backend, "search_orders", map[string]any{"email": "nobody@email.com"})
	if payload["error"] != "No account found with email nobody@email.com" {
		t.Errorf("unknown account: %v", payload)
	}

	payload = r.Execute(ctx, backend, "search_orders", map[string]any{"email": "sarah.johnson@email.com"})
	if payload["error"] != nil {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
	if payload["customer_name"] != "Sarah Johnson" || payload["total_orders"] != 2 {
		t.Errorf("payload = %v", payload)
	}

	orders, _ := payload["orders"].([]map[string]any)
	if len(orders) != 2 {
		t.Fatalf("orders = %v", payload["orders"])
	}
	summary, _ := orders[1]["items_summary"].(string)
	if !strings.Contains(summary, "'The Silent Keeper'") {
		t.Errorf("items_summary = %q", summary)
	}

	// Account with no orders gets a friendly message, not an error.
	payload = r.Execute(ctx, backend, "search_orders", map[string]any{"email": "alex.rivera@email.com"})
	if payload["message"] != "No orders found for this account." {
		t.Errorf("empty account: %v", payload)
	}
}

func TestGetCustomerInfo(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)

	payload := r.Execute(context.Background(), backend, "get_customer_info",
		map[string]any{"email": "mike.chen@email.com"})
	if payload["error"] != nil {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
	if payload["name"] != "Mike Chen" || payload["total_orders"] != 1 {
		t.Errorf("payload = %v", payload)
	}
	genres, _ := payload["favorite_genres"].([]string)
	if len(genres) != 2 || genres[0] != "Sci-Fi" {
		t.Errorf("favorite_genres = %v", payload["favorite_genres"])
	}
}

func TestInitiateReturnTool(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)
	ctx := context.Background()

	payload := r.Execute(ctx, backend, "initiate_return",
		map[string]any{"order_id": "ORD-2024-00001"})
	if payload["error"] != "order_id, reason, and email are all required" {
		t.Errorf("missing args: %v", payload)
	}

	// Outside the window: offer a ticket instead.
	payload = r.Execute(ctx, backend, "initiate_return", map[string]any{
		"order_id": "ORD-2024-00003", "reason": "damaged", "email": "mike.chen@email.com",
	})
	errMsg, _ := payload["error"].(string)
	if !strings.Contains(errMsg, "30 days") || !strings.Contains(errMsg, "support ticket") {
		t.Errorf("window error = %q", errMsg)
	}

	// Eligible order succeeds with instructions.
	payload = r.Execute(ctx, backend, "initiate_return", map[string]any{
		"order_id": "ORD-2024-00001", "reason": "changed my mind", "email": "sarah.johnson@email.com",
	})
	if payload["success"] != true {
		t.Fatalf("payload = %v", payload)
	}
	details, _ := payload["return_details"].(map[string]any)
	if details["refund_amount"] != 26.98 {
		t.Errorf("refund_amount = %v", details["refund_amount"])
	}
}

func TestGetPolicyInfo(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)

	payload := r.Execute(context.Background(), backend, "get_policy_info",
		map[string]any{"policy_type": "shipping"})
	if payload["title"] != "Shipping Policy" {
		t.Errorf("payload = %v", payload)
	}

	payload = r.Execute(context.Background(), backend, "get_policy_info",
		map[string]any{"policy_type": "warranty"})
	if payload["error"] != "Policy 'warranty' not found" {
		t.Errorf("payload = %v", payload)
	}
}

func TestGetRecommendations(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)

	payload := r.Execute(context.Background(), backend, "get_recommendations",
		map[string]any{"email": "sarah.johnson@email.com"})
	if payload["error"] != nil {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
	basedOn, _ := payload["based_on"].(string)
	if !strings.Contains(basedOn, "Fiction, Mystery") {
		t.Errorf("based_on = %q", basedOn)
	}

	// Anonymous caller falls back to popular books.
	payload = r.Execute(context.Background(), backend, "get_recommendations", map[string]any{})
	if payload["based_on"] != "popular books" {
		t.Errorf("based_on = %v", payload["based_on"])
	}
}

func TestSearchBooksTool(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)

	payload := r.Execute(context.Background(), backend, "search_books", map[string]any{})
	if payload["error"] != "Search query is required" {
		t.Errorf("missing query: %v", payload)
	}

	payload = r.Execute(context.Background(), backend, "search_books",
		map[string]any{"query": "mars"})
	books, _ := payload["books"].([]map[string]any)
	if len(books) != 1 || books[0]["in_stock"] != false {
		t.Errorf("payload = %v", payload)
	}

	payload = r.Execute(context.Background(), backend, "search_books",
		map[string]any{"query": "zzzznope"})
	if payload["message"] != "No books found matching 'zzzznope'" {
		t.Errorf("payload = %v", payload)
	}
}

func TestCreateSupportTicketTool(t *testing.T) {
	r := newTestRegistry(t)
	backend := newTestBackend(t)

	payload := r.Execute(context.Background(), backend, "create_support_ticket", map[string]any{
		"email": "sarah.johnson@email.com", "category": "returns",
		"subject": "Return outside window", "description": "Order ORD-2024-00003",
	})
	if payload["success"] != true {
		t.Fatalf("payload = %v", payload)
	}
	if payload["priority"] != "medium" {
		t.Errorf("default priority = %v", payload["priority"])
	}
	msg, _ := payload["message"].(string)
	if !strings.Contains(msg, "within 24 hours at sarah.johnson@email.com") {
		t.Errorf("message = %q", msg)
	}
}

func TestToolFormats(t *testing.T) {
	r := newTestRegistry(t)

	openai := r.OpenAITools()
	if len(openai) != 8 {
		t.Fatalf("openai tools = %d", len(openai))
	}
	if openai[0]["type"] != "function" {
		t.Errorf("openai wrapper = %v", openai[0]["type"])
	}
	fn, _ := openai[0]["function"].(map[string]any)
	if fn["name"] != "get_order_status" {
		t.Errorf("first tool = %v", fn["name"])
	}

	anthropic := r.AnthropicTools()
	if len(anthropic) != 8 {
		t.Fatalf("anthropic tools = %d", len(anthropic))
	}
	if anthropic[0]["name"] != "get_order_status" || anthropic[0]["input_schema"] == nil {
		t.Errorf("anthropic tool = %v", anthropic[0])
	}
}

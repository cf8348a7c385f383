package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookly/bookly-support/internal/store"
)

// dateFormat renders timestamps the way the model should repeat them
// to customers.
const dateFormat = "January 2, 2006"

func formatDate(t *store.Order) string { return t.OrderDate.Format(dateFormat) }

func optionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateFormat)
}

func handleGetOrderStatus(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	orderID := stringArg(args, "order_id")
	email := stringArg(args, "email")

	if orderID == "" && email == "" {
		return map[string]any{"error": "Please provide either order_id or email"}, nil
	}
	if orderID == "" {
		// Email alone cannot identify a single order; steer the model
		// toward search_orders instead of guessing.
		return map[string]any{"error": "Please provide the order number, or use search_orders to list all orders for this email."}, nil
	}

	order, err := backend.OrderByNumber(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{"error": "Order not found. Please verify the order number."}, nil
	}
	if err != nil {
		return nil, err
	}

	if email != "" && !strings.EqualFold(order.CustomerEmail, email) {
		return map[string]any{"error": "Email does not match this order. Please verify your information."}, nil
	}

	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"title":    item.Title,
			"author":   item.Author,
			"quantity": item.Quantity,
			"price":    item.PricePerUnit,
		})
	}

	result := map[string]any{
		"order_number":     order.OrderNumber,
		"status":           order.Status,
		"total_amount":     order.TotalAmount,
		"order_date":       formatDate(order),
		"items":            items,
		"shipping_method":  order.ShippingMethod,
		"tracking_number":  order.TrackingNumber,
		"carrier":          order.Carrier,
		"return_requested": order.ReturnRequested,
		"return_approved":  order.ReturnApproved,
	}
	result["estimated_delivery"] = optionalDate(order.EstimatedDelivery)
	result["shipped_date"] = optionalDate(order.ShippedDate)
	result["delivered_date"] = optionalDate(order.DeliveredDate)
	return result, nil
}

func handleSearchOrders(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	email := stringArg(args, "email")
	if email == "" {
		return map[string]any{"error": "Email is required to search orders"}, nil
	}

	orders, err := backend.OrdersByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{"error": fmt.Sprintf("No account found with email %s", email)}, nil
	}
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return map[string]any{"message": "No orders found for this account.", "orders": []any{}}, nil
	}

	list := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		titles := make([]string, 0, 3)
		for i, item := range order.Items {
			if i == 3 {
				break
			}
			titles = append(titles, fmt.Sprintf("'%s'", item.Title))
		}
		summary := strings.Join(titles, ", ")
		if len(order.Items) > 3 {
			summary += fmt.Sprintf(" and %d more", len(order.Items)-3)
		}

		list = append(list, map[string]any{
			"order_number":  order.OrderNumber,
			"status":        order.Status,
			"order_date":    formatDate(order),
			"total_amount":  order.TotalAmount,
			"items_summary": summary,
			"item_count":    len(order.Items),
		})
	}

	return map[string]any{
		"customer_name": orders[0].CustomerName,
		"orders":        list,
		"total_orders":  len(list),
	}, nil
}

func handleGetCustomerInfo(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	email := stringArg(args, "email")
	if email == "" {
		return map[string]any{"error": "Email is required"}, nil
	}

	customer, err := backend.CustomerByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{"error": fmt.Sprintf("No account found with email %s", email)}, nil
	}
	if err != nil {
		return nil, err
	}

	orderCount, err := backend.OrderCount(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	genres := customer.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}

	return map[string]any{
		"name":                 customer.Name,
		"email":                customer.Email,
		"member_since":         customer.CreatedAt.Format("January 2006"),
		"favorite_genres":      genres,
		"total_orders":         orderCount,
		"has_shipping_address": customer.HasShippingAddress,
	}, nil
}

func handleInitiateReturn(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	orderID := stringArg(args, "order_id")
	reason := stringArg(args, "reason")
	email := stringArg(args, "email")

	if orderID == "" || reason == "" || email == "" {
		return map[string]any{"error": "order_id, reason, and email are all required"}, nil
	}

	order, err := backend.InitiateReturn(ctx, orderID, reason, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return map[string]any{"error": fmt.Sprintf("Order %s not found", orderID)}, nil
	case errors.Is(err, store.ErrEmailMismatch):
		return map[string]any{"error": "Email does not match this order"}, nil
	case errors.Is(err, store.ErrReturnAlreadyRequested):
		return map[string]any{"error": "A return has already been requested for this order"}, nil
	}

	var notReturnable *store.NotReturnableError
	if errors.As(err, &notReturnable) {
		return map[string]any{
			"error": fmt.Sprintf("Order status is '%s'. Only delivered orders can be returned.", notReturnable.Status),
		}, nil
	}

	var window *store.ReturnWindowError
	if errors.As(err, &window) {
		return map[string]any{
			"error": fmt.Sprintf("This order was delivered %d days ago. Our return policy allows returns within 30 days of delivery. However, I can create a support ticket for our team to review your request.", window.DaysSinceDelivery),
		}, nil
	}

	if err != nil {
		return nil, err
	}

	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Return approved for order %s", order.OrderNumber),
		"return_details": map[string]any{
			"order_number":  order.OrderNumber,
			"refund_amount": order.RefundAmount,
			"reason":        reason,
			"instructions":  "A prepaid return shipping label has been sent to your email. Please ship the items within 7 days. Your refund will be processed within 5-7 business days after we receive the return.",
		},
	}, nil
}

func handleGetPolicyInfo(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	policyType := stringArg(args, "policy_type")
	if policyType == "" {
		return map[string]any{"error": "policy_type is required"}, nil
	}

	policy, err := backend.PolicyByType(ctx, policyType)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{"error": fmt.Sprintf("Policy '%s' not found", policyType)}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"policy_type":  policy.PolicyType,
		"title":        policy.Title,
		"content":      policy.Content,
		"last_updated": policy.LastUpdated.Format(dateFormat),
	}, nil
}

func handleGetRecommendations(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	email := stringArg(args, "email")
	genre := stringArg(args, "genre")
	limit := intArg(args, "limit", 5)

	books, favoriteGenres, err := backend.Recommendations(ctx, email, genre, limit)
	if err != nil {
		return nil, err
	}

	recs := make([]map[string]any, 0, len(books))
	for _, b := range books {
		desc := b.Description
		if len(desc) > 200 {
			desc = desc[:200] + "..."
		}
		recs = append(recs, map[string]any{
			"title":       b.Title,
			"author":      b.Author,
			"genre":       b.Genre,
			"price":       b.Price,
			"rating":      b.Rating,
			"description": desc,
		})
	}

	basedOn := "popular books"
	if len(favoriteGenres) > 0 {
		basedOn = fmt.Sprintf("your preferences (%s)", strings.Join(favoriteGenres, ", "))
	}

	return map[string]any{
		"recommendations": recs,
		"based_on":        basedOn,
	}, nil
}

func handleSearchBooks(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	query := stringArg(args, "query")
	genre := stringArg(args, "genre")

	if query == "" {
		return map[string]any{"error": "Search query is required"}, nil
	}

	books, err := backend.SearchBooks(ctx, query, genre, 10)
	if err != nil {
		return nil, err
	}

	if len(books) == 0 {
		return map[string]any{
			"message": fmt.Sprintf("No books found matching '%s'", query),
			"books":   []any{},
		}, nil
	}

	list := make([]map[string]any, 0, len(books))
	for _, b := range books {
		list = append(list, map[string]any{
			"title":    b.Title,
			"author":   b.Author,
			"genre":    b.Genre,
			"price":    b.Price,
			"in_stock": b.StockQuantity > 0,
			"rating":   b.Rating,
		})
	}

	return map[string]any{
		"books":       list,
		"total_found": len(list),
	}, nil
}

func handleCreateSupportTicket(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error) {
	email := stringArg(args, "email")
	category := stringArg(args, "category")
	subject := stringArg(args, "subject")
	description := stringArg(args, "description")
	priority := stringArg(args, "priority")
	if priority == "" {
		priority = "medium"
	}

	if email == "" || category == "" || subject == "" || description == "" {
		return map[string]any{"error": "email, category, subject, and description are required"}, nil
	}

	ticket, err := backend.CreateTicket(ctx, email, category, subject, description, priority)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]any{"error": fmt.Sprintf("No account found with email %s. Please verify your email.", email)}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"success":       true,
		"ticket_number": ticket.TicketNumber,
		"message":       fmt.Sprintf("Support ticket %s has been created. Our team will contact you within 24 hours at %s.", ticket.TicketNumber, email),
		"priority":      priority,
	}, nil
}

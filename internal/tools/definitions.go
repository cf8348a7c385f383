package tools

// builtins declares every tool the agent can use. Descriptions are
// written for the model: they say when to use the tool, not how it is
// implemented.
func builtins() []*Tool {
	return []*Tool{
		{
			Name:        "get_order_status",
			Description: "Retrieves the current status of a customer's order including items, shipping info, and tracking. Use this when a customer asks about their order status, shipping updates, or delivery information. Requires either order_id or customer email.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"order_id": map[string]any{
						"type":        "string",
						"description": "The order number (e.g., 'ORD-2024-00001')",
					},
					"email": map[string]any{
						"type":        "string",
						"description": "Customer's email address for verification",
					},
				},
				"required": []string{},
			},
			Handler: handleGetOrderStatus,
		},
		{
			Name:        "search_orders",
			Description: "Searches for orders based on customer email. Use this when the customer doesn't have their order ID or wants to see all their orders. Returns a list of orders.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"email": map[string]any{
						"type":        "string",
						"description": "Customer's email address",
					},
				},
				"required": []string{"email"},
			},
			Handler: handleSearchOrders,
		},
		{
			Name:        "get_customer_info",
			Description: "Retrieves customer account information including order history summary and preferences. Use this to personalize responses and understand the customer's context.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"email": map[string]any{
						"type":        "string",
						"description": "Customer's email address",
					},
				},
				"required": []string{"email"},
			},
			Handler: handleGetCustomerInfo,
		},
		{
			Name:        "initiate_return",
			Description: "Starts the return process for an order. IMPORTANT: Only use after confirming with the customer that they want to proceed. Checks if order is eligible for return (within 30 days, not already returned).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"order_id": map[string]any{
						"type":        "string",
						"description": "The order number to return",
					},
					"reason": map[string]any{
						"type":        "string",
						"description": "Customer's reason for return",
						"enum":        []string{"damaged", "wrong_item", "not_as_described", "no_longer_needed", "other"},
					},
					"email": map[string]any{
						"type":        "string",
						"description": "Customer email for verification",
					},
				},
				"required": []string{"order_id", "reason", "email"},
			},
			Handler: handleInitiateReturn,
		},
		{
			Name:        "get_policy_info",
			Description: "Retrieves official company policy information. ALWAYS use this tool instead of general knowledge when asked about policies. This ensures accuracy.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"policy_type": map[string]any{
						"type":        "string",
						"description": "Type of policy to retrieve",
						"enum":        []string{"return", "refund", "shipping", "privacy", "payment", "account"},
					},
				},
				"required": []string{"policy_type"},
			},
			Handler: handleGetPolicyInfo,
		},
		{
			Name:        "get_recommendations",
			Description: "Gets personalized book recommendations based on customer's order history and stated preferences.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"email": map[string]any{
						"type":        "string",
						"description": "Customer's email for personalized recommendations",
					},
					"genre": map[string]any{
						"type":        "string",
						"description": "Optional genre filter",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Number of recommendations (default 5)",
					},
				},
				"required": []string{},
			},
			Handler: handleGetRecommendations,
		},
		{
			Name:        "search_books",
			Description: "Searches the book catalog by title, author, or keyword. Use when customers ask about book availability.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query (title, author, keyword)",
					},
					"genre": map[string]any{
						"type":        "string",
						"description": "Optional genre filter",
					},
				},
				"required": []string{"query"},
			},
			Handler: handleSearchBooks,
		},
		{
			Name:        "create_support_ticket",
			Description: "Creates a support ticket for issues that require human follow-up. Use when you cannot resolve the issue or the customer needs escalation.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"email": map[string]any{
						"type":        "string",
						"description": "Customer's email",
					},
					"category": map[string]any{
						"type": "string",
						"enum": []string{"order", "billing", "shipping", "product", "account", "other"},
					},
					"subject": map[string]any{
						"type":        "string",
						"description": "Brief subject line",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Detailed description of the issue",
					},
					"priority": map[string]any{
						"type":        "string",
						"enum":        []string{"low", "medium", "high", "urgent"},
						"description": "Priority level",
					},
				},
				"required": []string{"email", "category", "subject", "description"},
			},
			Handler: handleCreateSupportTicket,
		},
	}
}

package agent

import (
	"fmt"
	"strings"

	"github.com/bookly/bookly-support/internal/session"
)

// basePrompt is the static part of the system prompt. The dynamic
// CURRENT CONTEXT block is appended per call so the model always sees
// the latest session state.
const basePrompt = `You are Bookly's customer support assistant, helping customers with their online bookstore orders, returns, recommendations, and account questions.

Guidelines:
- Be warm, concise, and helpful. Keep responses short and conversational.
- Use the available tools to look up real information. Never invent order details, prices, or policies.
- When a customer asks about an order, use get_order_status. When they want to see all their orders, use search_orders.
- For returns, check eligibility with initiate_return. If a return is outside the 30-day window, offer to create a support ticket so our team can review it.
- Verify the customer's email before sharing order or account details. If you don't know their email, ask for it.
- For policy questions, use get_policy_info rather than answering from memory.
- Recommend books with get_recommendations when customers ask what to read next.
- If you cannot resolve an issue, create a support ticket with create_support_ticket and reassure the customer that our team will follow up.
- Do not discuss topics unrelated to Bookly or bookstore customer support.`

// SystemPrompt renders the full system prompt for a session, including
// the CURRENT CONTEXT block. It is rebuilt on every provider call and
// never stored in the conversation history.
func SystemPrompt(sess *session.Session) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nCURRENT CONTEXT:\n")

	if sess.CustomerEmail != "" {
		fmt.Fprintf(&b, "- Customer email: %s\n", sess.CustomerEmail)
		if sess.CustomerName != "" {
			fmt.Fprintf(&b, "- Customer name: %s\n", sess.CustomerName)
		}
	} else {
		b.WriteString("- Customer is not logged in. Ask for email when needed for order lookups.\n")
	}
	if sess.CurrentOrder != "" {
		fmt.Fprintf(&b, "- Current order being discussed: %s (use this for any order-related tool calls)\n", sess.CurrentOrder)
	}
	return b.String()
}

// Greeting is the assistant's opening message on a new connection.
func Greeting(sess *session.Session) string {
	if sess.CustomerName != "" {
		first, _, _ := strings.Cut(sess.CustomerName, " ")
		return fmt.Sprintf("Hi %s! Welcome back to Bookly support. How can I help you today?", first)
	}
	return "Hi! Welcome to Bookly support. I can help with orders, returns, recommendations, and more. How can I help you today?"
}

package session

import (
	"regexp"
	"strings"
)

// orderIDPattern matches order references like ORD-2024-00001 anywhere
// in a message, case-insensitively.
var orderIDPattern = regexp.MustCompile(`(?i)ORD-\d{4}-\d{5}`)

// ExtractOrderID returns the first order reference in text, uppercased,
// or "" when none is present.
func ExtractOrderID(text string) string {
	match := orderIDPattern.FindString(text)
	if match == "" {
		return ""
	}
	return strings.ToUpper(match)
}

// ObserveUserMessage scans an inbound user message for context worth
// remembering. Currently that is the order reference: mentioning an
// order makes it the session's current order until another one is
// mentioned or the conversation resets.
func (s *Session) ObserveUserMessage(text string) {
	if id := ExtractOrderID(text); id != "" {
		s.CurrentOrder = id
	}
}

// Enrichment policy: which argument each tool may have auto-filled
// from session context. This table is deliberately explicit — it is
// the only business logic in this layer and should stay reviewable at
// a glance.
var (
	// orderTools get order_id filled from the current order.
	orderTools = map[string]bool{
		"get_order_status": true,
		"initiate_return":  true,
	}

	// emailTools get email filled from the known customer email.
	emailTools = map[string]bool{
		"get_order_status":      true,
		"search_orders":         true,
		"get_customer_info":     true,
		"initiate_return":       true,
		"create_support_ticket": true,
		"get_recommendations":   true,
	}
)

// Enrich fills missing arguments from session context according to the
// policy table. Only absent or empty arguments are filled; a value the
// model supplied is never overwritten. The input map is not mutated.
func (s *Session) Enrich(toolName string, args map[string]any) map[string]any {
	enriched := make(map[string]any, len(args)+2)
	for k, v := range args {
		enriched[k] = v
	}

	if orderTools[toolName] && s.CurrentOrder != "" && emptyArg(enriched["order_id"]) {
		enriched["order_id"] = s.CurrentOrder
	}
	if emailTools[toolName] && s.CustomerEmail != "" && emptyArg(enriched["email"]) {
		enriched["email"] = s.CustomerEmail
	}
	return enriched
}

// emptyArg treats a missing key, nil, and "" as fillable.
func emptyArg(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

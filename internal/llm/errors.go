package llm

import (
	"fmt"
	"strings"
)

// ErrorClass buckets provider failures for the fallback policy.
// String values double as the config vocabulary (fallback.on).
type ErrorClass string

const (
	ClassRateLimited  ErrorClass = "rate_limited"
	ClassUnauthorized ErrorClass = "unauthorized"
	ClassBilling      ErrorClass = "billing"
	ClassServerError  ErrorClass = "server_error"
	ClassOther        ErrorClass = "other"
)

// AllErrorClasses lists every class, in a stable order.
func AllErrorClasses() []ErrorClass {
	return []ErrorClass{ClassRateLimited, ClassUnauthorized, ClassBilling, ClassServerError, ClassOther}
}

// ParseErrorClass validates a config string against the known classes.
func ParseErrorClass(s string) (ErrorClass, error) {
	c := ErrorClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllErrorClasses() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown error class %q (valid: rate_limited, unauthorized, billing, server_error, other)", s)
}

// ProviderError is a classified failure from a provider adapter.
type ProviderError struct {
	Provider string
	Class    ErrorClass
	Status   int // HTTP status, 0 for transport failures
	Message  string
	Err      error // underlying error, if any
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Class, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Class, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *ProviderError) Unwrap() error { return e.Err }

// billingKeywords mark errors that are billing problems regardless of
// status code. Providers report exhausted credit with varying statuses,
// so the body text is the reliable signal.
var billingKeywords = []string{"credit", "balance", "billing", "payment", "insufficient"}

// classifyStatus maps an HTTP status plus error body to an ErrorClass.
// Billing keyword matches win over the status code.
func classifyStatus(status int, body string) ErrorClass {
	lower := strings.ToLower(body)
	for _, kw := range billingKeywords {
		if strings.Contains(lower, kw) {
			return ClassBilling
		}
	}

	switch {
	case status == 429:
		return ClassRateLimited
	case status == 401 || status == 403:
		return ClassUnauthorized
	case status == 400 || status >= 500:
		return ClassServerError
	default:
		return ClassOther
	}
}

// statusError builds a ProviderError for a non-2xx response.
func statusError(provider string, status int, body string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Class:    classifyStatus(status, body),
		Status:   status,
		Message:  body,
	}
}

// transportError wraps a network/stream-level failure.
func transportError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Class:    ClassOther,
		Message:  err.Error(),
		Err:      err,
	}
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sells-group/catalog-cli/pkg/anthropic"
)

// Kind classifies extraction API failures into the categories the rest of
// the application reacts to.
type Kind string

const (
	KindInvalidCredential Kind = "invalid_credential"
	KindRateLimited       Kind = "rate_limited"
	KindBillingDisabled   Kind = "billing_disabled"
	KindTimeout           Kind = "timeout"
	KindGeneric           Kind = "generic"
)

// Error is a classified extraction API failure. Op names the gateway
// operation that failed ("extract_text", "extract_records", ...).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns a short operator-facing description of the failure.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInvalidCredential:
		return "The API key was rejected. Check that it is set correctly and has not been revoked."
	case KindRateLimited:
		return "The API rate limit was exceeded. Wait a moment and try again."
	case KindBillingDisabled:
		return "The API account has a billing problem. Check the account's plan and payment status."
	case KindTimeout:
		return "The extraction request timed out. Try again, or use a smaller document."
	default:
		return "The extraction request failed. See the logs for details."
	}
}

// KindOf returns the classified kind of err, or KindGeneric when err carries
// no classification.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindGeneric
}

// classify maps a raw API error to a classified gateway error.
func classify(op string, err error) *Error {
	kind := KindGeneric

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		switch code := anthropic.StatusCode(err); code {
		case 401, 403:
			kind = KindInvalidCredential
		case 429:
			kind = KindRateLimited
		case 402:
			kind = KindBillingDisabled
		case 400:
			// Billing problems on this API surface as 400s with a telltale
			// message rather than a dedicated status code.
			if msg := strings.ToLower(err.Error()); strings.Contains(msg, "billing") || strings.Contains(msg, "credit balance") {
				kind = KindBillingDisabled
			}
		}
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

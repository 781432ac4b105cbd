package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// InsufficientFundsError marks the billing/quota failure class of the AI
// service. Unlike every other extraction failure it must abort the scan:
// generic per-message error handling is not allowed to swallow it.
type InsufficientFundsError struct {
	Detail string
	Err    error
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ai service billing failure: %s; add funds or fix billing to continue ai extraction", e.Detail)
}

func (e *InsufficientFundsError) Unwrap() error { return e.Err }

// IsInsufficientFunds reports whether err carries the fatal billing class.
func IsInsufficientFunds(err error) bool {
	var fe *InsufficientFundsError
	return errors.As(err, &fe)
}

// Indicator substrings the service uses across its billing-related error
// codes and messages.
var fundsIndicators = []string{
	"insufficient_quota",
	"billing_not_active",
	"insufficient",
	"quota",
	"billing",
	"payment",
	"funds",
	"credit",
}

// asInsufficientFunds classifies a service-call error, returning the fatal
// wrapper when the error code or message matches a billing indicator and
// nil otherwise.
func asInsufficientFunds(err error) *InsufficientFundsError {
	if err == nil {
		return nil
	}
	code := ""
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if s, ok := apiErr.Code.(string); ok {
			code = strings.ToLower(s)
		}
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range fundsIndicators {
		if strings.Contains(code, indicator) || strings.Contains(msg, indicator) {
			return &InsufficientFundsError{Detail: err.Error(), Err: err}
		}
	}
	return nil
}

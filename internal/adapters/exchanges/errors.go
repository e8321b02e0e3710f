package exchanges

import (
	"fmt"
	"net/http"

	"hypertrader/pkg/errors"
)

var (
	// ErrNotSupported is returned when the exchange does not support the requested feature.
	ErrNotSupported = errors.New("operation not supported by exchange")

	// ErrInvalidRequest indicates validation failures before hitting exchange API.
	ErrInvalidRequest = errors.Wrap(errors.ErrInvalidInput, "invalid exchange request")

	// ErrTradingDisabled is returned when no account or signer is configured.
	ErrTradingDisabled = errors.Wrap(errors.ErrNotConfigured, "trading is not configured")
)

// APIError is a non-2xx HTTP response from an exchange endpoint
type APIError struct {
	Exchange string
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Exchange, e.Endpoint, e.Status, e.Body)
}

// StatusCode returns the HTTP status
func (e *APIError) StatusCode() int { return e.Status }

// Unwrap classifies the response: 429 is a rate limit, other 4xx a rejected
// request, anything else the exchange being unavailable
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return errors.ErrRateLimitExceeded
	case e.Status >= 400 && e.Status < 500:
		return errors.ErrOrderRejected
	default:
		return errors.ErrExchangeUnavailable
	}
}

package connectors

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable covers network failures and 5xx/429 answers.
	ErrGatewayUnavailable = errors.New("broker gateway unavailable")
	// ErrOrderNotFound is returned when the broker no longer knows an order id.
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRejectedError is a business rejection of an order. Reason holds the
// broker's message unchanged.
type OrderRejectedError struct {
	StatusCode int
	Code       int
	Reason     string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected (HTTP %d): %s", e.StatusCode, e.Reason)
}

// IsRejected unwraps err into an OrderRejectedError.
func IsRejected(err error) (*OrderRejectedError, bool) {
	var rej *OrderRejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func unavailable(op string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, cause)
}

package payment

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the payment API.
type APIError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment api error: %s (status: %d)", e.Message, e.StatusCode)
}

// IsRetryable reports whether the same call may succeed later.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.Code == "internal_error"
}

type ErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

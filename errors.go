package aiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// RateLimitError is raised locally, before any network call, when the
// client-side limiter denies a request. Always recoverable by retrying
// after RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter)
}

// IsRateLimit reports whether err is a client-side rate-limit denial.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// APIError is a non-success response from the AI backend. The client
// never retries these; retry policy belongs to the caller.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ai service: %s (status %d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("ai service: %s (status %d)", http.StatusText(e.StatusCode), e.StatusCode)
}

// AsAPIError unwraps err into an APIError when it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// newAPIError builds an APIError from a non-success response, keeping
// the server's detail message when one is present.
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var payload struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}
	switch {
	case payload.Detail != "":
		apiErr.Detail = payload.Detail
	case payload.Error != "":
		apiErr.Detail = payload.Error
	case payload.Message != "":
		apiErr.Detail = payload.Message
	}
	return apiErr
}

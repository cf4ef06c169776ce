package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError is a non-200 answer from the upstream endpoint
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// coldStart reports the failures worth a single retry
func (e *UpstreamError) coldStart() bool {
	return e.StatusCode == http.StatusInternalServerError || e.StatusCode == http.StatusServiceUnavailable
}

// Messages surfaced to the end user in {error} frames
const (
	MessageRateLimited  = "Rate limit exceeded. Please wait a moment and try again."
	MessageUnavailable  = "The service is temporarily unavailable. Please try again shortly."
	MessageAuthFailed   = "Authentication with the generation service failed."
	MessageTimedOut     = "The request timed out. Try again with a shorter request."
	MessageStreamFailed = "Failed to generate a response. Please try again."
)

// Classify maps an upstream failure to a human readable message
func Classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return MessageTimedOut
	}

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		return MessageStreamFailed
	}

	switch {
	case upErr.StatusCode == http.StatusTooManyRequests:
		return MessageRateLimited
	case upErr.StatusCode == http.StatusUnauthorized || upErr.StatusCode == http.StatusForbidden:
		return MessageAuthFailed
	case upErr.StatusCode >= 500:
		return MessageUnavailable
	default:
		return MessageStreamFailed
	}
}

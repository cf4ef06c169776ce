package streamclient

import (
	"fmt"
	"net/http"
)

// HTTPError is a non-200 answer to the stream request
type HTTPError struct {
	StatusCode int
	// Message is the error frame text when the server sent one, otherwise
	// the start of the response body.
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("stream request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("stream request failed: %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) coldStart() bool {
	return e.StatusCode == http.StatusInternalServerError || e.StatusCode == http.StatusServiceUnavailable
}

// FrameError is an {error} frame sent by the relay
type FrameError struct {
	Message string
}

func (e *FrameError) Error() string {
	return e.Message
}

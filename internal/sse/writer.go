package sse

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Writer writes frames to an HTTP response and flushes after each one.
// Once ctx is done (the client went away) every write is refused.
type Writer struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// SetHeaders applies the streaming response headers. Proxies must not buffer
// the response or progressive rendering breaks.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// NewWriter wraps w. It fails when w cannot flush.
func NewWriter(ctx context.Context, w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &Writer{ctx: ctx, w: w, flusher: f}, nil
}

// Send writes a single frame
func (sw *Writer) Send(payload any) error {
	b, err := Encode(payload)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if err := sw.ctx.Err(); err != nil {
		return err
	}
	if _, err := sw.w.Write(b); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Chunk writes a {chunk} frame
func (sw *Writer) Chunk(text string) error {
	return sw.Send(ChunkFrame{Chunk: text})
}

// Error writes an {error} frame
func (sw *Writer) Error(message string) error {
	return sw.Send(ErrorFrame{Error: message})
}

// Done writes the terminal sentinel
func (sw *Writer) Done() error {
	return sw.Send(Done)
}

// Fail writes an {error} frame followed by the terminal sentinel
func (sw *Writer) Fail(message string) error {
	if err := sw.Error(message); err != nil {
		return err
	}
	return sw.Done()
}

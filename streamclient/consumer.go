// Package streamclient consumes the chat stream endpoint: it posts a JSON
// request, decodes the SSE frames as they arrive and reports them through
// callbacks. A consumer runs at most one stream at a time.
package streamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
	"github.com/satriahrh/genui-relay/internal/sse"
)

const (
	defaultRetryDelay = 3 * time.Second
	readBufferSize    = 4 << 10
	maxErrorBody      = 4 << 10
)

// Handlers receive stream events. Exactly one of OnComplete or OnError is
// called unless the stream is cancelled, in which case neither is.
type Handlers struct {
	OnChunk    func(chunk string)
	OnComplete func()
	OnError    func(err error)
}

// Option configures a Consumer
type Option func(*Consumer)

// WithHTTPClient sets the client used for stream requests
func WithHTTPClient(client *http.Client) Option {
	return func(c *Consumer) { c.httpClient = client }
}

// WithRetryDelay sets the wait before the single cold-start retry
func WithRetryDelay(d time.Duration) Option {
	return func(c *Consumer) { c.retryDelay = d }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

// Consumer issues stream requests against one endpoint
type Consumer struct {
	endpoint   string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	active *Stream
}

// NewConsumer creates a consumer for the chat stream URL
func NewConsumer(endpoint string, opts ...Option) *Consumer {
	c := &Consumer{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		retryDelay: defaultRetryDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream is one in-flight stream request
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel aborts the request. No callback fires afterwards.
func (s *Stream) Cancel() {
	s.cancel()
}

// Done is closed once the stream has finished or been cancelled
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// StartStream cancels any in-flight stream and starts a new one
func (c *Consumer) StartStream(
	ctx context.Context,
	messages []entities.ChatMessage,
	language entities.Language,
	sessionContext *entities.SessionContext,
	h Handlers,
) *Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{ctx: streamCtx, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	previous := c.active
	c.active = s
	c.mu.Unlock()

	if previous != nil {
		previous.Cancel()
	}

	req := entities.StreamRequest{
		Messages:       messages,
		Language:       language,
		SessionContext: sessionContext,
	}
	go c.run(s, req, h)
	return s
}

// CancelStream aborts the in-flight stream, if any
func (c *Consumer) CancelStream() {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
}

func (c *Consumer) run(s *Stream, req entities.StreamRequest, h Handlers) {
	defer func() {
		c.mu.Lock()
		if c.active == s {
			c.active = nil
		}
		c.mu.Unlock()
		s.cancel()
		close(s.done)
	}()

	fail := func(err error) {
		if s.ctx.Err() != nil {
			return
		}
		c.logger.Warn("Chat stream failed", zap.Error(err))
		if h.OnError != nil {
			h.OnError(err)
		}
	}

	body, err := entities.NewStreamRequestBody(req)
	if err != nil {
		fail(err)
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		fail(fmt.Errorf("failed to encode stream request: %w", err))
		return
	}

	resp, err := c.open(s.ctx, payload)
	if err != nil {
		fail(err)
		return
	}
	defer resp.Body.Close()

	c.read(s, resp.Body, h, fail)
}

// open posts the request. A 500/503 on the first attempt is retried once
// after the retry delay.
func (c *Consumer) open(ctx context.Context, payload []byte) (*http.Response, error) {
	resp, err := c.do(ctx, payload)
	if err == nil {
		return resp, nil
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || !httpErr.coldStart() {
		return nil, err
	}

	c.logger.Info("Stream request failed on first attempt, retrying once",
		zap.Int("statusCode", httpErr.StatusCode),
		zap.Duration("delay", c.retryDelay))

	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.do(ctx, payload)
}

func (c *Consumer) do(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
}

// errorMessage prefers the text of an {error} frame in a rejected response
func errorMessage(raw []byte) string {
	var dec sse.Decoder
	frames := append(dec.Feed(raw), dec.Flush()...)
	for _, payload := range frames {
		frame, _, err := sse.ParseFrame(payload)
		if err == nil && frame.Error != nil {
			return *frame.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

func (c *Consumer) read(s *Stream, body io.Reader, h Handlers, fail func(error)) {
	var dec sse.Decoder
	buf := make([]byte, readBufferSize)

	// handle reports whether the stream reached a terminal frame
	handle := func(frames []string) bool {
		for _, payload := range frames {
			if s.ctx.Err() != nil {
				return true
			}

			frame, done, err := sse.ParseFrame(payload)
			switch {
			case done:
				if h.OnComplete != nil {
					h.OnComplete()
				}
				return true
			case err != nil:
				c.logger.Debug("Skipping malformed frame", zap.Error(err))
			case frame.Error != nil:
				fail(&FrameError{Message: *frame.Error})
				return true
			case frame.Chunk != nil && h.OnChunk != nil:
				h.OnChunk(*frame.Chunk)
			}
		}
		return false
	}

	for {
		n, err := body.Read(buf)
		if n > 0 && handle(dec.Feed(buf[:n])) {
			return
		}
		if errors.Is(err, io.EOF) {
			if handle(dec.Flush()) {
				return
			}
			fail(fmt.Errorf("stream ended before completion: %w", io.ErrUnexpectedEOF))
			return
		}
		if err != nil {
			fail(fmt.Errorf("failed to read stream: %w", err))
			return
		}
	}
}

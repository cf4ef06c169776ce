// Package relay bridges one client chat request to one upstream streaming
// completion and republishes the upstream stream as {chunk} frames.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
	"github.com/satriahrh/genui-relay/internal/sse"
)

const (
	readBufferSize = 4 << 10
	maxBodyBytes   = 10 << 20
)

// Relay serves the chat stream endpoint. It keeps no per-request state.
type Relay struct {
	cfg      Config
	upstream *upstream
	logger   *zap.Logger
}

// New creates a relay. A nil httpClient uses a default client; the request
// deadline comes from the per-request context, not the client.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Relay {
	cfg = cfg.withDefaults()
	logger = logger.With(zap.String("component", "relay"))

	logger.Info("Chat stream relay configured",
		zap.String("mode", cfg.Mode()),
		zap.String("baseURL", cfg.BaseURL),
		zap.String("model", cfg.Model))

	return &Relay{
		cfg:      cfg,
		upstream: newUpstream(cfg, httpClient, logger),
		logger:   logger,
	}
}

// Config returns the resolved configuration
func (r *Relay) Config() Config {
	return r.cfg
}

// Handle is the echo handler for POST /api/chat/stream
func (r *Relay) Handle(c echo.Context) error {
	logger := r.logger.With(zap.String("requestID", c.Response().Header().Get(echo.HeaderXRequestID)))

	var body entities.StreamRequestBody
	decoder := json.NewDecoder(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err := decoder.Decode(&body); err != nil {
		logger.Warn("Failed to decode stream request", zap.Error(err))
		return r.reject(c, "invalid request body")
	}

	req, err := body.ToStreamRequest()
	if err != nil {
		logger.Warn("Rejected stream request", zap.Error(err))
		return r.reject(c, err.Error())
	}

	res := c.Response()
	sse.SetHeaders(res.Header())
	res.WriteHeader(http.StatusOK)

	sw, err := sse.NewWriter(c.Request().Context(), res)
	if err != nil {
		return err
	}

	r.stream(c.Request().Context(), req, sw, logger)
	return nil
}

// reject answers with 400 and a complete, terminated frame sequence
func (r *Relay) reject(c echo.Context, message string) error {
	res := c.Response()
	sse.SetHeaders(res.Header())
	res.WriteHeader(http.StatusBadRequest)

	sw, err := sse.NewWriter(c.Request().Context(), res)
	if err != nil {
		return err
	}
	_ = sw.Fail(message)
	return nil
}

// Stream relays req to w. clientCtx is the lifetime of the client connection.
func (r *Relay) Stream(clientCtx context.Context, req entities.StreamRequest, w *sse.Writer) {
	r.stream(clientCtx, req, w, r.logger)
}

func (r *Relay) stream(clientCtx context.Context, req entities.StreamRequest, sw *sse.Writer, logger *zap.Logger) {
	logger = logger.With(
		zap.String("language", string(req.Language)),
		zap.Int("messages", len(req.Messages)))
	if sc := req.SessionContext; sc != nil {
		logger = logger.With(zap.String("sessionID", sc.SessionID), zap.String("messageID", sc.MessageID))
	}

	if r.cfg.MockMode() {
		r.streamMock(clientCtx, req, sw, logger)
		return
	}

	ctx, cancel := context.WithTimeout(clientCtx, r.cfg.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = r.cfg.Model
	}
	body, err := json.Marshal(completionRequest{
		Model:    model,
		Messages: upstreamMessages(req),
		Stream:   true,
	})
	if err != nil {
		r.fail(clientCtx, ctx, sw, err, logger)
		return
	}

	resp, err := r.upstream.open(ctx, body)
	if err != nil {
		r.fail(clientCtx, ctx, sw, err, logger)
		return
	}
	defer resp.Body.Close()

	logger.Info("Upstream stream opened", zap.String("model", model))
	r.pump(clientCtx, ctx, resp.Body, sw, logger)
}

// pump forwards upstream frames in arrival order until [DONE], EOF or abort
func (r *Relay) pump(clientCtx, ctx context.Context, body io.Reader, sw *sse.Writer, logger *zap.Logger) {
	var dec sse.Decoder
	buf := make([]byte, readBufferSize)
	forwarded := 0

	forward := func(frames []string) (stop bool) {
		for _, frame := range frames {
			if strings.TrimSpace(frame) == sse.Done {
				_ = sw.Done()
				logger.Info("Upstream stream completed", zap.Int("chunks", forwarded))
				return true
			}

			var chunk completionChunk
			if err := json.Unmarshal([]byte(frame), &chunk); err != nil {
				logger.Debug("Skipping malformed upstream frame", zap.Error(err))
				continue
			}
			text := chunk.text()
			if text == "" {
				continue
			}
			if err := sw.Chunk(text); err != nil {
				logger.Info("Client disconnected, aborting upstream", zap.Error(err))
				return true
			}
			forwarded++
		}
		return false
	}

	for {
		n, readErr := body.Read(buf)
		if n > 0 && forward(dec.Feed(buf[:n])) {
			return
		}

		if errors.Is(readErr, io.EOF) {
			if forward(dec.Flush()) {
				return
			}
			_ = sw.Done()
			logger.Info("Upstream stream ended", zap.Int("chunks", forwarded))
			return
		}
		if readErr != nil {
			r.fail(clientCtx, ctx, sw, readErr, logger)
			return
		}
	}
}

// fail converts an upstream failure into a single {error} frame plus [DONE].
// Nothing is written once the client has gone away.
func (r *Relay) fail(clientCtx, ctx context.Context, sw *sse.Writer, err error, logger *zap.Logger) {
	if clientCtx.Err() != nil {
		logger.Info("Client disconnected, upstream aborted", zap.Error(err))
		return
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = context.DeadlineExceeded
	}

	message := Classify(err)
	logger.Error("Chat stream failed", zap.Error(err), zap.String("message", message))
	_ = sw.Fail(message)
}

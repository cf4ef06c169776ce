package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
)

const maxErrorBody = 4 << 10

type completionRequest struct {
	Model    string                 `json:"model"`
	Messages []entities.ChatMessage `json:"messages"`
	Stream   bool                   `json:"stream"`
}

// completionChunk is the part of an upstream stream frame the relay reads
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c completionChunk) text() string {
	var sb strings.Builder
	for _, choice := range c.Choices {
		sb.WriteString(choice.Delta.Content)
	}
	return sb.String()
}

// upstream issues streaming chat completion calls
type upstream struct {
	httpClient *http.Client
	url        string
	apiKey     string
	retryDelay time.Duration
	logger     *zap.Logger
}

func newUpstream(cfg Config, httpClient *http.Client, logger *zap.Logger) *upstream {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &upstream{
		httpClient: httpClient,
		url:        strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:     cfg.APIKey,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// open starts the stream. A 500/503 on the first attempt is retried exactly
// once after the retry delay with the same body; anything else is returned.
func (u *upstream) open(ctx context.Context, body []byte) (*http.Response, error) {
	resp, err := u.do(ctx, body)
	if err == nil {
		return resp, nil
	}

	var upErr *UpstreamError
	if !errors.As(err, &upErr) || !upErr.coldStart() {
		return nil, err
	}

	u.logger.Warn("Upstream failed on first attempt, retrying once",
		zap.Int("statusCode", upErr.StatusCode),
		zap.Duration("delay", u.retryDelay))

	if err := sleep(ctx, u.retryDelay); err != nil {
		return nil, err
	}
	return u.do(ctx, body)
}

func (u *upstream) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errorBody)),
		}
	}
	return resp, nil
}

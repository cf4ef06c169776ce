package relay

import "time"

const (
	defaultBaseURL    = "https://api.thesys.dev/v1/embed"
	defaultModel      = "c1/anthropic/claude-sonnet-4/v-20250815"
	defaultTimeout    = 5 * time.Minute
	defaultRetryDelay = 3 * time.Second
	defaultMockDelay  = 100 * time.Millisecond
)

// Config holds the relay settings. It is resolved once at startup and is
// read-only afterwards.
type Config struct {
	APIKey  string // Upstream API key; empty selects mock mode unless ForceLive is set
	BaseURL string // Optional: upstream base URL
	Model   string // Optional: default upstream model when the request names none

	Mock      bool // Force mock mode
	ForceLive bool // Stay in live mode even without an API key

	Timeout    time.Duration // Optional: whole-request bound (default 5m)
	RetryDelay time.Duration // Optional: wait before the single cold-start retry (default 3s)
	MockDelay  time.Duration // Optional: gap between mock frames (default 100ms)
}

// MockMode reports whether requests are answered locally
func (c Config) MockMode() bool {
	if c.Mock {
		return true
	}
	return c.APIKey == "" && !c.ForceLive
}

// Mode returns a short label for logs and health output
func (c Config) Mode() string {
	if c.MockMode() {
		return "mock"
	}
	return "live"
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MockDelay == 0 {
		c.MockDelay = defaultMockDelay
	}
	return c
}

package websocket

import "sync"

// Heartbeat tracks whether the peer answered the last ping
type Heartbeat struct {
	mu    sync.Mutex
	alive bool
}

// NewHeartbeat returns a heartbeat that considers a fresh connection alive
func NewHeartbeat() *Heartbeat {
	return &Heartbeat{alive: true}
}

// Touch records a pong
func (h *Heartbeat) Touch() {
	h.mu.Lock()
	h.alive = true
	h.mu.Unlock()
}

// CheckAndMaybeTerminate runs on every ping tick. When no pong arrived since
// the previous tick it calls terminate and returns false. Otherwise it arms
// the next check and returns true so the caller sends another ping.
func (h *Heartbeat) CheckAndMaybeTerminate(terminate func()) bool {
	h.mu.Lock()
	alive := h.alive
	h.alive = false
	h.mu.Unlock()

	if !alive {
		terminate()
		return false
	}
	return true
}

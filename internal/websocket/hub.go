// Package websocket manages voice call connections: one session per socket,
// a single in-flight turn per session and a ping/pong heartbeat.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	defaultPingPeriod     = 30 * time.Second
	defaultMinAudioBytes  = 1000
	defaultMaxMessageSize = 10 << 20
	defaultTurnTimeout    = 2 * time.Minute
	sendBufferSize        = 16
)

var upgrader = websocket.Upgrader{
	// Browsers on other origins are expected; access is gated by the
	// optional voice token instead.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// TurnProcessor runs one voice turn for a session
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, conv *usecase.Conversation, audio []byte) (*usecase.TurnResult, error)
}

// Config tunes session behavior. Zero values use defaults.
type Config struct {
	// MinAudioBytes is the size below which a binary message is noise
	MinAudioBytes  int
	PingPeriod     time.Duration
	MaxMessageSize int64
	// TurnTimeout bounds one pass; closing the socket does not cancel it
	TurnTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinAudioBytes <= 0 {
		c.MinAudioBytes = defaultMinAudioBytes
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = defaultPingPeriod
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = defaultTurnTimeout
	}
	return c
}

// Hub maintains the set of active voice sessions
type Hub struct {
	// Registered sessions by ID.
	sessions map[string]*Session

	register   chan *Session
	unregister chan *Session

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to sessions map
	mu sync.RWMutex

	// In-flight turns across all sessions.
	turns sync.WaitGroup

	processor TurnProcessor
	cfg       Config
	logger    *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(processor TurnProcessor, cfg Config, logger *zap.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]*Session),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		done:       make(chan struct{}),
		processor:  processor,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(zap.String("component", "voice")),
	}
}

// Run starts the hub's main loop. When ctx is done every session is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case session := <-h.register:
			h.mu.Lock()
			h.sessions[session.id] = session
			count := len(h.sessions)
			h.mu.Unlock()
			h.logger.Info("Voice session registered",
				zap.String("sessionID", session.id),
				zap.Int("activeSessions", count))

		case session := <-h.unregister:
			h.mu.Lock()
			delete(h.sessions, session.id)
			count := len(h.sessions)
			h.mu.Unlock()
			h.logger.Info("Voice session unregistered",
				zap.String("sessionID", session.id),
				zap.Int("activeSessions", count))

		case <-ctx.Done():
			// sessions closing below must not wait on this loop
			close(h.done)

			h.mu.Lock()
			sessions := make([]*Session, 0, len(h.sessions))
			for _, session := range h.sessions {
				sessions = append(sessions, session)
			}
			h.sessions = make(map[string]*Session)
			h.mu.Unlock()

			for _, session := range sessions {
				session.close()
			}
			h.logger.Info("Voice hub stopped", zap.Int("closedSessions", len(sessions)))
			return
		}
	}
}

// ActiveSessions returns the number of connected sessions
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown waits for in-flight turns to finish or ctx to expire. Sessions
// are closed by cancelling the context passed to Run.
func (h *Hub) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		h.turns.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) add(s *Session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// HandleWebSocket upgrades the request and starts a voice session. subject
// identifies the authenticated caller and may be empty.
func HandleWebSocket(hub *Hub, c echo.Context, subject string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	session := newSession(hub, conn, subject)
	if !hub.add(session) {
		session.logger.Warn("Voice hub is stopped, rejecting session")
		_ = conn.Close()
		return nil
	}

	session.enqueueJSON(ReadyMessage{Type: MessageTypeReady})

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go session.writePump()
	go session.readPump()

	return nil
}

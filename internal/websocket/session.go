package websocket

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/usecase"
)

// Session is a middleman between one voice socket and the turn pipeline.
type Session struct {
	id  string
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed; producers give
	// up once done is closed.
	send chan WriteData
	done chan struct{}

	closeOnce sync.Once
	heartbeat *Heartbeat
	logger    *zap.Logger

	mu              sync.Mutex
	closed          bool
	processing      bool
	audioChunks     [][]byte
	lastProcessTime time.Time

	// Only touched by the goroutine holding the processing flag.
	conversation usecase.Conversation
}

func newSession(hub *Hub, conn *websocket.Conn, subject string) *Session {
	id := uuid.NewString()
	logger := hub.logger.With(zap.String("sessionID", id))
	if subject != "" {
		logger = logger.With(zap.String("subject", subject))
	}

	return &Session{
		id:        id,
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBufferSize),
		done:      make(chan struct{}),
		heartbeat: NewHeartbeat(),
		logger:    logger,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// readPump pumps messages from the websocket connection to the pipeline.
func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(s.hub.cfg.MaxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		s.heartbeat.Touch()
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.handleAudio(message)
		case websocket.TextMessage:
			s.logger.Warn("Ignoring text message on binary-only voice socket", zap.Int("size", len(message)))
		default:
			s.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued messages to the connection and drives the heartbeat.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(message.Type, message.Payload); err != nil {
				s.logger.Warn("Failed to write message", zap.Error(err))
				s.close()
				return
			}

		case <-ticker.C:
			if !s.heartbeat.CheckAndMaybeTerminate(s.terminate) {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// terminate drops a peer that stopped answering pings
func (s *Session) terminate() {
	s.logger.Warn("No pong since last ping, terminating connection")
	s.close()
	s.conn.Close()
}

// handleAudio starts a turn for one complete utterance unless the message is
// noise or a turn is already running.
func (s *Session) handleAudio(data []byte) {
	if len(data) < s.hub.cfg.MinAudioBytes {
		s.logger.Debug("Ignoring audio below threshold",
			zap.Int("size", len(data)),
			zap.Int("minAudioBytes", s.hub.cfg.MinAudioBytes))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.processing {
		s.mu.Unlock()
		s.logger.Info("Turn in progress, dropping audio", zap.Int("size", len(data)))
		return
	}
	s.processing = true
	s.audioChunks = append(s.audioChunks, data)
	s.mu.Unlock()

	s.hub.turns.Add(1)
	go s.process()
}

// process runs one turn. The processing flag is released on every path.
func (s *Session) process() {
	start := time.Now()
	defer s.hub.turns.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Voice turn panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.enqueueJSON(ErrorMessage{Type: MessageTypeError, Message: turnFailedMessage})
		}

		s.mu.Lock()
		s.processing = false
		s.lastProcessTime = time.Now()
		s.mu.Unlock()
	}()

	s.mu.Lock()
	audio := bytes.Join(s.audioChunks, nil)
	s.audioChunks = nil
	s.mu.Unlock()

	if len(audio) == 0 {
		// discarded by close before the turn started
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.hub.cfg.TurnTimeout)
	defer cancel()

	result, err := s.hub.processor.ProcessTurn(ctx, &s.conversation, audio)
	if err != nil {
		s.logger.Error("Voice turn failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		s.enqueueJSON(ErrorMessage{Type: MessageTypeError, Message: turnFailedMessage})
		return
	}
	if result == nil {
		s.logger.Info("Voice turn produced no speech", zap.Duration("elapsed", time.Since(start)))
		return
	}

	if !s.enqueueJSON(TranscriptionMessage{
		Type:     MessageTypeTranscription,
		UserText: result.UserText,
		AIText:   result.AIText,
		Language: result.Language,
	}) {
		return
	}
	s.enqueue(binaryFrame(result.Audio))

	s.logger.Info("Voice turn delivered",
		zap.Int("audioBytes", len(result.Audio)),
		zap.Duration("elapsed", time.Since(start)))
}

// enqueue queues a frame for the write pump. It returns false once the
// session is closed.
func (s *Session) enqueue(frame WriteData) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) enqueueJSON(v any) bool {
	frame, err := jsonFrame(v)
	if err != nil {
		s.logger.Error("Failed to encode message", zap.Error(err))
		return false
	}
	return s.enqueue(frame)
}

// close stops the pumps and discards buffered audio. An in-flight turn keeps
// running; its output is dropped.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		s.audioChunks = nil
		processing := s.processing
		lastProcess := s.lastProcessTime
		s.mu.Unlock()

		s.hub.remove(s)
		s.logger.Info("Voice session closed",
			zap.Bool("turnInFlight", processing),
			zap.Time("lastProcessTime", lastProcess))
	})
}

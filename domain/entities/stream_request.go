package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyMessages is returned when a stream request carries no messages
var ErrEmptyMessages = errors.New("messages must be a non-empty array")

// SessionContext links a stream request to a previously rendered UI state
type SessionContext struct {
	SessionID     string          `json:"sessionId,omitempty"`
	MessageID     string          `json:"messageId,omitempty"`
	PreviousState json.RawMessage `json:"previousState,omitempty"`
}

// HasPreviousState reports whether a non-null previous state was supplied
func (s *SessionContext) HasPreviousState() bool {
	if s == nil {
		return false
	}
	trimmed := bytes.TrimSpace(s.PreviousState)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// StreamRequest is a chat request relayed to the generative UI upstream
type StreamRequest struct {
	Messages       []ChatMessage
	Model          string
	Language       Language
	SessionContext *SessionContext
}

// Validate checks the request before any stream resource is allocated
func (r StreamRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrEmptyMessages
	}
	for i, m := range r.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return nil
}

// StreamRequestBody is the JSON body accepted by the chat stream endpoint
type StreamRequestBody struct {
	Messages      json.RawMessage `json:"messages"`
	Model         string          `json:"model,omitempty"`
	Language      string          `json:"language,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
	PreviousState json.RawMessage `json:"previousState,omitempty"`
	MessageID     string          `json:"messageId,omitempty"`
}

// NewStreamRequestBody builds the wire body for a stream request
func NewStreamRequestBody(req StreamRequest) (StreamRequestBody, error) {
	messages, err := json.Marshal(req.Messages)
	if err != nil {
		return StreamRequestBody{}, fmt.Errorf("failed to marshal messages: %w", err)
	}
	body := StreamRequestBody{
		Messages: messages,
		Model:    req.Model,
		Language: string(req.Language),
	}
	if sc := req.SessionContext; sc != nil {
		body.SessionID = sc.SessionID
		body.MessageID = sc.MessageID
		body.PreviousState = sc.PreviousState
	}
	return body, nil
}

// ToStreamRequest decodes and validates the body. A missing or non-array
// messages field is reported as ErrEmptyMessages.
func (b StreamRequestBody) ToStreamRequest() (StreamRequest, error) {
	trimmed := bytes.TrimSpace(b.Messages)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return StreamRequest{}, ErrEmptyMessages
	}

	var messages []ChatMessage
	if err := json.Unmarshal(trimmed, &messages); err != nil {
		return StreamRequest{}, fmt.Errorf("invalid messages: %w", err)
	}

	req := StreamRequest{
		Messages: messages,
		Model:    b.Model,
		Language: ParseLanguage(b.Language),
	}
	if b.SessionID != "" || b.MessageID != "" || len(b.PreviousState) > 0 {
		req.SessionContext = &SessionContext{
			SessionID:     b.SessionID,
			MessageID:     b.MessageID,
			PreviousState: b.PreviousState,
		}
	}

	if err := req.Validate(); err != nil {
		return StreamRequest{}, err
	}
	return req, nil
}

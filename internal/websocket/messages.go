package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/genui-relay/domain/entities"
)

// MessageType defines the type of an outbound JSON message
type MessageType string

const (
	MessageTypeReady         MessageType = "ready"
	MessageTypeTranscription MessageType = "transcription"
	MessageTypeError         MessageType = "error"
)

// Shown to the caller when a turn fails; details stay in the logs.
const turnFailedMessage = "Sorry, something went wrong while processing your voice. Please try again."

// ReadyMessage is sent once, right after the upgrade
type ReadyMessage struct {
	Type MessageType `json:"type"`
}

// TranscriptionMessage precedes the synthesized audio of a completed turn
type TranscriptionMessage struct {
	Type     MessageType       `json:"type"`
	UserText string            `json:"userText"`
	AIText   string            `json:"aiText"`
	Language entities.Language `json:"language"`
}

// ErrorMessage reports a failed turn. The session stays open.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// WriteData is one frame queued for the write pump
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

func jsonFrame(v any) (WriteData, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return WriteData{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	return WriteData{Type: websocket.TextMessage, Payload: payload}, nil
}

func binaryFrame(payload []byte) WriteData {
	return WriteData{Type: websocket.BinaryMessage, Payload: payload}
}

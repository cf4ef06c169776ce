package stt

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/repositories"
)

// MockSpeechToText returns canned transcriptions chosen by audio size
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Transcribe implements repositories.SpeechToText
func (s *MockSpeechToText) Transcribe(ctx context.Context, audio io.Reader, config repositories.AudioConfig) (string, error) {
	n, err := io.Copy(io.Discard, audio)
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}

	s.logger.Info("Processing mock speech-to-text",
		zap.Int64("audioSize", n),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	// Mock transcription based on audio size
	switch {
	case n > 10000:
		return "مرحبا، ما الذي يمكنك فعله؟", nil
	case n > 5000:
		return "Can you show me the weather as a card?", nil
	case n > 1000:
		return "Hello there!", nil
	default:
		return "", nil
	}
}

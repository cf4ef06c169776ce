package tts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
	"github.com/satriahrh/genui-relay/domain/repositories"
)

// MockTextToSpeech returns a fixed audio-like payload for any text
type MockTextToSpeech struct {
	logger *zap.Logger
}

// NewMockTextToSpeech creates a new mock speech synthesizer
func NewMockTextToSpeech(logger *zap.Logger) repositories.TextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// Synthesize implements repositories.TextToSpeech
func (m *MockTextToSpeech) Synthesize(ctx context.Context, text string, lang entities.Language) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	m.logger.Info("Generating mock speech", zap.String("language", string(lang)), zap.Int("textLength", len(text)))
	return []byte("MOCK-AUDIO:" + string(lang) + ":" + text), nil
}

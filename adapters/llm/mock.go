package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
	"github.com/satriahrh/genui-relay/domain/repositories"
)

// MockLLM answers every turn with a canned reply in the speaker's language
type MockLLM struct {
	logger *zap.Logger
}

// NewMockLLM creates a new mock chat completion client
func NewMockLLM(logger *zap.Logger) repositories.LargeLanguageModel {
	return &MockLLM{logger: logger}
}

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no user message to complete")
	}
	last := messages[len(messages)-1].Content.PlainText()

	m.logger.Info("Generating mock completion", zap.Int("messages", len(messages)))

	if entities.DetectLanguage(last) == entities.LanguageArabic {
		return fmt.Sprintf("شكرا لك! سمعتك تقول: %s", last), nil
	}
	return fmt.Sprintf("Thanks! I heard you say: %s", last), nil
}

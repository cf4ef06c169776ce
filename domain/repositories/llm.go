package repositories

import (
	"context"

	"github.com/satriahrh/genui-relay/domain/entities"
)

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Complete returns the assistant reply for the conversation so far.
	// System messages carry the persona; the last message is the user turn.
	Complete(ctx context.Context, messages []entities.ChatMessage) (string, error)
}

package repositories

import (
	"context"

	"github.com/satriahrh/genui-relay/domain/entities"
)

type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, lang entities.Language) ([]byte, error)
}

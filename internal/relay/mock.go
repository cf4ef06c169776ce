package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
	"github.com/satriahrh/genui-relay/internal/sse"
)

// Concatenated, each sequence is one generative UI card.
var mockFragments = map[entities.Language][]string{
	entities.LanguageEnglish: {
		`{"type":"card","title":"`,
		`Mock response`,
		`","body":"`,
		`This answer was generated locally `,
		`because no upstream API key is configured.`,
		`"}`,
	},
	entities.LanguageArabic: {
		`{"type":"card","dir":"rtl","title":"`,
		`رد تجريبي`,
		`","body":"`,
		`تم إنشاء هذه الإجابة محليًا `,
		`لعدم تهيئة مفتاح الخدمة.`,
		`"}`,
	},
}

// MockFragments returns the fixed chunk sequence for a language
func MockFragments(lang entities.Language) []string {
	fragments, ok := mockFragments[lang]
	if !ok {
		fragments = mockFragments[entities.LanguageEnglish]
	}
	return append([]string(nil), fragments...)
}

func (r *Relay) streamMock(ctx context.Context, req entities.StreamRequest, sw *sse.Writer, logger *zap.Logger) {
	fragments := MockFragments(req.Language)
	logger.Info("Serving mock stream", zap.Int("fragments", len(fragments)))

	for i, fragment := range fragments {
		if err := sw.Chunk(fragment); err != nil {
			logger.Debug("Client went away during mock stream", zap.Error(err))
			return
		}
		if i == len(fragments)-1 {
			break
		}
		if err := sleep(ctx, r.cfg.MockDelay); err != nil {
			return
		}
	}
	_ = sw.Done()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/entities"
	"github.com/satriahrh/genui-relay/domain/repositories"
)

// Conversation is the state one voice call carries between turns. It is
// owned by a single session and never shared.
type Conversation struct {
	// Language is empty until the first non-empty utterance, then fixed
	Language entities.Language
	History  []entities.ChatMessage
}

// Started reports whether the language and persona have been chosen
func (c *Conversation) Started() bool {
	return c.Language != ""
}

// TurnResult is what a completed turn sends back to the caller
type TurnResult struct {
	UserText string
	AIText   string
	Language entities.Language
	Audio    []byte
}

// VoiceTurnService orchestrates one transcribe, complete, synthesize pass
type VoiceTurnService struct {
	speechToText repositories.SpeechToText
	llm          repositories.LargeLanguageModel
	textToSpeech repositories.TextToSpeech
	store        repositories.AudioStore
	audioConfig  repositories.AudioConfig
	logger       *zap.Logger
}

// NewVoiceTurnService creates a new voice turn service
func NewVoiceTurnService(
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	store repositories.AudioStore,
	audioConfig repositories.AudioConfig,
	logger *zap.Logger,
) *VoiceTurnService {
	return &VoiceTurnService{
		speechToText: stt,
		llm:          llm,
		textToSpeech: tts,
		store:        store,
		audioConfig:  audioConfig,
		logger:       logger,
	}
}

// ProcessTurn runs the pipeline for one utterance. It returns a nil result
// and nil error when nothing intelligible was said. The temp file holding
// the audio is removed on every path.
func (s *VoiceTurnService) ProcessTurn(ctx context.Context, conv *Conversation, audio []byte) (*TurnResult, error) {
	path, err := s.store.Save(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to store audio: %w", err)
	}
	defer func() {
		if err := s.store.Remove(path); err != nil {
			s.logger.Warn("Failed to remove temp audio", zap.String("path", path), zap.Error(err))
		}
	}()

	userText, err := s.transcribe(ctx, conv, path)
	if err != nil {
		return nil, err
	}
	if userText == "" {
		s.logger.Info("Empty transcription, skipping turn", zap.Int("audioBytes", len(audio)))
		return nil, nil
	}

	if !conv.Started() {
		conv.Language = entities.DetectLanguage(userText)
		conv.History = append(conv.History, entities.NewTextMessage(entities.RoleSystem, PersonaPrompt(conv.Language)))
		s.logger.Info("Conversation language detected", zap.String("language", string(conv.Language)))
	}

	userMsg := entities.NewTextMessage(entities.RoleUser, userText)
	messages := make([]entities.ChatMessage, 0, len(conv.History)+1)
	messages = append(messages, conv.History...)
	messages = append(messages, userMsg)

	aiText, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	aiText = strings.TrimSpace(aiText)

	conv.History = append(conv.History, userMsg, entities.NewTextMessage(entities.RoleAssistant, aiText))

	speech, err := s.textToSpeech.Synthesize(ctx, aiText, conv.Language)
	if err != nil {
		return nil, fmt.Errorf("text-to-speech failed: %w", err)
	}

	s.logger.Info("Voice turn completed",
		zap.String("language", string(conv.Language)),
		zap.Int("historyLength", len(conv.History)),
		zap.Int("audioBytes", len(speech)))

	return &TurnResult{
		UserText: userText,
		AIText:   aiText,
		Language: conv.Language,
		Audio:    speech,
	}, nil
}

func (s *VoiceTurnService) transcribe(ctx context.Context, conv *Conversation, path string) (string, error) {
	rc, err := s.store.Open(path)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	defer rc.Close()

	config := s.audioConfig
	if conv.Started() {
		config.Language = conv.Language.LocaleCode()
	}

	text, err := s.speechToText.Transcribe(ctx, rc, config)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

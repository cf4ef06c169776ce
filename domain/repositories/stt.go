package repositories

import (
	"context"
	"io"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts one recorded utterance to text. An empty result
	// with a nil error means nothing intelligible was said.
	Transcribe(ctx context.Context, audio io.Reader, config AudioConfig) (string, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	// Language is a BCP-47 hint; empty lets the provider choose among the
	// supported languages.
	Language string `json:"language"`
}

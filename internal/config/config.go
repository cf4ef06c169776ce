// Package config loads process configuration from the environment, after
// reading an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/satriahrh/genui-relay/adapters/tts"
)

// VoiceProviders selects which speech/LLM backends serve voice turns
type VoiceProviders string

const (
	VoiceProvidersMock VoiceProviders = "mock"
	VoiceProvidersLive VoiceProviders = "live"
)

// Config is the resolved process configuration
type Config struct {
	Port      string
	LogFormat string

	Stream StreamConfig
	Voice  VoiceConfig
}

// StreamConfig configures the chat stream relay
type StreamConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Mock forces mock mode; ForceLive forces live mode even without a key
	Mock      bool
	ForceLive bool
}

// VoiceConfig configures the voice socket and its providers
type VoiceConfig struct {
	Providers      VoiceProviders
	MinAudioBytes  int
	TempDir        string
	JWTSecret      string
	GeminiAPIKey   string
	GeminiModel    string
	SpeechEncoding string
	SampleRate     int
	ElevenLabs     tts.ElevenLabsConfig
}

// Load reads .env when present and then the environment
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only
func FromEnv() (Config, error) {
	cfg := Config{
		Port:      getEnv("PORT", "8080"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Stream: StreamConfig{
			APIKey:  os.Getenv("THESYS_API_KEY"),
			BaseURL: os.Getenv("THESYS_BASE_URL"),
			Model:   os.Getenv("THESYS_MODEL"),
		},
		Voice: VoiceConfig{
			TempDir:        os.Getenv("VOICE_TEMP_DIR"),
			JWTSecret:      os.Getenv("VOICE_JWT_SECRET"),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			GeminiModel:    os.Getenv("GEMINI_MODEL"),
			SpeechEncoding: getEnv("GOOGLE_SPEECH_ENCODING", "WEBM_OPUS"),
			ElevenLabs:     tts.NewElevenLabsConfigFromEnv(),
		},
	}

	if raw := strings.TrimSpace(os.Getenv("STREAM_MOCK_MODE")); raw != "" {
		mock, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STREAM_MOCK_MODE %q: %w", raw, err)
		}
		cfg.Stream.Mock = mock
		cfg.Stream.ForceLive = !mock
	}

	minAudio, err := getEnvInt("VOICE_MIN_AUDIO_BYTES", 1000)
	if err != nil {
		return Config{}, err
	}
	cfg.Voice.MinAudioBytes = minAudio

	sampleRate, err := getEnvInt("GOOGLE_SPEECH_SAMPLE_RATE", 48000)
	if err != nil {
		return Config{}, err
	}
	cfg.Voice.SampleRate = sampleRate

	switch providers := VoiceProviders(strings.ToLower(os.Getenv("VOICE_PROVIDERS"))); providers {
	case VoiceProvidersMock, VoiceProvidersLive:
		cfg.Voice.Providers = providers
	case "":
		// live only when every provider has credentials
		cfg.Voice.Providers = VoiceProvidersMock
		if cfg.Voice.GeminiAPIKey != "" && cfg.Voice.ElevenLabs.APIKey != "" {
			cfg.Voice.Providers = VoiceProvidersLive
		}
	default:
		return Config{}, fmt.Errorf("invalid VOICE_PROVIDERS %q: want mock or live", providers)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive integer", key, raw)
	}
	return n, nil
}

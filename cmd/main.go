package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/adapters/llm"
	"github.com/satriahrh/genui-relay/adapters/stt"
	"github.com/satriahrh/genui-relay/adapters/tempaudio"
	"github.com/satriahrh/genui-relay/adapters/tts"
	"github.com/satriahrh/genui-relay/domain/repositories"
	"github.com/satriahrh/genui-relay/internal/api"
	"github.com/satriahrh/genui-relay/internal/auth"
	"github.com/satriahrh/genui-relay/internal/config"
	"github.com/satriahrh/genui-relay/internal/relay"
	"github.com/satriahrh/genui-relay/internal/websocket"
	"github.com/satriahrh/genui-relay/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	store, err := tempaudio.NewFileStore(cfg.Voice.TempDir, logger)
	if err != nil {
		logger.Fatal("Failed to prepare temp audio dir", zap.Error(err))
	}
	cleanup := tempaudio.NewCleanupService(store, 0, 0, logger)
	cleanup.Start()
	defer cleanup.Stop()

	speechToText, chat, textToSpeech, closeProviders, err := newVoiceProviders(ctx, cfg.Voice, logger)
	if err != nil {
		logger.Fatal("Failed to initialize voice providers", zap.Error(err))
	}
	defer closeProviders()

	// Initialize usecase services
	turns := usecase.NewVoiceTurnService(speechToText, chat, textToSpeech, store, repositories.AudioConfig{
		SampleRate: cfg.Voice.SampleRate,
		Encoding:   cfg.Voice.SpeechEncoding,
	}, logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub(turns, websocket.Config{MinAudioBytes: cfg.Voice.MinAudioBytes}, logger)
	go hub.Run(hubCtx)

	chatRelay := relay.New(relay.Config{
		APIKey:    cfg.Stream.APIKey,
		BaseURL:   cfg.Stream.BaseURL,
		Model:     cfg.Stream.Model,
		Mock:      cfg.Stream.Mock,
		ForceLive: cfg.Stream.ForceLive,
	}, nil, logger)

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Relay:  chatRelay,
		Hub:    hub,
		Auth:   auth.NewAuthenticator(cfg.Voice.JWTSecret),
		Logger: logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("streamMode", chatRelay.Config().Mode()),
		zap.String("voiceProviders", string(cfg.Voice.Providers)),
		zap.Bool("voiceAuth", cfg.Voice.JWTSecret != ""))

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopHub()
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Voice turns still running at shutdown", zap.Error(err))
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newVoiceProviders wires either the live providers or the mocks
func newVoiceProviders(ctx context.Context, cfg config.VoiceConfig, logger *zap.Logger) (
	repositories.SpeechToText, repositories.LargeLanguageModel, repositories.TextToSpeech, func(), error,
) {
	if cfg.Providers != config.VoiceProvidersLive {
		logger.Info("Using mock voice providers")
		return stt.NewMockSpeechToText(logger), llm.NewMockLLM(logger), tts.NewMockTextToSpeech(logger), func() {}, nil
	}

	speechToText, err := stt.NewGoogleSpeechToText(ctx, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	chat, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, logger)
	if err != nil {
		speechToText.Close()
		return nil, nil, nil, nil, err
	}

	textToSpeech, err := tts.NewElevenLabsTTS(cfg.ElevenLabs, nil, logger)
	if err != nil {
		speechToText.Close()
		return nil, nil, nil, nil, err
	}

	closeFn := func() {
		if err := speechToText.Close(); err != nil {
			logger.Warn("Failed to close speech client", zap.Error(err))
		}
	}
	return speechToText, chat, textToSpeech, closeFn, nil
}

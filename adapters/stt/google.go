package stt

import (
	"context"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/repositories"
)

const (
	defaultLanguageCode = "en-US"
	maxInlineAudioBytes = 10 << 20
)

// alternativeLanguageCodes are offered to the recognizer when no language
// hint is given, so the first utterance can be detected as either language.
var alternativeLanguageCodes = []string{"ar-SA"}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client    *speech.Client
	recognize recognizeFunc
	logger    *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{
		client: client,
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
		logger: logger,
	}, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Transcribe sends the whole utterance in one synchronous Recognize call
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, audio io.Reader, config repositories.AudioConfig) (string, error) {
	data, err := io.ReadAll(io.LimitReader(audio, maxInlineAudioBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	if len(data) > maxInlineAudioBytes {
		return "", fmt.Errorf("audio exceeds %d bytes", maxInlineAudioBytes)
	}

	req, err := buildRecognizeRequest(data, config)
	if err != nil {
		return "", err
	}

	resp, err := g.recognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	var transcript []string
	for _, result := range resp.GetResults() {
		if alternatives := result.GetAlternatives(); len(alternatives) > 0 {
			// Take the best alternative
			transcript = append(transcript, strings.TrimSpace(alternatives[0].GetTranscript()))
		}
	}

	text := strings.TrimSpace(strings.Join(transcript, " "))
	g.logger.Info("Speech recognized",
		zap.Int("audioBytes", len(data)),
		zap.Int("results", len(resp.GetResults())),
		zap.Int("textLength", len(text)))
	return text, nil
}

func buildRecognizeRequest(data []byte, config repositories.AudioConfig) (*speechpb.RecognizeRequest, error) {
	// Convert encoding string to Google Speech API enum
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, fmt.Errorf("unsupported audio encoding: %s", config.Encoding)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            int32(config.SampleRate),
		LanguageCode:               config.Language,
		EnableAutomaticPunctuation: true,
	}
	if recognitionConfig.LanguageCode == "" {
		recognitionConfig.LanguageCode = defaultLanguageCode
		recognitionConfig.AlternativeLanguageCodes = alternativeLanguageCodes
	}

	return &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	}, nil
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "", "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

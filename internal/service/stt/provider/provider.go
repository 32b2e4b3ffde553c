// Package provider selects and constructs the configured STT adapter.
package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"ai-speech-upload-service/internal/config"
	"ai-speech-upload-service/internal/service/stt"
	"ai-speech-upload-service/internal/service/stt/google"
	"ai-speech-upload-service/internal/service/stt/mock"
	"ai-speech-upload-service/internal/service/stt/whisper"
)

// New returns the instrumented transcriber named by cfg.Provider.
func New(ctx context.Context, cfg config.STTConfig) (stt.Transcriber, error) {
	var t stt.Transcriber

	switch cfg.Provider {
	case "", "mock":
		t = mock.New()
	case "google":
		g, err := google.New(ctx, google.Config{
			LanguageCode:  cfg.LanguageCode,
			SampleRateHz:  cfg.SampleRateHz,
			AudioEncoding: cfg.AudioEncoding,
			Punctuation:   true,
		})
		if err != nil {
			return nil, fmt.Errorf("create google speech client: %w", err)
		}
		t = g
	case "whisper":
		if cfg.WhisperAPIKey == "" {
			log.Warn().Str("baseUrl", cfg.WhisperBaseURL).Msg("WHISPER_API_KEY is empty, requests will be unauthenticated")
		}
		t = whisper.New(whisper.Config{
			BaseURL:  cfg.WhisperBaseURL,
			APIKey:   cfg.WhisperAPIKey,
			Model:    cfg.WhisperModel,
			Language: languageHint(cfg.LanguageCode),
			Timeout:  cfg.RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.Provider)
	}

	log.Info().Str("sttProvider", t.Name()).Msg("STT provider configured")
	return stt.Instrument(t), nil
}

// languageHint turns a BCP-47 tag such as en-US into the ISO-639-1 code
// whisper expects.
func languageHint(code string) string {
	if len(code) >= 2 {
		return code[:2]
	}
	return ""
}

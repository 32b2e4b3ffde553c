// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"

	"ai-speech-upload-service/internal/service/stt"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode  string
	SampleRateHz  int
	AudioEncoding string // LINEAR16, MULAW, FLAC, ...
	Punctuation   bool
}

// DefaultConfig returns settings for 16kHz LINEAR16 WAV recordings.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		AudioEncoding: "LINEAR16",
		Punctuation:   true,
	}
}

// recognizer is the part of speech.Client the adapter calls.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Adapter implements stt.Transcriber using synchronous Recognize.
// Google limits synchronous requests to about one minute of audio.
type Adapter struct {
	client recognizer
	cfg    Config
}

// New creates a Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

func (a *Adapter) Name() string {
	return "google"
}

// Transcribe sends the whole recording in one request and joins the top
// alternative of every result.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte) (stt.Transcript, error) {
	if len(audio) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}

	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
			SampleRateHertz:            int32(a.cfg.SampleRateHz),
			LanguageCode:               a.cfg.LanguageCode,
			EnableAutomaticPunctuation: a.cfg.Punctuation,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("%w: %w", stt.ErrUpstream, err)
	}

	var (
		parts      []string
		confidence float64
		language   string
	)
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		parts = append(parts, strings.TrimSpace(alt.GetTranscript()))
		confidence += float64(alt.GetConfidence())
		if language == "" {
			language = r.GetLanguageCode()
		}
	}
	if len(parts) > 0 {
		confidence /= float64(len(parts))
	}
	if language == "" {
		language = a.cfg.LanguageCode
	}

	return stt.Transcript{
		Text:        strings.Join(parts, " "),
		Confidence:  confidence,
		Language:    language,
		DurationSec: resp.GetTotalBilledTime().AsDuration().Seconds(),
	}, nil
}

// Close releases the client connection.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// parseAudioEncoding converts a string to the Google speech encoding enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

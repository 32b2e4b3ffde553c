// Package whisper transcribes through an OpenAI-compatible
// /audio/transcriptions endpoint (OpenAI, Groq, or a self-hosted server).
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ai-speech-upload-service/internal/service/stt"
)

// Config holds endpoint settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string // optional ISO-639-1 hint
	Timeout  time.Duration
}

// DefaultConfig targets Groq's hosted whisper-large-v3.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "whisper-large-v3",
		Timeout: 10 * time.Minute,
	}
}

// Adapter implements stt.Transcriber.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New creates a whisper adapter.
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Adapter) Name() string {
	return "whisper"
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads the recording as multipart form data and requests the
// verbose JSON format so segment log-probabilities are available.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte) (stt.Transcript, error) {
	if len(audio) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", a.cfg.Model); err != nil {
		return stt.Transcript{}, err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return stt.Transcript{}, err
	}
	if a.cfg.Language != "" {
		if err := mw.WriteField("language", a.cfg.Language); err != nil {
			return stt.Transcript{}, err
		}
	}
	fw, err := mw.CreateFormFile("file", "recording.wav")
	if err != nil {
		return stt.Transcript{}, err
	}
	if _, err := fw.Write(audio); err != nil {
		return stt.Transcript{}, err
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, err
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return stt.Transcript{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("%w: %w", stt.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return stt.Transcript{}, fmt.Errorf("%w: http %d: %s", stt.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return stt.Transcript{}, fmt.Errorf("%w: decode response: %w", stt.ErrUpstream, err)
	}

	return stt.Transcript{
		Text:        strings.TrimSpace(vr.Text),
		Confidence:  confidence(vr),
		Language:    vr.Language,
		DurationSec: vr.Duration,
	}, nil
}

// confidence maps the mean segment log-probability onto 0..1.
func confidence(vr verboseResponse) float64 {
	if len(vr.Segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range vr.Segments {
		sum += s.AvgLogprob
	}
	return math.Exp(sum / float64(len(vr.Segments)))
}

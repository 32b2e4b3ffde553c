// Package mock provides a mock STT adapter for running without cloud credentials.
// It returns canned transcripts, cycling through DefaultUtterances.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-speech-upload-service/internal/service/stt"
)

// SimulatedUtterance is one canned transcription result.
type SimulatedUtterance struct {
	Text       string
	Confidence float64
}

// DefaultUtterances provides sample transcripts for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{Text: "Patient reports mild headache since yesterday morning", Confidence: 0.94},
	{Text: "No known drug allergies", Confidence: 0.97},
	{Text: "Blood pressure is one twenty over eighty", Confidence: 0.91},
	{Text: "Follow up in two weeks if symptoms persist", Confidence: 0.89},
	{Text: "Thank you very much", Confidence: 0.98},
}

// Adapter implements stt.Transcriber with canned responses.
type Adapter struct {
	mu         sync.Mutex
	utterances []SimulatedUtterance
	next       int
	delay      time.Duration
	err        error
}

// New creates a mock adapter over DefaultUtterances.
func New() *Adapter {
	return &Adapter{utterances: DefaultUtterances}
}

// WithDelay makes each call wait d (or until ctx is done) before answering.
func (a *Adapter) WithDelay(d time.Duration) *Adapter {
	a.delay = d
	return a
}

// FailWith makes every subsequent call return err wrapped in stt.ErrUpstream.
func (a *Adapter) FailWith(err error) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	return a
}

func (a *Adapter) Name() string {
	return "mock"
}

// Transcribe returns the next canned utterance.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte) (stt.Transcript, error) {
	if len(audio) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return stt.Transcript{}, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return stt.Transcript{}, fmt.Errorf("%w: %w", stt.ErrUpstream, a.err)
	}

	utt := a.utterances[a.next%len(a.utterances)]
	a.next++
	return stt.Transcript{
		Text:       utt.Text,
		Confidence: utt.Confidence,
		Language:   "en",
	}, nil
}

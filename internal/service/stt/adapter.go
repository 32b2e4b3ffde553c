// Package stt defines the boundary to Speech-to-Text providers.
package stt

import (
	"context"
	"errors"
)

// ErrUpstream wraps every provider-side failure so callers can tell a
// transcription fault from a local one.
var ErrUpstream = errors.New("transcription provider error")

// ErrEmptyAudio is returned when there is nothing to transcribe.
var ErrEmptyAudio = errors.New("no audio to transcribe")

// Transcript is the result of one transcription call.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Language   string  `json:"language,omitempty"`
	// DurationSec is the audio duration reported by the provider, if any.
	DurationSec float64 `json:"durationSec,omitempty"`
}

// Transcriber turns a complete audio file into text.
// Implementations do not retry.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Transcript, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

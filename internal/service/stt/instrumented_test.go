package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

type stubTranscriber struct {
	tr  Transcript
	err error
}

func (s stubTranscriber) Name() string { return "stub" }

func (s stubTranscriber) Transcribe(ctx context.Context, audio []byte) (Transcript, error) {
	return s.tr, s.err
}

func TestInstrument_PassesThrough(t *testing.T) {
	wrapped := Instrument(stubTranscriber{tr: Transcript{Text: "hello"}})

	if wrapped.Name() != "stub" {
		t.Errorf("expected name 'stub', got %s", wrapped.Name())
	}
	tr, err := wrapped.Transcribe(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "hello" {
		t.Errorf("expected 'hello', got %s", tr.Text)
	}
}

func TestInstrument_PropagatesError(t *testing.T) {
	upstream := fmt.Errorf("%w: http 503", ErrUpstream)
	wrapped := Instrument(stubTranscriber{err: upstream})

	_, err := wrapped.Transcribe(context.Background(), []byte("x"))
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("wrapped: %w", context.Canceled), "canceled"},
		{ErrEmptyAudio, "empty_audio"},
		{fmt.Errorf("%w: bad key", ErrUpstream), "upstream"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

type closingTranscriber struct {
	stubTranscriber
	closed bool
}

func (c *closingTranscriber) Close() error {
	c.closed = true
	return nil
}

func TestInstrument_Close(t *testing.T) {
	inner := &closingTranscriber{}
	wrapped := Instrument(inner)

	closer, ok := wrapped.(io.Closer)
	if !ok {
		t.Fatal("expected instrumented transcriber to implement io.Closer")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inner.closed {
		t.Error("expected inner transcriber to be closed")
	}

	if err := Instrument(stubTranscriber{}).(io.Closer).Close(); err != nil {
		t.Errorf("expected nil error for non-closer, got %v", err)
	}
}

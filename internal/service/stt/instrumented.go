package stt

import (
	"context"
	"errors"
	"io"
	"time"

	"ai-speech-upload-service/internal/observability/metrics"
)

type instrumented struct {
	next    Transcriber
	metrics *metrics.Metrics
}

// Instrument wraps t so every call records latency and errors.
func Instrument(t Transcriber) Transcriber {
	return &instrumented{next: t, metrics: metrics.DefaultMetrics}
}

func (i *instrumented) Name() string {
	return i.next.Name()
}

func (i *instrumented) Transcribe(ctx context.Context, audio []byte) (Transcript, error) {
	start := time.Now()
	tr, err := i.next.Transcribe(ctx, audio)
	i.metrics.RecordSTTRequest(i.next.Name(), time.Since(start).Seconds())
	if err != nil {
		i.metrics.RecordSTTError(i.next.Name(), errorType(err))
	}
	return tr, err
}

// Close closes the wrapped transcriber if it holds a connection.
func (i *instrumented) Close() error {
	if c, ok := i.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEmptyAudio):
		return "empty_audio"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "other"
	}
}

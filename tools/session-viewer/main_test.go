package main

import (
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		summary string
	}{
		{"chunk", `{"eventType":"upload.chunk.confirmed","sessionId":"s1","order":0,"storagePath":"sessions/s1/chunks/00000000.wav"}`, "upload.chunk.confirmed chunk 0"},
		{"closed", `{"eventType":"upload.session.closed","sessionId":"s1","artifactPath":"sessions/s1/recording.wav"}`, "upload.session.closed -> sessions/s1/recording.wav"},
		{"failed", `{"eventType":"upload.session.failed","sessionId":"s1","reason":"download: chunk 3"}`, "upload.session.failed (download: chunk 3)"},
		{"opened", `{"eventType":"upload.session.opened","sessionId":"s1","status":"active"}`, "upload.session.opened"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeEvent([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.SessionID != "s1" {
				t.Errorf("expected session s1, got %s", ev.SessionID)
			}
			if got := ev.summary(); got != tt.summary {
				t.Errorf("expected summary %q, got %q", tt.summary, got)
			}
		})
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	if _, err := decodeEvent([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %s", got)
	}
	if got := truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("expected truncated string, got %s", got)
	}
}

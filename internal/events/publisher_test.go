package events

import (
	"context"
	"testing"

	"ai-speech-upload-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerSessions != nil {
				t.Error("expected nil session writer when disabled")
			}
			if p.writerChunks != nil {
				t.Error("expected nil chunk writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:       false,
		Brokers:       []string{"localhost:9092"},
		TopicSessions: "test.sessions",
		TopicChunks:   "test.chunks",
		Principal:     "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicSessions != "test.sessions" {
		t.Errorf("expected topic sessions 'test.sessions', got %s", p.topicSessions)
	}
	if p.topicChunks != "test.chunks" {
		t.Errorf("expected topic chunks 'test.chunks', got %s", p.topicChunks)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:       true,
		Brokers:       []string{"localhost:9092"},
		TopicSessions: "s",
		TopicChunks:   "c",
	})
	defer p.Close()

	if !p.enabled {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerSessions == nil || p.writerSessions.Topic != "s" {
		t.Error("expected session writer on topic 's'")
	}
	if p.writerChunks == nil || p.writerChunks.Topic != "c" {
		t.Error("expected chunk writer on topic 'c'")
	}
}

func TestPublisher_PublishSession_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicSessions: "test.sessions", Principal: "test-svc"})

	err := p.PublishSession(context.Background(), models.SessionEvent{
		EventType: models.EventSessionOpened,
		SessionID: "sess-123",
		Status:    "active",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishChunk_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicChunks: "test.chunks"})

	err := p.PublishChunk(context.Background(), models.ChunkEvent{
		EventType:   models.EventChunkConfirmed,
		SessionID:   "sess-123",
		Order:       4,
		StoragePath: "sessions/sess-123/chunks/00000004.wav",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Channels cannot be marshaled
	err := p.publish(context.Background(), nil, "t", "x", "key", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}

// Package events publishes upload lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/observability/metrics"
)

// Publisher publishes session and chunk events to separate Kafka topics.
// With Kafka disabled it only logs, so callers never need a nil check.
type Publisher struct {
	writerSessions *kafka.Writer
	writerChunks   *kafka.Writer
	principal      string
	topicSessions  string
	topicChunks    string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicSessions string
	TopicChunks   string
	Principal     string
	Enabled       bool
}

// New creates a Kafka event publisher with one topic for session transitions
// and one for chunk confirmations.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicSessions: cfg.TopicSessions,
			topicChunks:   cfg.TopicChunks,
			enabled:       false,
			metrics:       m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSessions", cfg.TopicSessions).
		Str("topicChunks", cfg.TopicChunks).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSessions: newWriter(cfg.Brokers, cfg.TopicSessions, transport),
		writerChunks:   newWriter(cfg.Brokers, cfg.TopicChunks, transport),
		principal:      cfg.Principal,
		topicSessions:  cfg.TopicSessions,
		topicChunks:    cfg.TopicChunks,
		enabled:        true,
		metrics:        m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:  kafka.TCP(brokers...),
		Topic: topic,
		// Hash keeps all events of one session on one partition, in order.
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishSession publishes a session transition keyed by session id.
func (p *Publisher) PublishSession(ctx context.Context, ev models.SessionEvent) error {
	return p.publish(ctx, p.writerSessions, p.topicSessions, ev.EventType, ev.SessionID, ev)
}

// PublishChunk publishes a chunk confirmation keyed by session id.
func (p *Publisher) PublishChunk(ctx context.Context, ev models.ChunkEvent) error {
	return p.publish(ctx, p.writerChunks, p.topicChunks, ev.EventType, ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerSessions != nil {
		if e := p.writerSessions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing session writer")
			err = e
		}
	}
	if p.writerChunks != nil {
		if e := p.writerChunks.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing chunk writer")
			err = e
		}
	}
	return err
}

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/observability/logging"
	"ai-speech-upload-service/internal/observability/metrics"
	"ai-speech-upload-service/internal/store"
)

// EventPublisher receives session transition events.
type EventPublisher interface {
	PublishSession(ctx context.Context, ev models.SessionEvent) error
}

// Manager opens sessions and drives their transitions against the store.
// It holds no per-session state; the store is the only source of truth.
type Manager struct {
	store     store.SessionStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	newID     func() string
	now       func() time.Time
}

// NewManager creates a session manager. publisher may be nil.
func NewManager(s store.SessionStore, publisher EventPublisher) *Manager {
	return &Manager{
		store:     s,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Open creates and persists a new active session.
func (m *Manager) Open(ctx context.Context) (models.UploadSession, error) {
	now := m.now()
	session := models.UploadSession{
		Status:    models.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		session.ID = m.newID()
		err = m.store.CreateSession(ctx, session)
		if !errors.Is(err, store.ErrSessionExists) {
			break
		}
		log.Warn().Str("sessionId", session.ID).Msg("Session id collision, regenerating")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist new session")
		return models.UploadSession{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	m.metrics.RecordSessionOpened()
	logger := logging.WithSession(session.ID)
	logger.Info().Msg("Upload session opened")

	m.publish(ctx, models.SessionEvent{
		EventType: models.EventSessionOpened,
		SessionID: session.ID,
		Status:    session.Status.String(),
		Timestamp: now.UnixMilli(),
	})
	return session, nil
}

// Get returns the session in any status.
func (m *Manager) Get(ctx context.Context, sessionID string) (models.UploadSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return models.UploadSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return models.UploadSession{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return *session, nil
}

// RequireActive returns the session only if it still accepts upload grants.
func (m *Manager) RequireActive(ctx context.Context, sessionID string) (models.UploadSession, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return models.UploadSession{}, err
	}
	if !AcceptsGrants(session.Status) {
		return session, fmt.Errorf("%w: session %s is %s", ErrSessionNotActive, sessionID, session.Status)
	}
	return session, nil
}

// Close moves an active session to closed, recording the artifact location.
func (m *Manager) Close(ctx context.Context, sessionID, artifactPath string, totalChunks int) (models.UploadSession, error) {
	session, err := m.transition(ctx, sessionID, models.SessionClosed, store.SessionUpdate{
		TotalChunks:  totalChunks,
		ArtifactPath: artifactPath,
	})
	if err != nil {
		return session, err
	}

	m.metrics.RecordSessionClosed()
	logger := logging.WithSession(sessionID)
	logger.Info().
		Str("artifactPath", artifactPath).
		Int("totalChunks", totalChunks).
		Msg("Upload session closed")

	m.publish(ctx, models.SessionEvent{
		EventType:    models.EventSessionClosed,
		SessionID:    sessionID,
		Status:       session.Status.String(),
		TotalChunks:  totalChunks,
		ArtifactPath: artifactPath,
		Timestamp:    session.UpdatedAt.UnixMilli(),
	})
	return session, nil
}

// Fail moves an active session to failed.
func (m *Manager) Fail(ctx context.Context, sessionID, reason string) (models.UploadSession, error) {
	session, err := m.transition(ctx, sessionID, models.SessionFailed, store.SessionUpdate{
		FailReason: reason,
	})
	if err != nil {
		return session, err
	}

	m.metrics.RecordSessionFailed(reasonLabel(reason))
	logger := logging.WithSession(sessionID)
	logger.Warn().Str("reason", reason).Msg("Upload session failed")

	m.publish(ctx, models.SessionEvent{
		EventType: models.EventSessionFailed,
		SessionID: sessionID,
		Status:    session.Status.String(),
		Reason:    reason,
		Timestamp: session.UpdatedAt.UnixMilli(),
	})
	return session, nil
}

func (m *Manager) transition(ctx context.Context, sessionID string, to models.SessionStatus, update store.SessionUpdate) (models.UploadSession, error) {
	if !CanTransition(models.SessionActive, to) {
		return models.UploadSession{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, models.SessionActive, to)
	}

	session, err := m.store.TransitionSession(ctx, sessionID, models.SessionActive, to, update)
	switch {
	case err == nil:
		return *session, nil
	case errors.Is(err, store.ErrSessionNotFound):
		return models.UploadSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	case errors.Is(err, store.ErrStatusConflict):
		var current models.UploadSession
		if session != nil {
			current = *session
		}
		return current, fmt.Errorf("%w: session %s is %s, cannot become %s",
			ErrInvalidTransition, sessionID, current.Status, to)
	default:
		return models.UploadSession{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func (m *Manager) publish(ctx context.Context, ev models.SessionEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishSession(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("sessionId", ev.SessionID).
			Str("eventType", ev.EventType).
			Msg("Failed to publish session event")
	}
}

// reasonLabel keeps the failure metric's label set bounded.
func reasonLabel(reason string) string {
	for _, known := range []string{"download", "size_limit", "chunk_limit", "persist", "timeout"} {
		if strings.HasPrefix(reason, known) {
			return known
		}
	}
	return "other"
}

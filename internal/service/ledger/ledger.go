// Package ledger reconciles chunk upload grants and confirmations against the
// session state and the object store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/objectstore"
	"ai-speech-upload-service/internal/observability/logging"
	"ai-speech-upload-service/internal/observability/metrics"
	"ai-speech-upload-service/internal/service/chunk"
	"ai-speech-upload-service/internal/service/session"
	"ai-speech-upload-service/internal/store"
)

var (
	ErrUpstreamSigningFailed = errors.New("failed to sign upload url")
	ErrPathMismatch          = errors.New("reported storage path does not match the granted path")
	ErrSlotNotGranted        = errors.New("no upload slot was granted before the session ended")
	ErrChunkNotInStorage     = errors.New("chunk object not found in storage")
	ErrStorageUnavailable    = errors.New("object storage unavailable")
)

// Sessions is the part of the session manager the ledger depends on.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (models.UploadSession, error)
	RequireActive(ctx context.Context, sessionID string) (models.UploadSession, error)
}

// EventPublisher receives first-time chunk confirmations.
type EventPublisher interface {
	PublishChunk(ctx context.Context, ev models.ChunkEvent) error
}

// Config controls grant lifetime and confirmation checks.
type Config struct {
	PresignTTL time.Duration
	// VerifyUploads makes ConfirmUpload check the object exists before
	// recording it as uploaded.
	VerifyUploads bool
}

// DefaultConfig returns the ledger defaults.
func DefaultConfig() Config {
	return Config{
		PresignTTL:    15 * time.Minute,
		VerifyUploads: true,
	}
}

// UploadGrant is a signed write URL for one chunk slot.
type UploadGrant struct {
	URL       string
	Path      string
	ExpiresAt time.Time
}

// Ack is the result of a confirmation. Duplicate is set when the slot was
// already uploaded; it is a success, not an error.
type Ack struct {
	SessionID   string
	Order       int
	StoragePath string
	Duplicate   bool
}

// Ledger tracks which chunk slots of a session are granted and uploaded.
type Ledger struct {
	sessions  Sessions
	chunks    store.ChunkStore
	objects   objectstore.Store
	publisher EventPublisher
	cfg       Config
	metrics   *metrics.Metrics
}

// New creates a ledger. publisher may be nil.
func New(sessions Sessions, chunks store.ChunkStore, objects objectstore.Store, publisher EventPublisher, cfg Config) *Ledger {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultConfig().PresignTTL
	}
	return &Ledger{
		sessions:  sessions,
		chunks:    chunks,
		objects:   objects,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics.DefaultMetrics,
	}
}

// RequestUploadSlot grants a signed write URL for (sessionID, order) and
// registers the slot as pending. Repeated requests re-sign the same path.
func (l *Ledger) RequestUploadSlot(ctx context.Context, sessionID string, order int) (UploadGrant, error) {
	if err := chunk.ValidateOrder(order); err != nil {
		l.metrics.RecordUploadGrant("rejected")
		return UploadGrant{}, err
	}
	if _, err := l.sessions.RequireActive(ctx, sessionID); err != nil {
		l.metrics.RecordUploadGrant("rejected")
		return UploadGrant{}, err
	}

	logger := logging.WithChunk(sessionID, order)
	path := chunk.StoragePath(sessionID, order)

	signed, err := l.objects.PresignPut(ctx, path, l.cfg.PresignTTL)
	if err != nil {
		logger.Error().Err(err).Str("storagePath", path).Msg("Failed to sign upload url")
		l.metrics.RecordUploadGrant("signing_failed")
		return UploadGrant{}, fmt.Errorf("%w: %w", ErrUpstreamSigningFailed, err)
	}

	slot, err := l.chunks.RegisterPending(ctx, models.ChunkSlot{
		SessionID:   sessionID,
		Order:       order,
		StoragePath: path,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register pending slot")
		l.metrics.RecordUploadGrant("rejected")
		return UploadGrant{}, fmt.Errorf("%w: %w", session.ErrStoreUnavailable, err)
	}

	l.metrics.RecordUploadGrant("granted")
	logger.Debug().
		Str("storagePath", path).
		Str("slotStatus", string(slot.Status)).
		Time("expiresAt", signed.ExpiresAt).
		Msg("Upload slot granted")

	return UploadGrant{URL: signed.URL, Path: path, ExpiresAt: signed.ExpiresAt}, nil
}

// ConfirmUpload records that the client finished uploading (sessionID, order).
//
// The reported path is compared against the canonical path, never trusted.
// Confirmations after the session ended are accepted only for slots granted
// before it ended. A repeated confirmation returns Ack.Duplicate.
func (l *Ledger) ConfirmUpload(ctx context.Context, sessionID string, order int, reportedPath string) (Ack, error) {
	if err := chunk.ValidateOrder(order); err != nil {
		l.metrics.RecordChunkConfirmation("rejected")
		return Ack{}, err
	}
	sess, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		l.metrics.RecordChunkConfirmation("rejected")
		return Ack{}, err
	}

	logger := logging.WithChunk(sessionID, order)
	path := chunk.StoragePath(sessionID, order)
	ack := Ack{SessionID: sessionID, Order: order, StoragePath: path}

	if !chunk.Matches(sessionID, order, reportedPath) {
		logger.Warn().Str("reportedPath", reportedPath).Str("expectedPath", path).Msg("Storage path mismatch")
		l.metrics.RecordChunkConfirmation("rejected")
		return Ack{}, fmt.Errorf("%w: expected %s", ErrPathMismatch, path)
	}

	existing, err := l.chunks.GetChunk(ctx, sessionID, order)
	switch {
	case err == nil:
		if existing.Status == models.ChunkUploaded {
			l.metrics.RecordChunkConfirmation("duplicate")
			logger.Debug().Msg("Chunk upload was already recorded")
			ack.Duplicate = true
			return ack, nil
		}
	case errors.Is(err, store.ErrChunkNotFound):
		if sess.Status.IsTerminal() {
			l.metrics.RecordChunkConfirmation("rejected")
			return Ack{}, fmt.Errorf("%w: session %s is %s", ErrSlotNotGranted, sessionID, sess.Status)
		}
	default:
		l.metrics.RecordChunkConfirmation("rejected")
		return Ack{}, fmt.Errorf("%w: %w", session.ErrStoreUnavailable, err)
	}

	if l.cfg.VerifyUploads {
		ok, err := l.objects.Exists(ctx, path)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to verify chunk in storage")
			l.metrics.RecordChunkConfirmation("rejected")
			return Ack{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		if !ok {
			l.metrics.RecordChunkConfirmation("rejected")
			return Ack{}, fmt.Errorf("%w: %s", ErrChunkNotInStorage, path)
		}
	}

	slot, err := l.chunks.MarkUploaded(ctx, models.ChunkSlot{
		SessionID:   sessionID,
		Order:       order,
		StoragePath: path,
	})
	if errors.Is(err, store.ErrAlreadyUploaded) {
		// Lost the race to a concurrent confirmation of the same slot.
		l.metrics.RecordChunkConfirmation("duplicate")
		ack.Duplicate = true
		return ack, nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record chunk upload")
		l.metrics.RecordChunkConfirmation("rejected")
		return Ack{}, fmt.Errorf("%w: %w", session.ErrStoreUnavailable, err)
	}

	l.metrics.RecordChunkConfirmation("new")
	logger.Info().Str("storagePath", path).Msg("Chunk upload recorded")

	if l.publisher != nil {
		ev := models.ChunkEvent{
			EventType:   models.EventChunkConfirmed,
			SessionID:   sessionID,
			Order:       order,
			StoragePath: path,
			Timestamp:   time.Now().UnixMilli(),
		}
		if slot.UploadedAt != nil {
			ev.Timestamp = slot.UploadedAt.UnixMilli()
		}
		if err := l.publisher.PublishChunk(ctx, ev); err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Int("chunkOrder", order).Msg("Failed to publish chunk event")
		}
	}
	return ack, nil
}

// ListConfirmedChunks returns the uploaded slots of a session ordered by
// chunk order ascending.
func (l *Ledger) ListConfirmedChunks(ctx context.Context, sessionID string) ([]models.ChunkSlot, error) {
	if _, err := l.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	slots, err := l.chunks.ListChunks(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrStoreUnavailable, err)
	}

	confirmed := make([]models.ChunkSlot, 0, len(slots))
	for _, s := range slots {
		if s.Status == models.ChunkUploaded {
			confirmed = append(confirmed, s)
		}
	}
	sortByOrder(confirmed)
	return confirmed, nil
}

func sortByOrder(slots []models.ChunkSlot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Order < slots[j].Order
	})
}

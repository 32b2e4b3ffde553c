// Package store defines the persistence contract for upload sessions and chunk slots.
package store

import (
	"context"
	"errors"

	"ai-speech-upload-service/internal/models"
)

var (
	ErrSessionNotFound = errors.New("upload session not found")
	ErrSessionExists   = errors.New("upload session already exists")
	// ErrStatusConflict is returned when a conditional transition finds a different status.
	ErrStatusConflict  = errors.New("session status changed concurrently")
	ErrChunkNotFound   = errors.New("chunk slot not found")
	ErrAlreadyUploaded = errors.New("chunk slot already uploaded")
)

// ReadinessCheck is implemented by stores that can report backend health.
type ReadinessCheck interface {
	IsReady(ctx context.Context) error
	Name() string
}

// SessionUpdate carries the fields written alongside a status transition.
type SessionUpdate struct {
	TotalChunks  int
	ArtifactPath string
	FailReason   string
}

// SessionStore persists upload sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session models.UploadSession) error
	GetSession(ctx context.Context, sessionID string) (*models.UploadSession, error)
	// TransitionSession moves a session from one status to another only if its
	// current status equals from. It returns ErrStatusConflict otherwise.
	TransitionSession(ctx context.Context, sessionID string, from, to models.SessionStatus, update SessionUpdate) (*models.UploadSession, error)

	ReadinessCheck
}

// ChunkStore persists chunk slots with (sessionID, order) uniqueness.
type ChunkStore interface {
	// RegisterPending creates or refreshes a pending slot. An uploaded slot is
	// never downgraded; it is returned unchanged.
	RegisterPending(ctx context.Context, slot models.ChunkSlot) (models.ChunkSlot, error)
	// MarkUploaded creates the slot as uploaded or promotes a pending one. If the
	// slot is already uploaded it returns the stored slot and ErrAlreadyUploaded.
	MarkUploaded(ctx context.Context, slot models.ChunkSlot) (models.ChunkSlot, error)
	GetChunk(ctx context.Context, sessionID string, order int) (*models.ChunkSlot, error)
	// ListChunks returns every slot of a session in no particular order.
	ListChunks(ctx context.Context, sessionID string) ([]models.ChunkSlot, error)

	ReadinessCheck
}

// Package memory provides an in-process session and chunk store.
// It is used for local development and tests; uniqueness of (session, order)
// is enforced the same way the DynamoDB store enforces it.
package memory

import (
	"context"
	"sync"
	"time"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/store"
)

type chunkKey struct {
	sessionID string
	order     int
}

// Store implements store.SessionStore and store.ChunkStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]models.UploadSession
	chunks   map[chunkKey]models.ChunkSlot
	bySess   map[string][]int
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sessions: make(map[string]models.UploadSession),
		chunks:   make(map[chunkKey]models.ChunkSlot),
		bySess:   make(map[string][]int),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) IsReady(ctx context.Context) error {
	return nil
}

func (s *Store) Name() string {
	return "MemoryStore"
}

func (s *Store) CreateSession(ctx context.Context, session models.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return store.ErrSessionExists
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.UploadSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return &session, nil
}

func (s *Store) TransitionSession(
	ctx context.Context,
	sessionID string,
	from, to models.SessionStatus,
	update store.SessionUpdate,
) (*models.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	if session.Status != from {
		return &session, store.ErrStatusConflict
	}

	session.Status = to
	session.UpdatedAt = s.now()
	if update.TotalChunks > 0 {
		session.TotalChunks = update.TotalChunks
	}
	if update.ArtifactPath != "" {
		session.ArtifactPath = update.ArtifactPath
	}
	if update.FailReason != "" {
		session.FailReason = update.FailReason
	}
	s.sessions[sessionID] = session
	return &session, nil
}

func (s *Store) RegisterPending(ctx context.Context, slot models.ChunkSlot) (models.ChunkSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chunkKey{slot.SessionID, slot.Order}
	existing, ok := s.chunks[key]
	if ok && existing.Status == models.ChunkUploaded {
		return existing, nil
	}

	slot.Status = models.ChunkPending
	slot.UploadedAt = nil
	if ok {
		slot.CreatedAt = existing.CreatedAt
	} else {
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = s.now()
		}
		s.bySess[slot.SessionID] = append(s.bySess[slot.SessionID], slot.Order)
	}
	s.chunks[key] = slot
	return slot, nil
}

func (s *Store) MarkUploaded(ctx context.Context, slot models.ChunkSlot) (models.ChunkSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chunkKey{slot.SessionID, slot.Order}
	existing, ok := s.chunks[key]
	if ok && existing.Status == models.ChunkUploaded {
		return existing, store.ErrAlreadyUploaded
	}

	now := s.now()
	slot.Status = models.ChunkUploaded
	slot.UploadedAt = &now
	if ok {
		slot.CreatedAt = existing.CreatedAt
	} else {
		slot.CreatedAt = now
		s.bySess[slot.SessionID] = append(s.bySess[slot.SessionID], slot.Order)
	}
	s.chunks[key] = slot
	return slot, nil
}

func (s *Store) GetChunk(ctx context.Context, sessionID string, order int) (*models.ChunkSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.chunks[chunkKey{sessionID, order}]
	if !ok {
		return nil, store.ErrChunkNotFound
	}
	return &slot, nil
}

func (s *Store) ListChunks(ctx context.Context, sessionID string) ([]models.ChunkSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := s.bySess[sessionID]
	out := make([]models.ChunkSlot, 0, len(orders))
	for _, order := range orders {
		out = append(out, s.chunks[chunkKey{sessionID, order}])
	}
	return out, nil
}

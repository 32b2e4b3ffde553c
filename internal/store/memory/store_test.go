package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/store"
)

func newSession(id string) models.UploadSession {
	now := time.Now().UTC()
	return models.UploadSession{ID: id, Status: models.SessionActive, CreatedAt: now, UpdatedAt: now}
}

func TestStore_CreateAndGetSession(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateSession(ctx, newSession("s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateSession(ctx, newSession("s1")); err != store.ErrSessionExists {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.SessionActive {
		t.Errorf("expected active, got %s", got.Status)
	}

	if _, err := s.GetSession(ctx, "missing"); err != store.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStore_TransitionSession(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.CreateSession(ctx, newSession("s1"))

	got, err := s.TransitionSession(ctx, "s1", models.SessionActive, models.SessionClosed, store.SessionUpdate{
		TotalChunks:  3,
		ArtifactPath: "sessions/s1/recording.wav",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.SessionClosed || got.TotalChunks != 3 || got.ArtifactPath == "" {
		t.Errorf("unexpected session after transition: %+v", got)
	}

	if _, err := s.TransitionSession(ctx, "s1", models.SessionActive, models.SessionFailed, store.SessionUpdate{}); err != store.ErrStatusConflict {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
	if _, err := s.TransitionSession(ctx, "nope", models.SessionActive, models.SessionFailed, store.SessionUpdate{}); err != store.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStore_RegisterPending_DoesNotDowngrade(t *testing.T) {
	s := New()
	ctx := context.Background()
	slot := models.ChunkSlot{SessionID: "s1", Order: 0, StoragePath: "p0"}

	if _, err := s.MarkUploaded(ctx, slot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.RegisterPending(ctx, slot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.ChunkUploaded {
		t.Errorf("expected uploaded slot to stay uploaded, got %s", got.Status)
	}
}

func TestStore_RegisterPending_Twice(t *testing.T) {
	s := New()
	ctx := context.Background()
	slot := models.ChunkSlot{SessionID: "s1", Order: 4, StoragePath: "p4"}

	first, _ := s.RegisterPending(ctx, slot)
	second, _ := s.RegisterPending(ctx, slot)

	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Error("expected re-registration to keep the original creation time")
	}
	chunks, _ := s.ListChunks(ctx, "s1")
	if len(chunks) != 1 {
		t.Errorf("expected 1 slot, got %d", len(chunks))
	}
}

func TestStore_MarkUploaded_Duplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	slot := models.ChunkSlot{SessionID: "s1", Order: 0, StoragePath: "p0"}

	if _, err := s.RegisterPending(ctx, slot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.MarkUploaded(ctx, slot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.ChunkUploaded || got.UploadedAt == nil {
		t.Errorf("expected uploaded slot with timestamp, got %+v", got)
	}

	again, err := s.MarkUploaded(ctx, slot)
	if err != store.ErrAlreadyUploaded {
		t.Errorf("expected ErrAlreadyUploaded, got %v", err)
	}
	if again.Status != models.ChunkUploaded {
		t.Errorf("expected stored slot to be returned, got %+v", again)
	}
}

func TestStore_MarkUploaded_ConcurrentSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	slot := models.ChunkSlot{SessionID: "s1", Order: 0, StoragePath: "p0"}

	const callers = 50
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.MarkUploaded(ctx, slot)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		switch err {
		case nil:
			winners++
		case store.ErrAlreadyUploaded:
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}

	chunks, _ := s.ListChunks(ctx, "s1")
	if len(chunks) != 1 {
		t.Errorf("expected exactly one stored slot, got %d", len(chunks))
	}
}

func TestStore_GetChunk(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetChunk(ctx, "s1", 0); err != store.ErrChunkNotFound {
		t.Errorf("expected ErrChunkNotFound, got %v", err)
	}
	s.RegisterPending(ctx, models.ChunkSlot{SessionID: "s1", Order: 0, StoragePath: "p0"})
	got, err := s.GetChunk(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.ChunkPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}

// Package assembly concatenates a completed session's chunks into one
// artifact and hands it to the transcription adapter.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/objectstore"
	"ai-speech-upload-service/internal/observability/logging"
	"ai-speech-upload-service/internal/observability/metrics"
	"ai-speech-upload-service/internal/service/chunk"
	"ai-speech-upload-service/internal/service/ledger"
	"ai-speech-upload-service/internal/service/session"
	"ai-speech-upload-service/internal/service/stt"
)

var (
	ErrInvalidTotal          = errors.New("totalChunks must be between 1 and the configured chunk limit")
	ErrIncompleteSession     = errors.New("session has missing chunks")
	ErrAssemblyFailed        = errors.New("assembly failed")
	ErrAssemblyInProgress    = fmt.Errorf("%w: assembly already in progress", session.ErrInvalidTransition)
	ErrInvalidPath           = errors.New("storage path is invalid")
	ErrArtifactNotFound      = errors.New("audio file not found in storage")
	ErrTranscriptionUpstream = errors.New("transcription failed")
)

const failWriteTimeout = 10 * time.Second

// IncompleteError lists the orders that keep a session from assembling.
type IncompleteError struct {
	Missing    []int
	Unexpected []int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: missing %v, unexpected %v", ErrIncompleteSession, e.Missing, e.Unexpected)
}

func (e *IncompleteError) Unwrap() error {
	return ErrIncompleteSession
}

// Sessions is the part of the session manager the coordinator drives.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (models.UploadSession, error)
	Close(ctx context.Context, sessionID, artifactPath string, totalChunks int) (models.UploadSession, error)
	Fail(ctx context.Context, sessionID, reason string) (models.UploadSession, error)
}

// Ledger lists the confirmed chunks of a session.
type Ledger interface {
	ListConfirmedChunks(ctx context.Context, sessionID string) ([]models.ChunkSlot, error)
}

// Artifact is an assembled recording held in a pooled buffer.
// Release must be called exactly once when the bytes are no longer needed.
type Artifact struct {
	SessionID string
	Path      string
	Chunks    int

	buf  *bytebufferpool.ByteBuffer
	pool *bytebufferpool.Pool
}

// Bytes returns the artifact contents. The slice is invalid after Release.
func (a *Artifact) Bytes() []byte {
	return a.buf.B
}

// Len returns the artifact size in bytes.
func (a *Artifact) Len() int {
	return a.buf.Len()
}

// Release returns the buffer to the pool.
func (a *Artifact) Release() {
	if a == nil || a.buf == nil {
		return
	}
	a.pool.Put(a.buf)
	a.buf = nil
}

// Result is the outcome of Complete.
type Result struct {
	SessionID    string
	ArtifactPath string
	Chunks       int
	Bytes        int
	Transcript   stt.Transcript
}

// Coordinator assembles sessions. At most one assembly per session runs in
// this process; across processes the conditional session transition decides.
type Coordinator struct {
	sessions    Sessions
	ledger      Ledger
	objects     objectstore.Store
	transcriber stt.Transcriber
	limits      Limits
	metrics     *metrics.Metrics
	pool        bytebufferpool.Pool

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a coordinator with DefaultLimits.
func New(sessions Sessions, l Ledger, objects objectstore.Store, transcriber stt.Transcriber) *Coordinator {
	return NewWithLimits(sessions, l, objects, transcriber, DefaultLimits())
}

// NewWithLimits creates a coordinator with custom limits.
func NewWithLimits(sessions Sessions, l Ledger, objects objectstore.Store, transcriber stt.Transcriber, limits Limits) *Coordinator {
	return &Coordinator{
		sessions:    sessions,
		ledger:      l,
		objects:     objects,
		transcriber: transcriber,
		limits:      limits,
		metrics:     metrics.DefaultMetrics,
		inFlight:    make(map[string]struct{}),
	}
}

func (c *Coordinator) claim(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[sessionID]; busy {
		return false
	}
	c.inFlight[sessionID] = struct{}{}
	return true
}

func (c *Coordinator) release(sessionID string) {
	c.mu.Lock()
	delete(c.inFlight, sessionID)
	c.mu.Unlock()
}

func (c *Coordinator) requireOpen(ctx context.Context, sessionID string) error {
	sess, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status.IsTerminal() {
		return fmt.Errorf("%w: session %s is already %s", session.ErrInvalidTransition, sessionID, sess.Status)
	}
	return nil
}

// detach keeps external calls running when the caller goes away, so the
// session never stops between a persisted artifact and its status write.
func (c *Coordinator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.limits.Timeout > 0 {
		return context.WithTimeout(ctx, c.limits.Timeout)
	}
	return context.WithCancel(ctx)
}

// Assemble concatenates chunks 0..totalChunks-1 of an active session in
// order, persists the artifact and closes the session.
//
// A gap leaves the session active so the client can upload the missing
// chunks and retry. A download or persist fault marks the session failed.
func (c *Coordinator) Assemble(ctx context.Context, sessionID string, totalChunks int) (*Artifact, error) {
	if totalChunks <= 0 || (c.limits.MaxChunks > 0 && totalChunks > c.limits.MaxChunks) {
		if totalChunks > 0 {
			c.metrics.RecordLimitExceeded("max_chunks")
		}
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTotal, totalChunks)
	}

	if err := c.requireOpen(ctx, sessionID); err != nil {
		return nil, err
	}

	if !c.claim(sessionID) {
		return nil, ErrAssemblyInProgress
	}
	defer c.release(sessionID)

	// A previous holder of the claim may have closed the session since the
	// first read.
	if err := c.requireOpen(ctx, sessionID); err != nil {
		return nil, err
	}

	ctx, cancel := c.detach(ctx)
	defer cancel()

	logger := logging.WithSession(sessionID)
	start := time.Now()
	c.metrics.RecordAssemblyStart()

	art, err := c.assemble(ctx, logger, sessionID, totalChunks)
	if err != nil {
		c.metrics.RecordAssemblyEnd(false, time.Since(start).Seconds(), 0, 0)
		return nil, err
	}

	c.metrics.RecordAssemblyEnd(true, time.Since(start).Seconds(), art.Chunks, art.Len())
	logger.Info().
		Int("chunks", art.Chunks).
		Int("bytes", art.Len()).
		Str("artifactPath", art.Path).
		Dur("duration", time.Since(start)).
		Msg("Session assembled")
	return art, nil
}

func (c *Coordinator) assemble(ctx context.Context, logger zerolog.Logger, sessionID string, totalChunks int) (*Artifact, error) {
	confirmed, err := c.ledger.ListConfirmedChunks(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	gaps := ledger.Gaps(confirmed, totalChunks)
	if !gaps.Complete() {
		logger.Info().
			Ints("missing", gaps.Missing).
			Ints("unexpected", gaps.Unexpected).
			Msg("Assembly rejected, session incomplete")
		c.metrics.RecordAssemblyFailure("incomplete")
		return nil, &IncompleteError{Missing: gaps.Missing, Unexpected: gaps.Unexpected}
	}

	art := &Artifact{
		SessionID: sessionID,
		Path:      chunk.ArtifactPath(sessionID),
		Chunks:    len(confirmed),
		buf:       c.pool.Get(),
		pool:      &c.pool,
	}

	w := newLimitedWriter(art.buf, c.limits.MaxArtifactBytes)
	for _, slot := range confirmed {
		if _, err := c.objects.Get(ctx, slot.StoragePath, w); err != nil {
			art.Release()
			if errors.Is(err, errSizeLimit) {
				c.metrics.RecordLimitExceeded("max_artifact_bytes")
				return nil, c.fail(ctx, logger, sessionID, "size_limit",
					fmt.Errorf("artifact exceeds %d bytes at chunk %d", c.limits.MaxArtifactBytes, slot.Order))
			}
			stage := "download"
			if errors.Is(err, context.DeadlineExceeded) {
				stage = "timeout"
			}
			return nil, c.fail(ctx, logger, sessionID, stage, fmt.Errorf("chunk %d: %w", slot.Order, err))
		}
	}

	if err := c.objects.Put(ctx, art.Path, art.Bytes()); err != nil {
		art.Release()
		stage := "persist"
		if errors.Is(err, context.DeadlineExceeded) {
			stage = "timeout"
		}
		return nil, c.fail(ctx, logger, sessionID, stage, err)
	}

	if _, err := c.sessions.Close(ctx, sessionID, art.Path, totalChunks); err != nil {
		// Another process closed or failed the session first.
		art.Release()
		logger.Warn().Err(err).Msg("Session could not be closed after assembly")
		return nil, err
	}
	return art, nil
}

// fail marks the session failed and returns the error for the caller.
func (c *Coordinator) fail(ctx context.Context, logger zerolog.Logger, sessionID, stage string, cause error) error {
	c.metrics.RecordAssemblyFailure(stage)
	reason := stage + ": " + cause.Error()

	// The assembly context may already be past its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	if _, err := c.sessions.Fail(ctx, sessionID, reason); err != nil {
		logger.Error().Err(err).Str("reason", reason).Msg("Failed to mark session failed")
	}
	logger.Error().Err(cause).Str("stage", stage).Msg("Assembly failed")
	return fmt.Errorf("%w: %s: %w", ErrAssemblyFailed, stage, cause)
}

// Complete assembles the session and transcribes the artifact. When
// transcription fails the session stays closed and the artifact remains
// available to TranscribePath.
func (c *Coordinator) Complete(ctx context.Context, sessionID string, totalChunks int) (Result, error) {
	art, err := c.Assemble(ctx, sessionID, totalChunks)
	if err != nil {
		return Result{}, err
	}
	defer art.Release()

	res := Result{
		SessionID:    sessionID,
		ArtifactPath: art.Path,
		Chunks:       art.Chunks,
		Bytes:        art.Len(),
	}

	tr, err := c.transcribe(ctx, art.Path, art.Bytes())
	if err != nil {
		return res, err
	}
	res.Transcript = tr
	return res, nil
}

// TranscribePath downloads an object and transcribes it.
func (c *Coordinator) TranscribePath(ctx context.Context, storagePath string) (stt.Transcript, error) {
	if storagePath == "" || strings.Contains(storagePath, "..") || strings.HasPrefix(storagePath, "/") {
		return stt.Transcript{}, fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}

	dctx, cancel := c.detach(ctx)
	defer cancel()

	buf := c.pool.Get()
	defer c.pool.Put(buf)

	if _, err := c.objects.Get(dctx, storagePath, newLimitedWriter(buf, c.limits.MaxArtifactBytes)); err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			return stt.Transcript{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, storagePath)
		}
		if errors.Is(err, errSizeLimit) {
			c.metrics.RecordLimitExceeded("max_artifact_bytes")
			return stt.Transcript{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidPath, storagePath, c.limits.MaxArtifactBytes)
		}
		return stt.Transcript{}, fmt.Errorf("%w: download %s: %w", ErrTranscriptionUpstream, storagePath, err)
	}

	return c.transcribe(ctx, storagePath, buf.B)
}

func (c *Coordinator) transcribe(ctx context.Context, storagePath string, audio []byte) (stt.Transcript, error) {
	ctx, cancel := c.detach(ctx)
	defer cancel()

	logger := logging.WithTranscription(storagePath, c.transcriber.Name())
	start := time.Now()

	tr, err := c.transcriber.Transcribe(ctx, audio)
	if err != nil {
		logger.Error().Err(err).Int("bytes", len(audio)).Msg("Transcription failed")
		return stt.Transcript{}, fmt.Errorf("%w: %w", ErrTranscriptionUpstream, err)
	}

	logger.Info().
		Int("bytes", len(audio)).
		Int("chars", len(tr.Text)).
		Dur("duration", time.Since(start)).
		Msg("Transcription completed")
	return tr, nil
}

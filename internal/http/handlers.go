package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-speech-upload-service/internal/app"
	"ai-speech-upload-service/internal/apperror"
	"ai-speech-upload-service/internal/schema"
	"ai-speech-upload-service/internal/service/assembly"
)

// Repeat notifications get the same message; only the duplicate flag differs.
const msgChunkRecorded = "Chunk upload successfully recorded."

type handlers struct {
	app *app.Application
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type presignResponse struct {
	PresignedURL string    `json:"presignedUrl"`
	Path         string    `json:"path"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type notifyResponse struct {
	Message   string `json:"message"`
	Duplicate bool   `json:"duplicate"`
}

type completeResponse struct {
	SessionID     string  `json:"sessionId"`
	ArtifactPath  string  `json:"artifactPath"`
	Chunks        int     `json:"chunks"`
	Bytes         int     `json:"bytes"`
	Transcription string  `json:"transcription"`
	Confidence    float64 `json:"confidence"`
	Language      string  `json:"language,omitempty"`
}

type sessionStatusResponse struct {
	SessionID       string    `json:"sessionId"`
	Status          string    `json:"status"`
	TotalChunks     int       `json:"totalChunks,omitempty"`
	ArtifactPath    string    `json:"artifactPath,omitempty"`
	FailReason      string    `json:"failReason,omitempty"`
	ConfirmedChunks []int     `json:"confirmedChunks"`
	PendingChunks   []int     `json:"pendingChunks"`
	MissingChunks   []int     `json:"missingChunks"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
}

// createSession handles POST /upload-session.
func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Sessions.Open(r.Context())
	if err != nil {
		writeAppError(w, r, apperror.New(apperror.KindUpstream, "Could not create upload session.", err), nil)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: s.ID})
}

// presign handles POST /get-presigned-url.
func (h *handlers) presign(w http.ResponseWriter, r *http.Request) {
	var req schema.PresignRequest
	if err := h.app.Validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	grant, err := h.app.Ledger.RequestUploadSlot(r.Context(), req.SessionID, *req.ChunkOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{
		PresignedURL: grant.URL,
		Path:         grant.Path,
		ExpiresAt:    grant.ExpiresAt.UTC(),
	})
}

// notify handles POST /notify-chunk-uploaded. A repeated notification is a
// success with its own message.
func (h *handlers) notify(w http.ResponseWriter, r *http.Request) {
	var req schema.NotifyRequest
	if err := h.app.Validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ack, err := h.app.Ledger.ConfirmUpload(r.Context(), req.SessionID, *req.ChunkOrder, req.StoragePath)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, notifyResponse{Message: msgChunkRecorded, Duplicate: ack.Duplicate})
}

// complete handles POST /complete-session.
func (h *handlers) complete(w http.ResponseWriter, r *http.Request) {
	var req schema.CompleteRequest
	if err := h.app.Validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.app.Assembly.Complete(r.Context(), req.SessionID, *req.TotalChunks)
	if errors.Is(err, assembly.ErrTranscriptionUpstream) {
		// The session is closed and the artifact persisted; tell the client
		// where to retry transcription from.
		ae := classify(err)
		writeAppError(w, r, ae, map[string]string{
			"sessionId":    res.SessionID,
			"artifactPath": res.ArtifactPath,
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, completeResponse{
		SessionID:     res.SessionID,
		ArtifactPath:  res.ArtifactPath,
		Chunks:        res.Chunks,
		Bytes:         res.Bytes,
		Transcription: res.Transcript.Text,
		Confidence:    res.Transcript.Confidence,
		Language:      res.Transcript.Language,
	})
}

// sessionStatus handles GET /upload-session/{sessionId}.
func (h *handlers) sessionStatus(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Ledger.Status(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionStatusResponse{
		SessionID:       p.Session.ID,
		Status:          p.Session.Status.String(),
		TotalChunks:     p.Session.TotalChunks,
		ArtifactPath:    p.Session.ArtifactPath,
		FailReason:      p.Session.FailReason,
		ConfirmedChunks: p.ConfirmedOrders,
		PendingChunks:   p.PendingOrders,
		MissingChunks:   p.Missing,
		CreatedAt:       p.Session.CreatedAt,
		UpdatedAt:       p.Session.UpdatedAt,
	})
}

// transcribe handles POST /transcribe-audio.
func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	var req schema.TranscribeRequest
	if err := h.app.Validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tr, err := h.app.Assembly.TranscribePath(r.Context(), req.StoragePath)
	if errors.Is(err, assembly.ErrTranscriptionUpstream) {
		writeAppError(w, r, apperror.New(apperror.KindUpstream, "Transcription failed.", err), nil)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Transcription: tr.Text})
}

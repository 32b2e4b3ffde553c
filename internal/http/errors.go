package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-speech-upload-service/internal/apperror"
	"ai-speech-upload-service/internal/service/assembly"
	"ai-speech-upload-service/internal/service/chunk"
	"ai-speech-upload-service/internal/service/ledger"
	"ai-speech-upload-service/internal/service/session"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// classify maps domain errors to a client-facing kind and message. Order
// matters where one sentinel wraps another.
func classify(err error) *apperror.Error {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return ae
	}

	var incomplete *assembly.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		return apperror.New(apperror.KindStateConflict, "Session has missing chunks.", err)
	case errors.Is(err, assembly.ErrAssemblyInProgress):
		return apperror.New(apperror.KindStateConflict, "Session assembly is already in progress.", err)
	case errors.Is(err, assembly.ErrAssemblyFailed):
		return apperror.New(apperror.KindUpstream, "Could not assemble session audio.", err)
	case errors.Is(err, assembly.ErrTranscriptionUpstream):
		return apperror.New(apperror.KindBadGateway, "Transcription failed.", err)
	case errors.Is(err, assembly.ErrArtifactNotFound):
		return apperror.New(apperror.KindNotFound, "Audio file not found in storage.", err)
	case errors.Is(err, assembly.ErrInvalidTotal),
		errors.Is(err, assembly.ErrInvalidPath),
		errors.Is(err, chunk.ErrInvalidOrder),
		errors.Is(err, chunk.ErrInvalidSessionID),
		errors.Is(err, ledger.ErrPathMismatch):
		return apperror.New(apperror.KindValidation, "Invalid request.", err)
	case errors.Is(err, session.ErrSessionNotFound):
		return apperror.New(apperror.KindNotFound, "Session not found.", err)
	case errors.Is(err, session.ErrSessionNotActive):
		return apperror.New(apperror.KindForbidden, "Session is not active.", err)
	case errors.Is(err, session.ErrInvalidTransition):
		return apperror.New(apperror.KindStateConflict, "Session is no longer active.", err)
	case errors.Is(err, ledger.ErrSlotNotGranted):
		return apperror.New(apperror.KindStateConflict, "No upload slot was granted for this chunk.", err)
	case errors.Is(err, ledger.ErrChunkNotInStorage):
		return apperror.New(apperror.KindNotFound, "Chunk not found in storage.", err)
	case errors.Is(err, ledger.ErrUpstreamSigningFailed):
		return apperror.New(apperror.KindUpstream, "Could not generate signed URL.", err)
	case errors.Is(err, session.ErrStoreUnavailable),
		errors.Is(err, ledger.ErrStorageUnavailable):
		return apperror.New(apperror.KindUpstream, "Storage is unavailable.", err)
	default:
		return apperror.New(apperror.KindInternal, "An unexpected error occurred.", err)
	}
}

// writeError logs err and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	writeAppError(w, r, ae, detailsOf(ae))
}

func writeAppError(w http.ResponseWriter, r *http.Request, ae *apperror.Error, details any) {
	status := ae.Kind.HTTPStatus()

	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(ae.Err).
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("kind", ae.Kind.String()).
		Int("status", status).
		Msg(ae.Message)

	writeJSON(w, status, errorBody{Error: ae.Message, Details: details})
}

// detailsOf exposes the cause text for client faults and structured gap
// information for incomplete sessions. Server faults carry no details.
func detailsOf(ae *apperror.Error) any {
	var incomplete *assembly.IncompleteError
	if errors.As(ae, &incomplete) {
		return map[string][]int{
			"missing":    nonNil(incomplete.Missing),
			"unexpected": nonNil(incomplete.Unexpected),
		}
	}
	if ae.Err == nil || ae.Kind.HTTPStatus() >= http.StatusInternalServerError {
		return nil
	}
	return ae.Err.Error()
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

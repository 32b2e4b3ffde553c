// Package schema defines the JSON request bodies of the upload API and
// validates them before they reach the domain services.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"ai-speech-upload-service/internal/apperror"
)

// DefaultMaxBodyBytes caps request bodies. Audio never travels through
// these endpoints.
const DefaultMaxBodyBytes = 64 * 1024

// Request is a decoded body that can report its missing required fields.
type Request interface {
	Missing() []string
}

// PresignRequest is the body of /get-presigned-url.
type PresignRequest struct {
	SessionID  string `json:"sessionId"`
	ChunkOrder *int   `json:"chunkOrder"`
}

func (r *PresignRequest) Missing() []string {
	var m []string
	if r.SessionID == "" {
		m = append(m, "sessionId")
	}
	if r.ChunkOrder == nil {
		m = append(m, "chunkOrder")
	}
	return m
}

// NotifyRequest is the body of /notify-chunk-uploaded.
type NotifyRequest struct {
	SessionID   string `json:"sessionId"`
	ChunkOrder  *int   `json:"chunkOrder"`
	StoragePath string `json:"storagePath"`
}

func (r *NotifyRequest) Missing() []string {
	var m []string
	if r.SessionID == "" {
		m = append(m, "sessionId")
	}
	if r.ChunkOrder == nil {
		m = append(m, "chunkOrder")
	}
	if r.StoragePath == "" {
		m = append(m, "storagePath")
	}
	return m
}

// CompleteRequest is the body of /complete-session.
type CompleteRequest struct {
	SessionID   string `json:"sessionId"`
	TotalChunks *int   `json:"totalChunks"`
}

func (r *CompleteRequest) Missing() []string {
	var m []string
	if r.SessionID == "" {
		m = append(m, "sessionId")
	}
	if r.TotalChunks == nil {
		m = append(m, "totalChunks")
	}
	return m
}

// TranscribeRequest is the body of /transcribe-audio.
type TranscribeRequest struct {
	StoragePath string `json:"storagePath"`
}

func (r *TranscribeRequest) Missing() []string {
	if r.StoragePath == "" {
		return []string{"storagePath"}
	}
	return nil
}

// Validator decodes and checks request bodies.
type Validator struct {
	maxBodyBytes int64
}

func New() *Validator {
	return &Validator{maxBodyBytes: DefaultMaxBodyBytes}
}

// Decode reads a JSON body into dst and checks its required fields.
// An empty body decodes as an empty object so the missing fields are named.
func (v *Validator) Decode(body io.Reader, dst Request) error {
	dec := json.NewDecoder(io.LimitReader(body, v.maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperror.New(apperror.KindValidation, "Request body must be valid JSON.", err)
	}
	return v.Validate(dst)
}

// Validate checks the required fields of an already decoded request.
func (v *Validator) Validate(req Request) error {
	missing := req.Missing()
	if len(missing) == 0 {
		return nil
	}
	log.Debug().Strs("missing", missing).Str("request", fmt.Sprintf("%T", req)).Msg("Request rejected")
	return apperror.Validation(requiredMessage(missing))
}

// requiredMessage renders "a is required.", "a and b are required." or
// "a, b, and c are required.".
func requiredMessage(fields []string) string {
	switch len(fields) {
	case 1:
		return fields[0] + " is required."
	case 2:
		return fields[0] + " and " + fields[1] + " are required."
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + ", and " + fields[len(fields)-1] + " are required."
	}
}

// Package session implements the upload session state machine.
package session

import (
	"errors"

	"ai-speech-upload-service/internal/models"
)

// Errors for session lookups and transitions.
var (
	ErrSessionNotFound   = errors.New("upload session not found")
	ErrSessionNotActive  = errors.New("upload session is not active")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrStoreUnavailable  = errors.New("session store unavailable")
)

// State transitions:
//
//	ACTIVE ──→ CLOSED   (assembly succeeded)
//	  │
//	  └──────→ FAILED   (irrecoverable assembly error)
//
// CLOSED and FAILED are terminal. There is no deletion path.
var transitions = map[models.SessionStatus][]models.SessionStatus{
	models.SessionActive: {models.SessionClosed, models.SessionFailed},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to models.SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AcceptsGrants returns true if new upload slots may be granted in status s.
func AcceptsGrants(s models.SessionStatus) bool {
	return s == models.SessionActive
}

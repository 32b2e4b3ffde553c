// Package chunk maps (session, order) pairs to canonical storage keys.
package chunk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	rootPrefix   = "sessions/"
	chunksDir    = "/chunks/"
	chunkExt     = ".wav"
	artifactName = "recording.wav"
	orderDigits  = 8
)

var (
	ErrInvalidOrder     = errors.New("chunk order must be a non-negative integer")
	ErrInvalidSessionID = errors.New("session id must be non-empty and contain no path separators")
	ErrNotChunkPath     = errors.New("path is not a canonical chunk path")
)

// ValidateOrder rejects negative orders.
func ValidateOrder(order int) error {
	if order < 0 {
		return ErrInvalidOrder
	}
	return nil
}

// ValidateSessionID rejects ids that could escape the session namespace.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" || strings.ContainsAny(sessionID, "/\\") || sessionID == "." || sessionID == ".." {
		return ErrInvalidSessionID
	}
	return nil
}

// StoragePath returns the canonical object key for a chunk.
// Orders are zero padded so lexical listing order matches numeric order.
func StoragePath(sessionID string, order int) string {
	return fmt.Sprintf("%s%s%s%0*d%s", rootPrefix, sessionID, chunksDir, orderDigits, order, chunkExt)
}

// SessionPrefix returns the key prefix holding everything a session owns.
func SessionPrefix(sessionID string) string {
	return rootPrefix + sessionID + "/"
}

// ArtifactPath returns the object key of a session's assembled recording.
func ArtifactPath(sessionID string) string {
	return SessionPrefix(sessionID) + artifactName
}

// Matches reports whether a client-reported path is the canonical path for (sessionID, order).
func Matches(sessionID string, order int, reported string) bool {
	return reported == StoragePath(sessionID, order)
}

// ParseStoragePath is the inverse of StoragePath.
func ParseStoragePath(path string) (string, int, error) {
	rest, ok := strings.CutPrefix(path, rootPrefix)
	if !ok {
		return "", 0, ErrNotChunkPath
	}
	sessionID, file, ok := strings.Cut(rest, chunksDir)
	if !ok || ValidateSessionID(sessionID) != nil {
		return "", 0, ErrNotChunkPath
	}
	digits, ok := strings.CutSuffix(file, chunkExt)
	if !ok || len(digits) < orderDigits {
		return "", 0, ErrNotChunkPath
	}
	order, err := strconv.Atoi(digits)
	if err != nil || order < 0 {
		return "", 0, ErrNotChunkPath
	}
	if StoragePath(sessionID, order) != path {
		return "", 0, ErrNotChunkPath
	}
	return sessionID, order, nil
}

// Package models defines the upload session, chunk slot and event data structures.
package models

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle status of an upload session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
	SessionFailed SessionStatus = "failed"
)

// IsTerminal returns true for closed and failed sessions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionClosed || s == SessionFailed
}

func (s SessionStatus) String() string {
	return string(s)
}

// ParseSessionStatus converts a stored status value back into a SessionStatus.
func ParseSessionStatus(v string) (SessionStatus, error) {
	switch s := SessionStatus(v); s {
	case SessionActive, SessionClosed, SessionFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown session status %q", v)
	}
}

// ChunkStatus is the confirmation status of a chunk slot.
type ChunkStatus string

const (
	ChunkPending  ChunkStatus = "pending"
	ChunkUploaded ChunkStatus = "uploaded"
)

// UploadSession is a bounded recording/upload attempt.
type UploadSession struct {
	ID           string        `json:"id" dynamodbav:"session_id"`
	Status       SessionStatus `json:"status" dynamodbav:"status"`
	TotalChunks  int           `json:"totalChunks,omitempty" dynamodbav:"total_chunks"`
	ArtifactPath string        `json:"artifactPath,omitempty" dynamodbav:"artifact_path,omitempty"`
	FailReason   string        `json:"failReason,omitempty" dynamodbav:"fail_reason,omitempty"`
	CreatedAt    time.Time     `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt" dynamodbav:"updated_at"`
}

// ChunkSlot is one (session, order) position in a session's ledger.
type ChunkSlot struct {
	SessionID   string      `json:"sessionId" dynamodbav:"session_id"`
	Order       int         `json:"order" dynamodbav:"chunk_order"`
	StoragePath string      `json:"storagePath" dynamodbav:"storage_path"`
	Status      ChunkStatus `json:"status" dynamodbav:"status"`
	CreatedAt   time.Time   `json:"createdAt" dynamodbav:"created_at"`
	UploadedAt  *time.Time  `json:"uploadedAt,omitempty" dynamodbav:"uploaded_at,omitempty"`
}

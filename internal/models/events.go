package models

// Lifecycle event types published to Kafka.
const (
	EventSessionOpened  = "upload.session.opened"
	EventSessionClosed  = "upload.session.closed"
	EventSessionFailed  = "upload.session.failed"
	EventChunkConfirmed = "upload.chunk.confirmed"
)

// SessionEvent records a session status transition.
type SessionEvent struct {
	EventType    string `json:"eventType"`
	SessionID    string `json:"sessionId"`
	Status       string `json:"status"`
	TotalChunks  int    `json:"totalChunks,omitempty"`
	ArtifactPath string `json:"artifactPath,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// ChunkEvent records a first-time chunk confirmation.
type ChunkEvent struct {
	EventType   string `json:"eventType"`
	SessionID   string `json:"sessionId"`
	Order       int    `json:"order"`
	StoragePath string `json:"storagePath"`
	Timestamp   int64  `json:"timestamp"`
}

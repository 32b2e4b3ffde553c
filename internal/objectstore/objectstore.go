// Package objectstore defines the object storage contract for chunk and
// artifact bytes.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// Presigned is a short-lived URL the client may PUT one object to.
type Presigned struct {
	URL       string
	ExpiresAt time.Time
}

// Store is implemented by the memory and S3 backends.
type Store interface {
	// PresignPut returns a write URL for path valid for ttl.
	PresignPut(ctx context.Context, path string, ttl time.Duration) (Presigned, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Get streams the object at path into w. It returns ErrObjectNotFound
	// when the object does not exist.
	Get(ctx context.Context, path string, w io.Writer) (int64, error)
	Put(ctx context.Context, path string, data []byte) error

	IsReady(ctx context.Context) error
	Name() string
}

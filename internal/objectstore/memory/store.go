// Package memory provides an in-process object store with HMAC-signed upload
// URLs. It backs local development and tests.
package memory

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-upload-service/internal/objectstore"
)

// Store keeps objects in a map keyed by path.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte

	secret  string
	baseURL string
	now     func() time.Time
}

// New creates a store whose presigned URLs point at baseURL and are signed
// with secret. Mount Handler at baseURL to accept uploads.
func New(baseURL, secret string) *Store {
	return &Store{
		objects: make(map[string][]byte),
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (s *Store) Name() string {
	return "MemoryObjectStore"
}

func (s *Store) IsReady(ctx context.Context) error {
	return nil
}

func (s *Store) PresignPut(ctx context.Context, path string, ttl time.Duration) (objectstore.Presigned, error) {
	if path == "" {
		return objectstore.Presigned{}, fmt.Errorf("path cannot be empty")
	}
	expiresAt := s.now().Add(ttl)
	sig := s.sign(http.MethodPut, path, expiresAt.Unix())

	q := url.Values{}
	q.Set("exp", strconv.FormatInt(expiresAt.Unix(), 10))
	q.Set("sig", sig)

	return objectstore.Presigned{
		URL:       s.baseURL + "/" + path + "?" + q.Encode(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[path]
	return ok, nil
}

func (s *Store) Get(ctx context.Context, path string, w io.Writer) (int64, error) {
	s.mu.RLock()
	data, ok := s.objects[path]
	s.mu.RUnlock()
	if !ok {
		return 0, objectstore.ErrObjectNotFound
	}
	return io.Copy(w, bytes.NewReader(data))
}

func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.objects[path] = cp
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Handler accepts PUT requests on presigned URLs. The request path must be
// the object path relative to the base URL.
func (s *Store) Handler(maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/")
		exp, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
		if err != nil || path == "" {
			http.Error(w, "malformed upload url", http.StatusBadRequest)
			return
		}
		if !s.valid(http.MethodPut, path, exp, r.URL.Query().Get("sig")) {
			http.Error(w, "signature mismatch", http.StatusForbidden)
			return
		}
		if s.now().Unix() > exp {
			http.Error(w, "upload url expired", http.StatusForbidden)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if err := s.Put(r.Context(), path, data); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to store object")
			http.Error(w, "store failed", http.StatusInternalServerError)
			return
		}

		log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Object stored")
		w.WriteHeader(http.StatusOK)
	})
}

func (s *Store) valid(method, path string, exp int64, sig string) bool {
	expected := s.sign(method, path, exp)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func (s *Store) sign(method, path string, exp int64) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(fmt.Sprintf("%s:%s:%d", method, path, exp)))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(h.Sum(nil))
}

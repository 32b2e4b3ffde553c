package memory

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ai-speech-upload-service/internal/objectstore"
)

func TestStore_PutGetExists(t *testing.T) {
	s := New("http://localhost/objects", "secret")
	ctx := context.Background()

	if ok, _ := s.Exists(ctx, "a/b.wav"); ok {
		t.Fatal("expected object to be absent")
	}

	data := []byte("RIFF")
	if err := s.Put(ctx, "a/b.wav", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data[0] = 'X'

	var buf bytes.Buffer
	n, err := s.Get(ctx, "a/b.wav", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 || buf.String() != "RIFF" {
		t.Errorf("expected stored copy 'RIFF', got %q (%d bytes)", buf.String(), n)
	}
	if ok, _ := s.Exists(ctx, "a/b.wav"); !ok {
		t.Error("expected object to exist")
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := New("http://localhost/objects", "secret")

	_, err := s.Get(context.Background(), "missing", &bytes.Buffer{})
	if !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestStore_PresignPut_URLShape(t *testing.T) {
	s := New("http://localhost:8080/objects/", "secret")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	p, err := s.PresignPut(context.Background(), "sessions/x/chunks/00000000.wav", 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Errorf("expected expiry %v, got %v", now.Add(15*time.Minute), p.ExpiresAt)
	}
	if !strings.HasPrefix(p.URL, "http://localhost:8080/objects/sessions/x/chunks/00000000.wav?") {
		t.Errorf("unexpected url %s", p.URL)
	}

	if _, err := s.PresignPut(context.Background(), "", time.Minute); err == nil {
		t.Error("expected error for empty path")
	}
}

func upload(t *testing.T, s *Store, rawURL string, body string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("bad url: %v", err)
	}
	target := strings.TrimPrefix(u.Path, "/objects") + "?" + u.RawQuery

	req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler(1024).ServeHTTP(rec, req)
	return rec.Code
}

func TestHandler_AcceptsSignedUpload(t *testing.T) {
	s := New("http://localhost/objects", "secret")
	p, _ := s.PresignPut(context.Background(), "sessions/x/chunks/00000001.wav", time.Minute)

	if code := upload(t, s, p.URL, "chunk-bytes"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	var buf bytes.Buffer
	if _, err := s.Get(context.Background(), "sessions/x/chunks/00000001.wav", &buf); err != nil {
		t.Fatalf("expected object after upload: %v", err)
	}
	if buf.String() != "chunk-bytes" {
		t.Errorf("expected 'chunk-bytes', got %q", buf.String())
	}
}

func TestHandler_Rejects(t *testing.T) {
	s := New("http://localhost/objects", "secret")
	p, _ := s.PresignPut(context.Background(), "sessions/x/chunks/00000001.wav", time.Minute)

	tests := []struct {
		name string
		url  string
		body string
		want int
	}{
		{"tampered path", strings.Replace(p.URL, "00000001", "00000002", 1), "x", http.StatusForbidden},
		{"bad signature", strings.Replace(p.URL, "sig=", "sig=zz", 1), "x", http.StatusForbidden},
		{"missing expiry", "http://localhost/objects/sessions/x/chunks/00000001.wav", "x", http.StatusBadRequest},
		{"too large", p.URL, strings.Repeat("a", 2048), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := upload(t, s, tt.url, tt.body); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandler_ExpiredURL(t *testing.T) {
	s := New("http://localhost/objects", "secret")
	p, _ := s.PresignPut(context.Background(), "k", time.Minute)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if code := upload(t, s, p.URL, "x"); code != http.StatusForbidden {
		t.Errorf("expected 403 for expired url, got %d", code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	s := New("http://localhost/objects", "secret")
	rec := httptest.NewRecorder()
	s.Handler(1024).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/k", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandler_StoreFailure(t *testing.T) {
	s := New("http://localhost/objects", "secret")
	p, _ := s.PresignPut(context.Background(), "k", time.Minute)
	u, _ := url.Parse(p.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPut, strings.TrimPrefix(u.Path, "/objects")+"?"+u.RawQuery, strings.NewReader("x")).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler(1024).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when the write fails, got %d", rec.Code)
	}
	if ok, _ := s.Exists(context.Background(), "k"); ok {
		t.Error("expected no object after failed write")
	}
}

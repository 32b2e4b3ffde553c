package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	data := []byte("abcdefghij")

	chunks := split(data, 4)
	require.Len(t, chunks, 3)
	assert.Equal(t, "ij", string(chunks[2]))
	assert.Equal(t, data, bytes.Join(chunks, nil))

	assert.Len(t, split(data, 10), 1)
	assert.Empty(t, split(nil, 4))
}

func TestClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Session is not active."})
	}))
	defer srv.Close()

	c := &client{baseURL: srv.URL, http: srv.Client()}
	_, err := c.openSession(context.Background())

	var ae *apiError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusForbidden, ae.Status)
	assert.Equal(t, "Session is not active.", ae.Message)
}

func TestClient_UploadChunk(t *testing.T) {
	stored := make(chan []byte, 1)
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/v1/get-presigned-url", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"presignedUrl": srv.URL + "/objects/sessions/s1/chunks/00000000.wav?sig=x",
			"path":         "sessions/s1/chunks/00000000.wav",
		})
	})
	mux.HandleFunc("/objects/", func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		stored <- buf.Bytes()
	})
	mux.HandleFunc("/v1/notify-chunk-uploaded", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["storagePath"] != "sessions/s1/chunks/00000000.wav" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "Chunk upload successfully recorded.", "duplicate": false})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := &client{baseURL: srv.URL, http: srv.Client()}
	dup, err := c.uploadChunk(context.Background(), "s1", 0, []byte("RIFF"))
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, "RIFF", string(<-stored))
}

// uploadclient drives the chunked upload protocol against a running service:
// open a session, upload every chunk through its signed URL, confirm each
// one, then complete the session and print the transcription.
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

type client struct {
	baseURL string
	http    *http.Client
}

type apiError struct {
	Status  int
	Message string `json:"error"`
	Details any    `json:"details"`
}

func (e *apiError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%d %s (%v)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (c *client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		ae := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(ae)
		return ae
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) openSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	err := c.call(ctx, http.MethodPost, "/v1/upload-session", nil, &out)
	return out.SessionID, err
}

func (c *client) uploadChunk(ctx context.Context, sessionID string, order int, data []byte) (bool, error) {
	var grant struct {
		PresignedURL string `json:"presignedUrl"`
		Path         string `json:"path"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/get-presigned-url", map[string]any{
		"sessionId": sessionID, "chunkOrder": order,
	}, &grant); err != nil {
		return false, fmt.Errorf("presign chunk %d: %w", order, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.PresignedURL, bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "audio/wav")
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("put chunk %d: %w", order, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("put chunk %d: storage returned %d", order, resp.StatusCode)
	}

	var ack struct {
		Message   string `json:"message"`
		Duplicate bool   `json:"duplicate"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/notify-chunk-uploaded", map[string]any{
		"sessionId": sessionID, "chunkOrder": order, "storagePath": grant.Path,
	}, &ack); err != nil {
		return false, fmt.Errorf("notify chunk %d: %w", order, err)
	}
	return ack.Duplicate, nil
}

type completion struct {
	ArtifactPath  string  `json:"artifactPath"`
	Chunks        int     `json:"chunks"`
	Bytes         int     `json:"bytes"`
	Transcription string  `json:"transcription"`
	Confidence    float64 `json:"confidence"`
}

func (c *client) complete(ctx context.Context, sessionID string, total int) (completion, error) {
	var out completion
	err := c.call(ctx, http.MethodPost, "/v1/complete-session", map[string]any{
		"sessionId": sessionID, "totalChunks": total,
	}, &out)
	return out, err
}

// split cuts data into chunks of at most size bytes. Concatenating the
// chunks in order yields the original file, header included.
func split(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

func describeWAV(data []byte) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		log.Warn().Msg("Input does not look like a WAV file, uploading as-is")
		return
	}
	log.Info().
		Uint16("format", binary.LittleEndian.Uint16(data[20:22])).
		Uint16("channels", binary.LittleEndian.Uint16(data[22:24])).
		Uint32("sampleRate", binary.LittleEndian.Uint32(data[24:28])).
		Uint16("bitsPerSample", binary.LittleEndian.Uint16(data[34:36])).
		Msg("WAV file")
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file")
	server := flag.String("server", "http://localhost:8080", "HTTP API base URL")
	chunkSize := flag.Int("chunk-size", 256*1024, "Chunk size in bytes")
	parallel := flag.Int("parallel", 4, "Concurrent chunk uploads")
	skipComplete := flag.Bool("no-complete", false, "Upload chunks but leave the session active")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	data, err := os.ReadFile(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read audio file")
	}
	describeWAV(data)

	chunks := split(data, *chunkSize)
	if len(chunks) == 0 {
		log.Fatal().Msg("Audio file is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := &client{baseURL: *server, http: &http.Client{Timeout: time.Minute}}

	sessionID, err := c.openSession(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session")
	}
	log.Info().Str("sessionId", sessionID).Int("chunks", len(chunks)).Msg("Session opened")

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*parallel)
	for i, chunk := range chunks {
		g.Go(func() error {
			dup, err := c.uploadChunk(gctx, sessionID, i, chunk)
			if err != nil {
				return err
			}
			log.Debug().Int("order", i).Int("bytes", len(chunk)).Bool("duplicate", dup).Msg("Chunk uploaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Str("sessionId", sessionID).Msg("Upload failed")
	}
	log.Info().Int("chunks", len(chunks)).Int("bytes", len(data)).Dur("elapsed", time.Since(start)).Msg("All chunks uploaded")

	if *skipComplete {
		return
	}

	res, err := c.complete(ctx, sessionID, len(chunks))
	if err != nil {
		log.Fatal().Err(err).Str("sessionId", sessionID).Msg("Completion failed")
	}
	log.Info().
		Str("artifactPath", res.ArtifactPath).
		Int("bytes", res.Bytes).
		Float64("confidence", res.Confidence).
		Msg("Session completed")
	fmt.Println(res.Transcription)
}

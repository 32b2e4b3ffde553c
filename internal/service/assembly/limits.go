package assembly

import (
	"errors"
	"io"
	"time"
)

// Limits bounds the resources a single assembly may use.
type Limits struct {
	MaxArtifactBytes int64         // Max concatenated artifact size
	MaxChunks        int           // Max declared chunk count
	Timeout          time.Duration // Bound on external calls of one assembly
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxArtifactBytes: 100 * 1024 * 1024, // 100MB (~52 minutes at 16kHz 16-bit mono)
		MaxChunks:        10000,
		Timeout:          5 * time.Minute,
	}
}

var errSizeLimit = errors.New("artifact size limit exceeded")

// limitedWriter fails once more than remaining bytes have been written.
// A non-positive limit disables the check.
type limitedWriter struct {
	w         io.Writer
	remaining int64
	unlimited bool
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, remaining: limit, unlimited: limit <= 0}
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if !l.unlimited {
		if int64(len(p)) > l.remaining {
			return 0, errSizeLimit
		}
		l.remaining -= int64(len(p))
	}
	return l.w.Write(p)
}

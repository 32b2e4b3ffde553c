package ledger

import (
	"context"
	"fmt"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/service/session"
)

// Completeness compares confirmed orders against the expected set 0..Expected-1.
type Completeness struct {
	Expected   int
	Missing    []int
	Unexpected []int
}

// Complete returns true when every expected order is confirmed and no order
// falls outside the expected range.
func (c Completeness) Complete() bool {
	return len(c.Missing) == 0 && len(c.Unexpected) == 0
}

// Gaps checks confirmed slots against a declared total.
func Gaps(confirmed []models.ChunkSlot, total int) Completeness {
	c := Completeness{Expected: total}
	seen := make(map[int]bool, len(confirmed))
	for _, s := range confirmed {
		if s.Order >= total {
			c.Unexpected = append(c.Unexpected, s.Order)
			continue
		}
		seen[s.Order] = true
	}
	for order := 0; order < total; order++ {
		if !seen[order] {
			c.Missing = append(c.Missing, order)
		}
	}
	return c
}

// Progress is a read-only view of a session's ledger.
type Progress struct {
	Session         models.UploadSession
	ConfirmedOrders []int
	PendingOrders   []int
	// Missing lists orders below the highest known order (or below the
	// declared total once the session is closed) with no confirmed upload.
	Missing []int
}

// Status reports upload progress for a session in any status.
func (l *Ledger) Status(ctx context.Context, sessionID string) (Progress, error) {
	sess, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}
	slots, err := l.chunks.ListChunks(ctx, sessionID)
	if err != nil {
		return Progress{}, fmt.Errorf("%w: %w", session.ErrStoreUnavailable, err)
	}
	sortByOrder(slots)

	p := Progress{
		Session:         sess,
		ConfirmedOrders: []int{},
		PendingOrders:   []int{},
	}
	var confirmed []models.ChunkSlot
	highest := -1
	for _, s := range slots {
		if s.Order > highest {
			highest = s.Order
		}
		if s.Status == models.ChunkUploaded {
			p.ConfirmedOrders = append(p.ConfirmedOrders, s.Order)
			confirmed = append(confirmed, s)
		} else {
			p.PendingOrders = append(p.PendingOrders, s.Order)
		}
	}

	expected := highest + 1
	if sess.TotalChunks > 0 {
		expected = sess.TotalChunks
	}
	p.Missing = Gaps(confirmed, expected).Missing
	if p.Missing == nil {
		p.Missing = []int{}
	}
	return p, nil
}

package ledger

import (
	"context"
	"reflect"
	"testing"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/service/chunk"
)

func slots(orders ...int) []models.ChunkSlot {
	out := make([]models.ChunkSlot, 0, len(orders))
	for _, o := range orders {
		out = append(out, models.ChunkSlot{Order: o, Status: models.ChunkUploaded})
	}
	return out
}

func TestGaps(t *testing.T) {
	tests := []struct {
		name           string
		confirmed      []models.ChunkSlot
		total          int
		wantMissing    []int
		wantUnexpected []int
		complete       bool
	}{
		{"complete", slots(0, 1, 2), 3, nil, nil, true},
		{"complete out of order", slots(2, 0, 1), 3, nil, nil, true},
		{"gap in middle", slots(0, 2), 3, []int{1}, nil, false},
		{"missing tail", slots(0, 1), 4, []int{2, 3}, nil, false},
		{"order beyond total", slots(0, 1, 5), 2, nil, []int{5}, false},
		{"nothing uploaded", nil, 2, []int{0, 1}, nil, false},
		{"empty recording", nil, 0, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Gaps(tt.confirmed, tt.total)
			if !reflect.DeepEqual(c.Missing, tt.wantMissing) {
				t.Errorf("expected missing %v, got %v", tt.wantMissing, c.Missing)
			}
			if !reflect.DeepEqual(c.Unexpected, tt.wantUnexpected) {
				t.Errorf("expected unexpected %v, got %v", tt.wantUnexpected, c.Unexpected)
			}
			if c.Complete() != tt.complete {
				t.Errorf("expected complete=%v, got %v", tt.complete, c.Complete())
			}
		})
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.open(t)

	for _, order := range []int{0, 1, 3} {
		f.ledger.RequestUploadSlot(ctx, id, order)
	}
	for _, order := range []int{0, 3} {
		f.upload(t, id, order, "x")
		f.ledger.ConfirmUpload(ctx, id, order, chunk.StoragePath(id, order))
	}

	p, err := f.ledger.Status(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Session.Status != models.SessionActive {
		t.Errorf("expected active session, got %s", p.Session.Status)
	}
	if !reflect.DeepEqual(p.ConfirmedOrders, []int{0, 3}) {
		t.Errorf("expected confirmed [0 3], got %v", p.ConfirmedOrders)
	}
	if !reflect.DeepEqual(p.PendingOrders, []int{1}) {
		t.Errorf("expected pending [1], got %v", p.PendingOrders)
	}
	if !reflect.DeepEqual(p.Missing, []int{1, 2}) {
		t.Errorf("expected missing [1 2], got %v", p.Missing)
	}
}

func TestStatus_EmptySession(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	id := f.open(t)

	p, err := f.ledger.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.ConfirmedOrders) != 0 || len(p.PendingOrders) != 0 || len(p.Missing) != 0 {
		t.Errorf("expected empty progress, got %+v", p)
	}
}

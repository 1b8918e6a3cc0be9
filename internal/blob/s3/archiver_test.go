package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

type memWriter struct {
	puts map[string][]byte
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.puts == nil {
		w.puts = make(map[string][]byte)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	w.puts[path] = buf.Bytes()
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

type stubLister struct {
	recs []domain.SimulationRecord
}

func (l stubLister) ListBefore(_ context.Context, _ time.Time) ([]domain.SimulationRecord, error) {
	return l.recs, nil
}

func TestArchiveResultsWritesJSONL(t *testing.T) {
	w := &memWriter{}
	recs := []domain.SimulationRecord{
		{ID: "a", Order: domain.OrderSpec{Symbol: "BTC-USDT"}},
		{ID: "b", Order: domain.OrderSpec{Symbol: "ETH-USDT"}},
	}
	a := NewArchiver(w, stubLister{recs: recs})

	cutoff := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	n, err := a.ArchiveResults(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("archive results: %v", err)
	}
	if n != 2 {
		t.Errorf("archived = %d, want 2", n)
	}

	data, ok := w.puts["archive/simulations/2026-05.jsonl"]
	if !ok {
		t.Fatalf("expected month-partitioned key, got %v", keys(w.puts))
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("jsonl lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"id":"a"`) {
		t.Errorf("first line missing record: %s", lines[0])
	}
}

func TestArchiveResultsEmptySkipsUpload(t *testing.T) {
	w := &memWriter{}
	a := NewArchiver(w, stubLister{})

	n, err := a.ArchiveResults(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("archive results: %v", err)
	}
	if n != 0 || len(w.puts) != 0 {
		t.Errorf("empty store should archive nothing, got n=%d puts=%d", n, len(w.puts))
	}
}

func TestArchiveSnapshotKeyLayout(t *testing.T) {
	w := &memWriter{}
	a := NewArchiver(w, stubLister{})

	snap := domain.OrderBookSnapshot{
		InstID:    "BTC-USDT-SWAP",
		Bids:      []domain.PriceLevel{{Price: 27350.5, Size: 1.5}},
		Asks:      []domain.PriceLevel{{Price: 27355, Size: 1}},
		Timestamp: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := a.ArchiveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("archive snapshot: %v", err)
	}

	if _, ok := w.puts["books/BTC-USDT-SWAP/2026/05/01/120000.json"]; !ok {
		t.Errorf("unexpected keys: %v", keys(w.puts))
	}
}

func TestArchiveSnapshotRequiresInstrument(t *testing.T) {
	a := NewArchiver(&memWriter{}, stubLister{})
	if err := a.ArchiveSnapshot(context.Background(), domain.OrderBookSnapshot{}); err == nil {
		t.Error("expected error for snapshot without instrument id")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

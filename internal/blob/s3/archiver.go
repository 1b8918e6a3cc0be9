package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okquant/costsim/internal/domain"
)

// ResultLister is the narrow store view the archiver needs: only the
// time-ranged read, not the full domain.ResultStore.
type ResultLister interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.SimulationRecord, error)
}

// ArchiveImpl implements domain.Archiver by serializing book snapshots
// and aged simulation records to object storage.
//
// Deleting archived rows from the primary store is intentionally not
// done here; that is a separate, explicit step after the archive has
// been verified.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	results ResultLister
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, results ResultLister) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		results: results,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveSnapshot uploads a full book snapshot as a JSON object at
// books/{instID}/YYYY/MM/DD/HHMMSS.json.
func (a *ArchiveImpl) ArchiveSnapshot(ctx context.Context, snap domain.OrderBookSnapshot) error {
	if snap.InstID == "" {
		return fmt.Errorf("s3blob: archive snapshot: missing instrument id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("s3blob: archive snapshot marshal: %w", err)
	}

	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	path := snapshotPath(snap.InstID, ts)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive snapshot upload: %w", err)
	}
	return nil
}

// ArchiveResults queries all simulation records before the cutoff,
// serializes them to JSONL, and uploads the file at
// archive/simulations/YYYY-MM.jsonl. Returns the number of records
// archived.
func (a *ArchiveImpl) ArchiveResults(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.results.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive results query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive results marshal: %w", err)
	}

	path := archivePath("simulations", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive results upload: %w", err)
	}
	return int64(len(recs)), nil
}

// snapshotPath builds the S3 key for a book snapshot, partitioned by
// instrument and capture time.
//
//	books/BTC-USDT-SWAP/2026/05/01/120000.json
func snapshotPath(instID string, ts time.Time) string {
	return fmt.Sprintf("books/%s/%s.json", instID, ts.UTC().Format("2006/01/02/150405"))
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/simulations/2026-05.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

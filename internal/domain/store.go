package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ResultStore persists simulation records.
type ResultStore interface {
	Insert(ctx context.Context, rec SimulationRecord) error
	InsertBatch(ctx context.Context, recs []SimulationRecord) error
	GetByID(ctx context.Context, id string) (SimulationRecord, error)
	List(ctx context.Context, symbol string, opts ListOpts) ([]SimulationRecord, error)
	Count(ctx context.Context) (int64, error)
	ListBefore(ctx context.Context, before time.Time) ([]SimulationRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

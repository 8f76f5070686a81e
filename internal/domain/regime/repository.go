package regime

import (
	"context"
	"time"
)

// Repository persists regime snapshots for later analysis
type Repository interface {
	Store(ctx context.Context, snapshot *Snapshot) error
	GetLatest(ctx context.Context) (*Snapshot, error)
	History(ctx context.Context, since time.Time, limit int) ([]*Snapshot, error)
}

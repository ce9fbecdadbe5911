package sheets

import (
	"context"
	"time"

	"finance/internal/core"
)

// Snapshot is the exported summary of one stored month.
type Snapshot struct {
	Key           string
	NetWorth      float64
	Assets        int
	StatementRows int
	UpdatedAt     time.Time
}

// NewSnapshot summarizes a month document for export.
func NewSnapshot(key string, doc core.Document, updatedAt time.Time) Snapshot {
	return Snapshot{
		Key:           key,
		NetWorth:      core.ComputeTotals(doc).Totals.NetWorth.Float(),
		Assets:        len(doc.Assets),
		StatementRows: len(doc.Statement),
		UpdatedAt:     updatedAt,
	}
}

// Ports for outbound adapters.
type (
	// SnapshotWriter keeps one row per month key in an external sheet.
	SnapshotWriter interface {
		// UpsertSnapshot writes the row for s.Key, replacing an existing one.
		UpsertSnapshot(ctx context.Context, s Snapshot) error
		// ClearSnapshot empties the row for key. Missing keys are not an error.
		ClearSnapshot(ctx context.Context, key string) error
	}

	SnapshotReader interface {
		ListSnapshots(ctx context.Context) ([]Snapshot, error)
	}
)

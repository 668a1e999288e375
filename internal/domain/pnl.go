package domain

import (
	"context"
	"time"
)

// PnLRecord is one realized-profit entry, denominated in the base asset.
// Records are appended on every net-positive settlement and pruned once they
// fall outside the retention window.
type PnLRecord struct {
	AmountBase float64
	Timestamp  time.Time
}

// PnLStore persists the rolling PnL history and the adaptive threshold so the
// engine can resume after a restart. Absence of prior state is not an error;
// loaders return ErrNotFound and callers fall back to configured defaults.
type PnLStore interface {
	AppendRecord(ctx context.Context, rec PnLRecord) error
	RecordsSince(ctx context.Context, since time.Time) ([]PnLRecord, error)
	SaveThreshold(ctx context.Context, value float64, at time.Time) error
	LoadThreshold(ctx context.Context) (float64, error)
}

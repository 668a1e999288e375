// Package ledger keeps the in-memory realized PnL history and adapts the
// detector's movement threshold from recent performance.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
)

// Ledger records realized profit in base-asset units, prunes entries past the
// retention window, and tunes the adaptive threshold between the configured
// bounds. It implements the detector's ThresholdSource.
type Ledger struct {
	cfg    config.LedgerConfig
	store  domain.PnLStore
	sink   domain.EventSink
	logger *slog.Logger

	mu        sync.RWMutex
	records   []domain.PnLRecord
	threshold float64
}

// New creates a Ledger seeded with initialThreshold. store may be nil; the
// ledger then runs purely in memory.
func New(cfg config.LedgerConfig, initialThreshold float64, store domain.PnLStore, sink domain.EventSink, logger *slog.Logger) *Ledger {
	return &Ledger{
		cfg:       cfg,
		store:     store,
		sink:      sink,
		logger:    logger.With(slog.String("component", "ledger")),
		threshold: initialThreshold,
	}
}

// Restore loads the persisted threshold and retained records from the store.
// A missing threshold row is normal on first run and keeps the seed value.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	threshold, err := l.store.LoadThreshold(ctx)
	switch {
	case err == nil:
		l.mu.Lock()
		l.threshold = l.clamp(threshold)
		l.mu.Unlock()
	case errors.Is(err, domain.ErrNotFound):
	default:
		return err
	}

	since := time.Now().Add(-l.cfg.Retention.Duration)
	records, err := l.store.RecordsSince(ctx, since)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.records = records
	l.mu.Unlock()

	l.logger.Info("ledger restored",
		slog.Int("records", len(records)),
		slog.Float64("threshold", l.Threshold()),
	)
	return nil
}

// Record appends one realized profit (or loss) entry and prunes expired ones.
func (l *Ledger) Record(ctx context.Context, amountBase float64, at time.Time) {
	rec := domain.PnLRecord{AmountBase: amountBase, Timestamp: at}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.prune(at)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.AppendRecord(ctx, rec); err != nil {
			l.logger.Warn("pnl record persistence failed", slog.String("error", err.Error()))
		}
	}
}

// prune drops records older than the retention window. Caller holds l.mu.
func (l *Ledger) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Retention.Duration)
	i := 0
	for i < len(l.records) && l.records[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.records = append(l.records[:0], l.records[i:]...)
	}
}

// RollingSum returns the profit realized within the trailing window ending at
// now.
func (l *Ledger) RollingSum(window time.Duration, now time.Time) float64 {
	cutoff := now.Add(-window)

	l.mu.RLock()
	defer l.mu.RUnlock()
	var sum float64
	for _, rec := range l.records {
		if !rec.Timestamp.Before(cutoff) {
			sum += rec.AmountBase
		}
	}
	return sum
}

// Total returns the profit realized across the whole retention window.
func (l *Ledger) Total(now time.Time) float64 {
	return l.RollingSum(l.cfg.Retention.Duration, now)
}

// Threshold returns the current adaptive movement threshold in percent.
func (l *Ledger) Threshold() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.threshold
}

// Adapt retunes the threshold from the trailing hour's profit: below the low
// water mark the threshold rises (fewer, stronger signals), above the high
// water mark it falls (the regime is paying, take more). The result is always
// clamped to the configured band; a no-op adjustment emits nothing.
func (l *Ledger) Adapt(ctx context.Context, now time.Time) {
	rolling := l.RollingSum(time.Hour, now)

	l.mu.Lock()
	previous := l.threshold
	next := previous
	switch {
	case rolling < l.cfg.LowWaterMark:
		next = l.clamp(previous + l.cfg.ThresholdStepPct)
	case rolling > l.cfg.HighWaterMark:
		next = l.clamp(previous - l.cfg.ThresholdStepPct)
	}
	l.threshold = next
	l.mu.Unlock()

	if next == previous {
		return
	}

	l.logger.Info("threshold adjusted",
		slog.Float64("previous", previous),
		slog.Float64("current", next),
		slog.Float64("rolling_hour", rolling),
	)
	l.sink.Emit(domain.Event{
		Type: domain.EventThresholdAdjusted,
		At:   now,
		Threshold: &domain.ThresholdChange{
			Previous:    previous,
			Current:     next,
			RollingHour: rolling,
		},
	})

	if l.store != nil {
		if err := l.store.SaveThreshold(ctx, next, now); err != nil {
			l.logger.Warn("threshold persistence failed", slog.String("error", err.Error()))
		}
	}
}

// clamp bounds a threshold to [MinThresholdPct, MaxThresholdPct].
func (l *Ledger) clamp(threshold float64) float64 {
	if threshold < l.cfg.MinThresholdPct {
		return l.cfg.MinThresholdPct
	}
	if threshold > l.cfg.MaxThresholdPct {
		return l.cfg.MaxThresholdPct
	}
	return threshold
}

package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
)

type captureSink struct {
	events []domain.Event
}

func (c *captureSink) Emit(event domain.Event) {
	c.events = append(c.events, event)
}

func newTestLedger(sink domain.EventSink) *Ledger {
	cfg := config.Defaults().Ledger
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, 0.05, nil, sink, logger)
}

func TestRecord_PrunesPastRetention(t *testing.T) {
	l := newTestLedger(domain.NopSink)
	now := time.Now()

	l.Record(context.Background(), 0.01, now.Add(-25*time.Hour))
	l.Record(context.Background(), 0.02, now.Add(-2*time.Hour))
	l.Record(context.Background(), 0.03, now)

	assert.InDelta(t, 0.05, l.Total(now), 1e-12)
}

func TestRollingSum_OnlyCountsWindow(t *testing.T) {
	l := newTestLedger(domain.NopSink)
	now := time.Now()

	l.Record(context.Background(), 0.04, now.Add(-90*time.Minute))
	l.Record(context.Background(), 0.01, now.Add(-30*time.Minute))
	l.Record(context.Background(), 0.02, now.Add(-time.Minute))

	assert.InDelta(t, 0.03, l.RollingSum(time.Hour, now), 1e-12)
	assert.InDelta(t, 0.07, l.RollingSum(2*time.Hour, now), 1e-12)
}

func TestAdapt_RaisesThresholdOnPoorHour(t *testing.T) {
	sink := &captureSink{}
	l := newTestLedger(sink)
	now := time.Now()

	// No profit recorded: rolling hour is below the low-water mark.
	l.Adapt(context.Background(), now)

	assert.InDelta(t, 0.06, l.Threshold(), 1e-12)
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventThresholdAdjusted, sink.events[0].Type)
	assert.InDelta(t, 0.05, sink.events[0].Threshold.Previous, 1e-12)
	assert.InDelta(t, 0.06, sink.events[0].Threshold.Current, 1e-12)
}

func TestAdapt_LowersThresholdOnStrongHour(t *testing.T) {
	l := newTestLedger(domain.NopSink)
	now := time.Now()

	l.Record(context.Background(), 0.2, now.Add(-time.Minute))
	l.Adapt(context.Background(), now)

	assert.InDelta(t, 0.04, l.Threshold(), 1e-12)
}

func TestAdapt_NeverLeavesConfiguredBand(t *testing.T) {
	l := newTestLedger(domain.NopSink)
	now := time.Now()

	// Repeated poor hours push the threshold up to the ceiling and no further.
	for i := 0; i < 100; i++ {
		l.Adapt(context.Background(), now)
	}
	assert.InDelta(t, 0.5, l.Threshold(), 1e-12)

	// Repeated strong hours pull it down to the floor and no further.
	l.Record(context.Background(), 10.0, now.Add(-time.Minute))
	for i := 0; i < 100; i++ {
		l.Adapt(context.Background(), now)
	}
	assert.InDelta(t, 0.02, l.Threshold(), 1e-12)
}

func TestAdapt_NoEventWhenUnchanged(t *testing.T) {
	sink := &captureSink{}
	cfg := config.Defaults().Ledger
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := New(cfg, cfg.MaxThresholdPct, nil, sink, logger)
	now := time.Now()

	// Already at the ceiling; a poor hour cannot raise it further.
	l.Adapt(context.Background(), now)

	assert.InDelta(t, cfg.MaxThresholdPct, l.Threshold(), 1e-12)
	assert.Empty(t, sink.events)
}

type memStore struct {
	records   []domain.PnLRecord
	threshold float64
	hasValue  bool
}

func (m *memStore) AppendRecord(ctx context.Context, rec domain.PnLRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) RecordsSince(ctx context.Context, since time.Time) ([]domain.PnLRecord, error) {
	var out []domain.PnLRecord
	for _, rec := range m.records {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) SaveThreshold(ctx context.Context, value float64, at time.Time) error {
	m.threshold = value
	m.hasValue = true
	return nil
}

func (m *memStore) LoadThreshold(ctx context.Context) (float64, error) {
	if !m.hasValue {
		return 0, domain.ErrNotFound
	}
	return m.threshold, nil
}

func TestRestore_MissingThresholdKeepsSeed(t *testing.T) {
	cfg := config.Defaults().Ledger
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := New(cfg, 0.05, &memStore{}, domain.NopSink, logger)

	require.NoError(t, l.Restore(context.Background()))
	assert.InDelta(t, 0.05, l.Threshold(), 1e-12)
}

func TestRestore_LoadsPersistedState(t *testing.T) {
	now := time.Now()
	store := &memStore{
		records: []domain.PnLRecord{
			{AmountBase: 0.01, Timestamp: now.Add(-48 * time.Hour)},
			{AmountBase: 0.03, Timestamp: now.Add(-time.Hour)},
		},
		threshold: 0.12,
		hasValue:  true,
	}
	cfg := config.Defaults().Ledger
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := New(cfg, 0.05, store, domain.NopSink, logger)

	require.NoError(t, l.Restore(context.Background()))
	assert.InDelta(t, 0.12, l.Threshold(), 1e-12)
	assert.InDelta(t, 0.03, l.Total(now), 1e-12)
}

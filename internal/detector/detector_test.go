package detector

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsweep/sweepbot/internal/config"
	"github.com/solsweep/sweepbot/internal/domain"
	"github.com/solsweep/sweepbot/internal/tracker"
)

type fixedThreshold float64

func (f fixedThreshold) Threshold() float64 { return float64(f) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scenarioDetector builds a detector over SOL/USDC with floors lowered so the
// movement-threshold decision is the only gate under test.
func scenarioDetector(threshold float64) (*Detector, *tracker.Tracker) {
	defaults := config.Defaults()
	cfg := defaults.Detector
	cfg.HighValuePairs = nil
	cfg.MinConfidence = 10
	cfg.MinConfidenceBaseInput = 10
	cfg.MinPotentialProfit = 0
	cfg.ProfitDustFloor = 0

	pair, _ := domain.ParsePair("SOL/USDC")
	tr := tracker.New(20)
	rates := NewSuccessRates(cfg.SuccessRates, cfg.SuccessRateFallback)
	d := New(cfg, defaults.Sizing, "SOL", []domain.TradingPair{pair}, tr, rates, fixedThreshold(threshold), testLogger())
	return d, tr
}

// feedFlat runs enough scans at a constant price to build history, spaced past
// the throttle interval.
func feedFlat(d *Detector, start time.Time, price float64, n int) time.Time {
	at := start
	for i := 0; i < n; i++ {
		d.Scan(map[string]float64{"SOL/USDC": price}, map[string]float64{"USDC": 1000}, at)
		at = at.Add(3 * time.Second)
	}
	return at
}

func TestScan_SignalFiresAboveThreshold(t *testing.T) {
	d, _ := scenarioDetector(0.04)
	at := feedFlat(d, time.Unix(1_700_000_000, 0), 100.00, 6)

	opps := d.Scan(map[string]float64{"SOL/USDC": 100.05}, map[string]float64{"USDC": 1000}, at)

	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, "USDC", opp.InputAsset)
	assert.Equal(t, "SOL", opp.OutputAsset)
	assert.InDelta(t, 0.05, opp.PercentChange, 1e-9)
	assert.Equal(t, 100.05, opp.ObservedPrice)
	assert.NotEmpty(t, opp.ID)
	assert.GreaterOrEqual(t, opp.Confidence, 10.0)
	assert.LessOrEqual(t, opp.Confidence, 95.0)
}

func TestScan_NoSignalBelowThreshold(t *testing.T) {
	d, _ := scenarioDetector(0.06)
	at := feedFlat(d, time.Unix(1_700_000_000, 0), 100.00, 6)

	opps := d.Scan(map[string]float64{"SOL/USDC": 100.05}, map[string]float64{"USDC": 1000}, at)

	assert.Empty(t, opps)
}

func TestScan_ThrottledCallHasNoSideEffects(t *testing.T) {
	d, tr := scenarioDetector(0.04)
	start := time.Unix(1_700_000_000, 0)

	d.Scan(map[string]float64{"SOL/USDC": 100.00}, map[string]float64{"USDC": 1000}, start)
	before := tr.SampleCount("SOL/USDC")

	// One second later is inside the 2s throttle interval.
	opps := d.Scan(map[string]float64{"SOL/USDC": 100.05}, map[string]float64{"USDC": 1000}, start.Add(time.Second))

	assert.Nil(t, opps)
	assert.Equal(t, before, tr.SampleCount("SOL/USDC"))
}

func TestScan_DebouncesRepeatedSignal(t *testing.T) {
	d, _ := scenarioDetector(0.04)
	at := feedFlat(d, time.Unix(1_700_000_000, 0), 100.00, 6)

	first := d.Scan(map[string]float64{"SOL/USDC": 100.05}, map[string]float64{"USDC": 1000}, at)
	require.Len(t, first, 1)

	// Three seconds later the same drift is still inside the 10s debounce and
	// below the 0.2% override.
	second := d.Scan(map[string]float64{"SOL/USDC": 100.10}, map[string]float64{"USDC": 1000}, at.Add(3*time.Second))
	assert.Empty(t, second)
}

func TestScan_FilteredCandidateDoesNotStartDebounce(t *testing.T) {
	defaults := config.Defaults()
	cfg := defaults.Detector
	cfg.HighValuePairs = nil
	cfg.MinConfidence = 10
	cfg.MinConfidenceBaseInput = 10
	cfg.MinPotentialProfit = 0.0001
	cfg.ProfitDustFloor = 0

	pair, _ := domain.ParsePair("SOL/USDC")
	tr := tracker.New(20)
	rates := NewSuccessRates(cfg.SuccessRates, cfg.SuccessRateFallback)
	d := New(cfg, defaults.Sizing, "SOL", []domain.TradingPair{pair}, tr, rates, fixedThreshold(0.04), testLogger())

	at := feedFlat(d, time.Unix(1_700_000_000, 0), 100.00, 6)

	// A significant move sized from a thin balance: flagged, then dropped by
	// the profit floor.
	first := d.Scan(map[string]float64{"SOL/USDC": 100.05}, map[string]float64{"USDC": 10}, at)
	assert.Empty(t, first)

	// The same drift three seconds later with real balance behind it must
	// fire: the rejected candidate left no debounce window behind.
	second := d.Scan(map[string]float64{"SOL/USDC": 100.10}, map[string]float64{"USDC": 1000}, at.Add(3*time.Second))
	require.Len(t, second, 1)
	assert.Equal(t, 100.10, second[0].ObservedPrice)
}

func TestScan_DebounceOverriddenByLargeMove(t *testing.T) {
	d, _ := scenarioDetector(0.04)
	at := feedFlat(d, time.Unix(1_700_000_000, 0), 100.00, 6)

	first := d.Scan(map[string]float64{"SOL/USDC": 100.05}, map[string]float64{"USDC": 1000}, at)
	require.Len(t, first, 1)

	// A 0.55% jump exceeds the 0.2% debounce override.
	second := d.Scan(map[string]float64{"SOL/USDC": 100.60}, map[string]float64{"USDC": 1000}, at.Add(3*time.Second))
	assert.Len(t, second, 1)
}

func TestScan_SkipsWhenBalanceTooSmall(t *testing.T) {
	d, _ := scenarioDetector(0.04)
	at := feedFlat(d, time.Unix(1_700_000_000, 0), 100.00, 6)

	opps := d.Scan(map[string]float64{"SOL/USDC": 100.05}, map[string]float64{"USDC": 0.001}, at)

	assert.Empty(t, opps)
}

func TestScan_RanksAndCapsOpportunities(t *testing.T) {
	defaults := config.Defaults()
	cfg := defaults.Detector
	cfg.HighValuePairs = nil
	cfg.MinConfidence = 10
	cfg.MinConfidenceBaseInput = 10
	cfg.MinPotentialProfit = 0
	cfg.ProfitDustFloor = 0

	var pairs []domain.TradingPair
	for _, sym := range []string{"RAY/SOL", "JUP/SOL", "BONK/SOL"} {
		pair, ok := domain.ParsePair(sym)
		require.True(t, ok)
		pairs = append(pairs, pair)
	}
	tr := tracker.New(20)
	rates := NewSuccessRates(cfg.SuccessRates, cfg.SuccessRateFallback)
	d := New(cfg, defaults.Sizing, "SOL", pairs, tr, rates, fixedThreshold(0.04), testLogger())

	balances := map[string]float64{"SOL": 10}
	flat := map[string]float64{"RAY/SOL": 0.02, "JUP/SOL": 0.01, "BONK/SOL": 0.0002}
	at := time.Unix(1_700_000_000, 0)
	for i := 0; i < 6; i++ {
		d.Scan(flat, balances, at)
		at = at.Add(3 * time.Second)
	}

	moved := map[string]float64{
		"RAY/SOL":  0.02 * 1.005,   // +0.5%
		"JUP/SOL":  0.01 * 1.003,   // +0.3%
		"BONK/SOL": 0.0002 * 1.001, // +0.1%
	}
	opps := d.Scan(moved, balances, at)

	require.Len(t, opps, 2)
	assert.GreaterOrEqual(t, opps[0].Score(), opps[1].Score())
	for _, opp := range opps {
		assert.NotEqual(t, "BONK", opp.OutputAsset, "weakest signal should be cut by the top-2 cap")
	}
}

func TestScan_SuppressesBaseBuyInDowntrend(t *testing.T) {
	defaults := config.Defaults()
	cfg := defaults.Detector
	cfg.HighValuePairs = nil
	cfg.MinConfidence = 10
	cfg.MinConfidenceBaseInput = 10
	cfg.MinPotentialProfit = 0
	cfg.ProfitDustFloor = 0
	cfg.BaseDowntrendMinPairs = 2

	var pairs []domain.TradingPair
	for _, sym := range []string{"SOL/USDC", "SOL/USDT", "RAY/SOL"} {
		pair, _ := domain.ParsePair(sym)
		pairs = append(pairs, pair)
	}
	tr := tracker.New(20)
	rates := NewSuccessRates(cfg.SuccessRates, cfg.SuccessRateFallback)
	d := New(cfg, defaults.Sizing, "SOL", pairs, tr, rates, fixedThreshold(0.04), testLogger())

	balances := map[string]float64{"USDC": 1000, "USDT": 1000, "RAY": 1000}
	flat := map[string]float64{"SOL/USDC": 100.00, "SOL/USDT": 100.00, "RAY/SOL": 0.02}
	at := time.Unix(1_700_000_000, 0)
	for i := 0; i < 6; i++ {
		d.Scan(flat, balances, at)
		at = at.Add(3 * time.Second)
	}

	// Both reference pairs drop 0.4%, establishing the base downtrend.
	down := map[string]float64{"SOL/USDC": 99.60, "SOL/USDT": 99.60, "RAY/SOL": 0.02}
	d.Scan(down, balances, at)
	at = at.Add(3 * time.Second)

	// RAY/SOL now dips 0.1%, which would sell RAY into SOL. Buying the base on
	// a weak signal while it falls everywhere is suppressed.
	dip := map[string]float64{"SOL/USDC": 99.30, "SOL/USDT": 99.30, "RAY/SOL": 0.02 * 0.999}
	opps := d.Scan(dip, balances, at)
	for _, opp := range opps {
		assert.NotEqual(t, "SOL", opp.OutputAsset)
	}

	// A 0.9% collapse clears the override and is allowed through.
	at = at.Add(11 * time.Second)
	crash := map[string]float64{"SOL/USDC": 99.00, "SOL/USDT": 99.00, "RAY/SOL": 0.02 * 0.999 * 0.991}
	opps = d.Scan(crash, balances, at)
	found := false
	for _, opp := range opps {
		if opp.OutputAsset == "SOL" && opp.Pair.Base == "RAY" {
			found = true
		}
	}
	assert.True(t, found, "strong move should override the downtrend guard")
}

func TestSuccessRates_ObservedOverridesDefault(t *testing.T) {
	rates := NewSuccessRates(map[string]float64{"RAY/SOL": 0.70}, 0.6)

	assert.Equal(t, 0.70, rates.Rate("RAY/SOL"))
	assert.Equal(t, 0.6, rates.Rate("UNKNOWN/SOL"))

	rates.Record("RAY/SOL", true)
	rates.Record("RAY/SOL", true)
	rates.Record("RAY/SOL", false)
	assert.InDelta(t, 2.0/3.0, rates.Rate("RAY/SOL"), 1e-12)
}

func TestSuccessRates_ClampsObservedRate(t *testing.T) {
	rates := NewSuccessRates(nil, 0.6)

	rates.Record("X/SOL", true)
	assert.Equal(t, 0.95, rates.Rate("X/SOL"), "a 1/1 streak is clamped to the ceiling")

	rates.Record("Y/SOL", false)
	assert.Equal(t, 0.3, rates.Rate("Y/SOL"), "a 0/1 streak is clamped to the floor")
}

// Package tracker maintains bounded rolling windows of recent price samples
// per trading pair and derives short/medium/long-term percentage movement.
package tracker

import (
	"math"
	"sync"
	"time"

	"github.com/solsweep/sweepbot/internal/domain"
)

// DefaultWindowSize is the maximum number of price points retained per pair.
const DefaultWindowSize = 20

// window is the per-pair mutable state. One instance per configured pair,
// mutated in place each cycle and never destroyed.
type window struct {
	history      []domain.PricePoint
	lastPrice    float64
	shortTerm    float64 // last single-step movement, percent
	volatility   float64 // |shortTerm|
	direction    int     // sign of shortTerm
	lastSignalAt time.Time
}

// Tracker holds one sliding window per pair symbol. All methods are safe for
// concurrent use; the price timer and the trade timer interleave freely.
type Tracker struct {
	mu         sync.RWMutex
	windows    map[string]*window
	windowSize int
}

// New creates a Tracker with the given window size. Sizes below 2 fall back
// to DefaultWindowSize.
func New(windowSize int) *Tracker {
	if windowSize < 2 {
		windowSize = DefaultWindowSize
	}
	return &Tracker{
		windows:    make(map[string]*window),
		windowSize: windowSize,
	}
}

// Update appends a price point for the pair, evicting the oldest point once
// the window is full, and returns the short-term (single-step) percentage
// movement. The first sample for a pair returns 0.
func (t *Tracker) Update(symbol string, price float64, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[symbol]
	if !ok {
		w = &window{}
		t.windows[symbol] = w
	}

	prev := w.lastPrice
	w.history = append(w.history, domain.PricePoint{Price: price, Time: now})
	if len(w.history) > t.windowSize {
		w.history = w.history[1:]
	}
	w.lastPrice = price

	if prev == 0 {
		return 0
	}
	w.shortTerm = (price - prev) / prev * 100
	w.volatility = math.Abs(w.shortTerm)
	switch {
	case w.shortTerm > 0:
		w.direction = 1
	case w.shortTerm < 0:
		w.direction = -1
	default:
		w.direction = 0
	}
	return w.shortTerm
}

// MovementOver returns the percentage movement between the current price and
// the lookback-th most recent sample. If fewer than lookback samples exist it
// returns 0: insufficient history is a sentinel, not an error.
func (t *Tracker) MovementOver(symbol string, lookback int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.windows[symbol]
	if !ok || lookback < 1 || len(w.history) < lookback {
		return 0
	}
	ref := w.history[len(w.history)-lookback].Price
	if ref == 0 {
		return 0
	}
	return (w.lastPrice - ref) / ref * 100
}

// ShortTerm returns the most recent single-step movement in percent.
func (t *Tracker) ShortTerm(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.windows[symbol]; ok {
		return w.shortTerm
	}
	return 0
}

// Volatility returns the magnitude of the most recent single-step movement.
func (t *Tracker) Volatility(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.windows[symbol]; ok {
		return w.volatility
	}
	return 0
}

// Direction returns -1, 0 or 1 matching the sign of the short-term movement.
func (t *Tracker) Direction(symbol string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.windows[symbol]; ok {
		return w.direction
	}
	return 0
}

// LastPrice returns the most recent observed price, or 0 when none exists.
func (t *Tracker) LastPrice(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.windows[symbol]; ok {
		return w.lastPrice
	}
	return 0
}

// SampleCount returns the number of points currently in the pair's window.
func (t *Tracker) SampleCount(symbol string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.windows[symbol]; ok {
		return len(w.history)
	}
	return 0
}

// MarkSignal records that a signal fired for the pair at the given time; the
// detector uses it to debounce repeated firing on one sustained move.
func (t *Tracker) MarkSignal(symbol string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.windows[symbol]; ok {
		w.lastSignalAt = at
	}
}

// LastSignal returns when the pair last fired a signal (zero time if never).
func (t *Tracker) LastSignal(symbol string) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.windows[symbol]; ok {
		return w.lastSignalAt
	}
	return time.Time{}
}

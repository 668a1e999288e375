package tracker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_WindowNeverExceedsSize(t *testing.T) {
	tr := New(20)
	now := time.Now()
	for i := 0; i < 100; i++ {
		tr.Update("SOL/USDC", 100+float64(i), now.Add(time.Duration(i)*time.Second))
		assert.LessOrEqual(t, tr.SampleCount("SOL/USDC"), 20)
	}
	assert.Equal(t, 20, tr.SampleCount("SOL/USDC"))
	// Oldest points were evicted FIFO: 20 samples back is price 100+80.
	assert.InDelta(t, (199.0-180.0)/180.0*100, tr.MovementOver("SOL/USDC", 20), 1e-9)
}

func TestUpdate_ShortTermMovement(t *testing.T) {
	tr := New(20)
	now := time.Now()

	first := tr.Update("SOL/USDC", 100.00, now)
	assert.Zero(t, first, "first sample has no previous price")

	second := tr.Update("SOL/USDC", 100.05, now.Add(3*time.Second))
	assert.InDelta(t, 0.05, second, 1e-9)
	assert.Equal(t, 1, tr.Direction("SOL/USDC"))
	assert.InDelta(t, 0.05, tr.Volatility("SOL/USDC"), 1e-9)

	third := tr.Update("SOL/USDC", 100.00, now.Add(6*time.Second))
	assert.Negative(t, third)
	assert.Equal(t, -1, tr.Direction("SOL/USDC"))
}

func TestMovementOver_InsufficientHistoryReturnsZero(t *testing.T) {
	tr := New(20)
	now := time.Now()
	tr.Update("RAY/SOL", 1.0, now)
	tr.Update("RAY/SOL", 1.1, now.Add(time.Second))

	assert.Zero(t, tr.MovementOver("RAY/SOL", 5))
	assert.Zero(t, tr.MovementOver("RAY/SOL", 15))
	assert.Zero(t, tr.MovementOver("unknown", 2))
}

func TestMovementOver_Lookback(t *testing.T) {
	tr := New(20)
	now := time.Now()
	prices := []float64{100, 101, 102, 103, 104, 105}
	for i, p := range prices {
		tr.Update("SOL/USDC", p, now.Add(time.Duration(i)*time.Second))
	}

	// 5 samples back from 105 is 101.
	require.Equal(t, 6, tr.SampleCount("SOL/USDC"))
	assert.InDelta(t, (105.0-101.0)/101.0*100, tr.MovementOver("SOL/USDC", 5), 1e-9)
}

func TestMarkSignal(t *testing.T) {
	tr := New(20)
	now := time.Now()
	tr.Update("SOL/USDC", 100, now)

	assert.True(t, tr.LastSignal("SOL/USDC").IsZero())
	tr.MarkSignal("SOL/USDC", now)
	assert.Equal(t, now, tr.LastSignal("SOL/USDC"))
}

func TestTracker_ManyPairs(t *testing.T) {
	tr := New(20)
	now := time.Now()
	for i := 0; i < 5; i++ {
		sym := fmt.Sprintf("TOK%d/SOL", i)
		tr.Update(sym, float64(i+1), now)
		tr.Update(sym, float64(i+2), now.Add(time.Second))
	}
	for i := 0; i < 5; i++ {
		sym := fmt.Sprintf("TOK%d/SOL", i)
		assert.Equal(t, 2, tr.SampleCount(sym))
		assert.Equal(t, float64(i+2), tr.LastPrice(sym))
	}
}

package domain

import "time"

// PricePoint is a single price observation. Points are appended to per-pair
// windows in FIFO order and evicted oldest-first once the window is full.
type PricePoint struct {
	Price float64
	Time  time.Time
}

package detector

import "sync"

// successRateFloor and successRateCeil bound the observed success rate once
// real trade counts accumulate, so a short streak cannot saturate confidence.
const (
	successRateFloor = 0.3
	successRateCeil  = 0.95
)

// SuccessRates tracks per-pair trade outcomes and exposes the historical
// success rate used in confidence scoring. Until a pair has recorded trades,
// its configured default (or the fallback for unknown pairs) is returned.
type SuccessRates struct {
	mu       sync.Mutex
	defaults map[string]float64
	fallback float64
	stats    map[string]*pairStats
}

type pairStats struct {
	successful int
	total      int
}

// NewSuccessRates creates a SuccessRates table. defaults maps pair symbol to
// its starting rate; fallback is used for pairs not in the table.
func NewSuccessRates(defaults map[string]float64, fallback float64) *SuccessRates {
	d := make(map[string]float64, len(defaults))
	for sym, rate := range defaults {
		d[sym] = rate
	}
	return &SuccessRates{
		defaults: d,
		fallback: fallback,
		stats:    make(map[string]*pairStats),
	}
}

// Rate returns the success rate for the pair in [0, 1].
func (r *SuccessRates) Rate(symbol string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stats[symbol]; ok && s.total > 0 {
		rate := float64(s.successful) / float64(s.total)
		if rate < successRateFloor {
			return successRateFloor
		}
		if rate > successRateCeil {
			return successRateCeil
		}
		return rate
	}
	if rate, ok := r.defaults[symbol]; ok {
		return rate
	}
	return r.fallback
}

// Record adds one trade outcome for the pair.
func (r *SuccessRates) Record(symbol string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[symbol]
	if !ok {
		s = &pairStats{}
		r.stats[symbol] = s
	}
	s.total++
	if success {
		s.successful++
	}
}

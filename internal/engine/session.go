package engine

import "sync"

// Session is the single owner of the long-lived mutable trading state: the
// account, its balance snapshot, and the trading-enabled flag. Components
// receive the session by reference instead of reaching into globals; balances
// are always replaced wholesale from the authoritative source, never computed
// incrementally.
type Session struct {
	account string

	mu             sync.RWMutex
	balances       map[string]float64
	tradingEnabled bool
}

// NewSession creates a Session for the given account. Trading starts in the
// state given by tradingEnabled; monitor mode keeps it off permanently.
func NewSession(account string, tradingEnabled bool) *Session {
	return &Session{
		account:        account,
		balances:       map[string]float64{},
		tradingEnabled: tradingEnabled,
	}
}

// Account returns the engine's account identifier.
func (s *Session) Account() string {
	return s.account
}

// Balances returns a copy of the current balance snapshot.
func (s *Session) Balances() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.balances))
	for asset, amount := range s.balances {
		out[asset] = amount
	}
	return out
}

// Balance returns the current balance of one asset.
func (s *Session) Balance(asset string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[asset]
}

// SetBalances replaces the whole balance snapshot. Nil maps are ignored so a
// failed refresh never wipes the last known state.
func (s *Session) SetBalances(balances map[string]float64) {
	if balances == nil {
		return
	}
	s.mu.Lock()
	s.balances = balances
	s.mu.Unlock()
}

// TradingEnabled reports whether new trades may start.
func (s *Session) TradingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tradingEnabled
}

// SetTradingEnabled toggles trade execution without stopping detection.
func (s *Session) SetTradingEnabled(enabled bool) {
	s.mu.Lock()
	s.tradingEnabled = enabled
	s.mu.Unlock()
}

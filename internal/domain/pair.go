package domain

import "strings"

// TradingPair is an ordered (base, quote) pair of asset symbols, e.g. SOL/USDC.
// Pairs are fixed at startup and never mutated.
type TradingPair struct {
	Base  string
	Quote string
}

// ParsePair parses a "BASE/QUOTE" symbol into a TradingPair. The second return
// value is false when the symbol is malformed.
func ParsePair(symbol string) (TradingPair, bool) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TradingPair{}, false
	}
	return TradingPair{Base: parts[0], Quote: parts[1]}, true
}

// Symbol returns the canonical "BASE/QUOTE" representation.
func (p TradingPair) Symbol() string {
	return p.Base + "/" + p.Quote
}

// Contains reports whether asset is one of the pair's two legs.
func (p TradingPair) Contains(asset string) bool {
	return p.Base == asset || p.Quote == asset
}

// AssetClass buckets assets for risk and sizing decisions.
type AssetClass string

const (
	AssetClassBase     AssetClass = "base"
	AssetClassStable   AssetClass = "stable"
	AssetClassVolatile AssetClass = "volatile"
	AssetClassNew      AssetClass = "new"
)

package chain

// Token describes one SPL token the engine can hold: its mint address and the
// number of decimals used to convert between atomic and display units.
type Token struct {
	Symbol   string
	Mint     string
	Decimals int
}

// DefaultTokens returns the built-in registry for mainnet.
func DefaultTokens() map[string]Token {
	return map[string]Token{
		"SOL":  {Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
		"USDC": {Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
		"USDT": {Symbol: "USDT", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
		"RAY":  {Symbol: "RAY", Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6},
		"JUP":  {Symbol: "JUP", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
		"BONK": {Symbol: "BONK", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5},
	}
}

// ToAtomic converts a display amount into atomic units.
func (t Token) ToAtomic(amount float64) uint64 {
	scale := 1.0
	for i := 0; i < t.Decimals; i++ {
		scale *= 10
	}
	return uint64(amount * scale)
}

// FromAtomic converts atomic units into a display amount.
func (t Token) FromAtomic(atomic uint64) float64 {
	scale := 1.0
	for i := 0; i < t.Decimals; i++ {
		scale *= 10
	}
	return float64(atomic) / scale
}

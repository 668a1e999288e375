package jupiter

// quoteResponse is the Jupiter v6 /quote payload. Amounts are atomic-unit
// strings. The raw JSON is carried through to /swap unmodified, so only the
// fields the engine reads are declared here.
type quoteResponse struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	InAmount    string `json:"inAmount"`
	OutAmount   string `json:"outAmount"`
	SlippageBps int    `json:"slippageBps"`
	RoutePlan   []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

// swapRequest is the Jupiter v6 /swap request body. QuoteResponse is the raw
// quote JSON exactly as returned by /quote.
type swapRequest struct {
	QuoteResponse    any    `json:"quoteResponse"`
	UserPublicKey    string `json:"userPublicKey"`
	WrapAndUnwrapSol bool   `json:"wrapAndUnwrapSol"`
}

// swapResponse carries the unsigned transaction to submit, base64-encoded.
type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

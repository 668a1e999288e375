package domain

import "context"

// Quote is a venue quote for swapping InAmount of InputAsset into OutputAsset.
type Quote struct {
	InputAsset   string
	OutputAsset  string
	InAmount     float64
	OutAmount    float64
	Route        string
	SlippageBps  int
	SwapPayload  []byte // opaque venue transaction, signed at submission
}

// Price returns the implied execution price (output per input unit), or 0
// when the quote is degenerate.
func (q Quote) Price() float64 {
	if q.InAmount == 0 {
		return 0
	}
	return q.OutAmount / q.InAmount
}

// TxStatus is the venue-reported status of a submitted transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// QuoteService returns swap quotes. Implementations must be idempotent and
// side-effect-free; requesting a quote never commits anything.
type QuoteService interface {
	GetQuote(ctx context.Context, inputAsset, outputAsset string, amount float64, slippageBps int) (Quote, error)
}

// ExecutionVenue submits quoted swaps to the ledger and reports their status.
// Submit returns a transaction ID; the underlying settlement cannot be
// cancelled once submitted, so local timeouts abandon only the wait.
type ExecutionVenue interface {
	Submit(ctx context.Context, quote Quote, signer Signer) (txID string, err error)
	WaitConfirmation(ctx context.Context, txID string) error
	GetStatus(ctx context.Context, txID string) (TxStatus, error)
}

// BalanceSource is the authoritative account-balance oracle. It is eventually
// consistent with recent settlements; the engine always prefers re-reading it
// over computing balances locally.
type BalanceSource interface {
	GetBalances(ctx context.Context, account string) (map[string]float64, error)
}

// Signer signs venue transaction payloads. It is a single required dependency
// injected at construction; absence is a fatal configuration error, never a
// runtime fallback.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Address() string
}

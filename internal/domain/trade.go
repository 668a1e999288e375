package domain

// TradeState tracks a trade attempt through the executor's state machine.
type TradeState string

const (
	TradeStateQuoteRequested TradeState = "quote_requested"
	TradeStateQuoteValidated TradeState = "quote_validated"
	TradeStateSubmitted      TradeState = "submitted"
	TradeStateConfirming     TradeState = "confirming"
	TradeStateSettled        TradeState = "settled"
	TradeStateFailed         TradeState = "failed"
)

// TradeResult is the outcome of one trade attempt. Population is
// all-or-nothing: partial fills are not modeled. Indeterminate is set when
// confirmation timed out without a definitive status; the amounts then reflect
// the quote, and balances must be re-read from the authoritative source rather
// than trusted from this record.
type TradeResult struct {
	Success       bool
	Indeterminate bool
	TxID          string
	InputAsset    string
	OutputAsset   string
	InputAmount   float64
	OutputAmount  float64
}

// ConsolidationTask describes one pending sweep of a non-base balance back
// into the base asset. Tasks are destroyed on success or attempt exhaustion.
type ConsolidationTask struct {
	Asset             string
	Amount            float64
	AttemptsRemaining int
}

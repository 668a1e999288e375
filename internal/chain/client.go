// Package chain is the Solana JSON-RPC client used for balance reads,
// transaction submission, and confirmation.
package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/solsweep/sweepbot/internal/domain"
)

// Client talks to a Solana RPC node. It implements domain.BalanceSource and
// the submission/confirmation half of domain.ExecutionVenue.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	tokens     map[string]Token
	logger     *slog.Logger
	reqID      atomic.Int64
}

// New creates a Client and verifies connectivity with a getHealth call.
// A node that cannot be reached at startup is a fatal configuration error.
func New(ctx context.Context, rpcURL string, timeout time.Duration, tokens map[string]Token, logger *slog.Logger) (*Client, error) {
	c := &Client{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger.With(slog.String("component", "chain")),
	}
	var health string
	if err := c.call(ctx, "getHealth", nil, &health); err != nil {
		return nil, fmt.Errorf("chain: rpc health check: %w", err)
	}
	return c, nil
}

var _ domain.BalanceSource = (*Client)(nil)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("chain: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chain: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chain: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("chain: %s: %w", method, domain.ErrRateLimited)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chain: read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain: %s: status %d: %s", method, resp.StatusCode, body)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("chain: decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("chain: %s: %w", method, envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("chain: decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetBalances returns the account's native balance plus every registered SPL
// token balance, keyed by symbol. Tokens with no account are reported as 0.
func (c *Client) GetBalances(ctx context.Context, account string) (map[string]float64, error) {
	balances := make(map[string]float64, len(c.tokens))
	for sym := range c.tokens {
		balances[sym] = 0
	}

	var native struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{account}, &native); err != nil {
		return nil, err
	}
	if sol, ok := c.tokens["SOL"]; ok {
		balances["SOL"] = sol.FromAtomic(native.Value)
	}

	var tokenAccounts struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals int    `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	params := []any{
		account,
		map[string]string{"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &tokenAccounts); err != nil {
		return nil, err
	}

	byMint := make(map[string]Token, len(c.tokens))
	for _, tok := range c.tokens {
		byMint[tok.Mint] = tok
	}
	for _, acct := range tokenAccounts.Value {
		info := acct.Account.Data.Parsed.Info
		tok, ok := byMint[info.Mint]
		if !ok {
			continue
		}
		raw, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}
		balances[tok.Symbol] += tok.FromAtomic(raw)
	}

	return balances, nil
}

// SendTransaction submits a signed, serialized transaction and returns its
// signature.
func (c *Client) SendTransaction(ctx context.Context, signedTx []byte) (string, error) {
	params := []any{
		base64.StdEncoding.EncodeToString(signedTx),
		map[string]any{"encoding": "base64", "skipPreflight": false},
	}
	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetStatus reports the confirmation status of a transaction signature.
func (c *Client) GetStatus(ctx context.Context, txID string) (domain.TxStatus, error) {
	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	params := []any{[]string{txID}, map[string]bool{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return domain.TxStatusPending, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return domain.TxStatusPending, nil
	}

	status := result.Value[0]
	if status.Err != nil && string(status.Err) != "null" {
		return domain.TxStatusFailed, nil
	}
	switch status.ConfirmationStatus {
	case "confirmed", "finalized":
		return domain.TxStatusConfirmed, nil
	default:
		return domain.TxStatusPending, nil
	}
}

// WaitConfirmation polls the signature status until the transaction confirms,
// fails, or the context expires. Failure on chain is returned as an error so
// callers can distinguish it from a timeout via GetStatus.
func (c *Client) WaitConfirmation(ctx context.Context, txID string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		status, err := c.GetStatus(ctx, txID)
		if err == nil {
			switch status {
			case domain.TxStatusConfirmed:
				return nil
			case domain.TxStatusFailed:
				return fmt.Errorf("chain: transaction %s failed", txID)
			}
		} else {
			c.logger.Debug("status poll failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Token resolves a symbol from the registry.
func (c *Client) Token(symbol string) (Token, bool) {
	tok, ok := c.tokens[symbol]
	return tok, ok
}

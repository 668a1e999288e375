// Package jupiter is the REST client for the Jupiter v6 swap aggregator. It
// provides quotes and, composed with the chain client, full swap execution.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/solsweep/sweepbot/internal/chain"
	"github.com/solsweep/sweepbot/internal/domain"
)

// Client implements domain.QuoteService and domain.ExecutionVenue against the
// Jupiter aggregator API, delegating submission and confirmation to the chain
// client.
type Client struct {
	quoteURL   string
	swapURL    string
	httpClient *http.Client
	chain      *chain.Client
	logger     *slog.Logger
}

// New creates a Client. quoteURL and swapURL are the API roots, e.g.
// "https://quote-api.jup.ag/v6".
func New(quoteURL, swapURL string, timeout time.Duration, chainClient *chain.Client, logger *slog.Logger) *Client {
	return &Client{
		quoteURL:   strings.TrimRight(quoteURL, "/"),
		swapURL:    strings.TrimRight(swapURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		chain:      chainClient,
		logger:     logger.With(slog.String("component", "jupiter")),
	}
}

var (
	_ domain.QuoteService   = (*Client)(nil)
	_ domain.ExecutionVenue = (*Client)(nil)
)

// GetQuote fetches a quote for swapping amount of inputAsset into outputAsset
// at the given slippage tolerance. The raw quote JSON is retained in the
// returned Quote so Submit can pass it to /swap unmodified.
func (c *Client) GetQuote(ctx context.Context, inputAsset, outputAsset string, amount float64, slippageBps int) (domain.Quote, error) {
	inTok, ok := c.chain.Token(inputAsset)
	if !ok {
		return domain.Quote{}, fmt.Errorf("jupiter: unknown asset %q", inputAsset)
	}
	outTok, ok := c.chain.Token(outputAsset)
	if !ok {
		return domain.Quote{}, fmt.Errorf("jupiter: unknown asset %q", outputAsset)
	}

	query := url.Values{}
	query.Set("inputMint", inTok.Mint)
	query.Set("outputMint", outTok.Mint)
	query.Set("amount", strconv.FormatUint(inTok.ToAtomic(amount), 10))
	query.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("jupiter: build quote request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("jupiter: quote %s->%s: %w", inputAsset, outputAsset, err)
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return domain.Quote{}, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	inAtomic, err := strconv.ParseUint(quote.InAmount, 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("jupiter: parse inAmount %q: %w", quote.InAmount, err)
	}
	outAtomic, err := strconv.ParseUint(quote.OutAmount, 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("jupiter: parse outAmount %q: %w", quote.OutAmount, err)
	}
	if outAtomic == 0 {
		return domain.Quote{}, domain.ErrNoQuote
	}

	route := make([]string, 0, len(quote.RoutePlan))
	for _, hop := range quote.RoutePlan {
		route = append(route, hop.SwapInfo.Label)
	}

	return domain.Quote{
		InputAsset:  inputAsset,
		OutputAsset: outputAsset,
		InAmount:    inTok.FromAtomic(inAtomic),
		OutAmount:   outTok.FromAtomic(outAtomic),
		Route:       strings.Join(route, " > "),
		SlippageBps: quote.SlippageBps,
		SwapPayload: body,
	}, nil
}

// Submit builds the swap transaction for the quote, signs it, and sends it to
// the chain. It returns the transaction signature.
func (c *Client) Submit(ctx context.Context, quote domain.Quote, signer domain.Signer) (string, error) {
	reqBody, err := json.Marshal(swapRequest{
		QuoteResponse:    json.RawMessage(quote.SwapPayload),
		UserPublicKey:    signer.Address(),
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return "", fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.swapURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("jupiter: build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("jupiter: swap: %w", err)
	}

	var swap swapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return "", fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if swap.Error != "" {
		return "", fmt.Errorf("jupiter: swap rejected: %s", swap.Error)
	}

	unsigned, err := base64.StdEncoding.DecodeString(swap.SwapTransaction)
	if err != nil {
		return "", fmt.Errorf("jupiter: decode swap transaction: %w", err)
	}
	signed, err := signer.Sign(unsigned)
	if err != nil {
		return "", fmt.Errorf("jupiter: %w: %s", domain.ErrSigningFailed, err)
	}

	txID, err := c.chain.SendTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("jupiter: send: %w", err)
	}
	c.logger.Debug("swap submitted",
		slog.String("tx_id", txID),
		slog.String("route", quote.Route),
	)
	return txID, nil
}

// WaitConfirmation delegates to the chain client.
func (c *Client) WaitConfirmation(ctx context.Context, txID string) error {
	return c.chain.WaitConfirmation(ctx, txID)
}

// GetStatus delegates to the chain client.
func (c *Client) GetStatus(ctx context.Context, txID string) (domain.TxStatus, error) {
	return c.chain.GetStatus(ctx, txID)
}

// do executes an HTTP request and returns the response body, mapping rate
// limiting to the domain sentinel.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

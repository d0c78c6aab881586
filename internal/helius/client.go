// Package helius wraps the Helius enhanced transactions API.
package helius

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the Helius enhanced API host.
const DefaultBaseURL = "https://api.helius.xyz"

// TokenTransfer is a single token movement inside an enriched transaction.
type TokenTransfer struct {
	Mint            string  `json:"mint"`
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"`
}

// EnrichedTransaction is an entry from /v0/addresses/{address}/transactions.
type EnrichedTransaction struct {
	Signature      string          `json:"signature"`
	Timestamp      int64           `json:"timestamp"` // unix seconds
	Type           string          `json:"type"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers"`
}

// Client calls the Helius enhanced transactions API.
type Client struct {
	http   *resty.Client
	apiKey string
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API host (used in tests).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(url)
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// NewClient creates a Helius API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		http:   resty.New().SetBaseURL(DefaultBaseURL).SetTimeout(30 * time.Second),
		apiKey: apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TransferTransactions fetches up to limit most recent transfer-type
// transactions for the address, newest first (server-side filtered).
func (c *Client) TransferTransactions(ctx context.Context, address string, limit int) ([]EnrichedTransaction, error) {
	var txs []EnrichedTransaction

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("address", address).
		SetQueryParams(map[string]string{
			"api-key": c.apiKey,
			"limit":   fmt.Sprintf("%d", limit),
			"type":    "TRANSFER",
		}).
		SetResult(&txs).
		Get("/v0/addresses/{address}/transactions")
	if err != nil {
		return nil, fmt.Errorf("helius transactions request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("helius transactions: status %d: %s", resp.StatusCode(), resp.String())
	}

	return txs, nil
}

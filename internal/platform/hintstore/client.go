// Package hintstore is the HTTP client for the off-chain wager hint service.
// Hints are a UX accelerator only: every call here is best-effort and no
// caller treats a hint failure as fatal.
package hintstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
)

// Client talks to the hint service's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ domain.HintStore = (*Client)(nil)

// NewClient creates a hint store client. An empty baseURL disables the store:
// the returned client accepts every call as a no-op.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			// Hints must never stall a wager submission.
			Timeout: 5 * time.Second,
		},
	}
}

// Enabled reports whether the client has an endpoint configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// RecordWager mirrors a freshly submitted wager into the hint store.
func (c *Client) RecordWager(ctx context.Context, hint domain.WagerHint) error {
	if !c.Enabled() {
		return nil
	}

	jsonBody, err := json.Marshal(hint)
	if err != nil {
		return fmt.Errorf("hintstore: marshal hint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/wagers", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("hintstore: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hintstore: record wager: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hintstore: record wager: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// ResolvedLoss asks the store whether the account's position in a resolved
// market is marked as a loss. Any failure, including an unconfigured client,
// returns false so the caller falls through to the authoritative query.
func (c *Client) ResolvedLoss(ctx context.Context, marketID uint64, account string) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	url := fmt.Sprintf("%s/v1/markets/%d/accounts/%s/result", c.baseURL, marketID, account)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("hintstore: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("hintstore: resolved loss: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("hintstore: resolved loss: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Lost bool `json:"lost"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("hintstore: decode result: %w", err)
	}
	return result.Lost, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

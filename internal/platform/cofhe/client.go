// Package cofhe is the HTTP client for the coprocessor relayer that fronts
// the threshold encryption network. It provides the engine's only two
// capabilities over ciphertext: encrypting inputs and batch-decrypting
// handles under a signed permit.
package cofhe

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veilbet/veilbet/internal/domain"
)

// Client talks to the relayer's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ domain.Decryptor = (*Client)(nil)
	_ domain.Encryptor = (*Client)(nil)
)

// NewClient creates a relayer client.
//
// baseURL is the relayer endpoint, e.g. "http://localhost:8548".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --------------------------------------------------------------------------
// Decryption
// --------------------------------------------------------------------------

// decryptRequest is the relayer's batch-decrypt envelope.
type decryptRequest struct {
	RequestID string                  `json:"request_id"`
	Permit    domain.DecryptionPermit `json:"permit"`
	Handles   []string                `json:"handles"`
}

// decryptResponse maps each requested handle to its cleartext value. Handles
// the network could not decrypt are simply absent.
type decryptResponse struct {
	Values map[string]uint64 `json:"values"`
	Error  string            `json:"error,omitempty"`
}

// BatchDecrypt decrypts a batch of handles under the given permit. Zero
// handles are filtered out before the request; an empty batch short-circuits
// without touching the network. Failures map to ErrDecryptionUnavailable so
// callers can degrade instead of aborting.
func (c *Client) BatchDecrypt(ctx context.Context, permit domain.DecryptionPermit, handles []domain.Handle) (map[domain.Handle]uint64, error) {
	if !permit.Valid(time.Now()) {
		return nil, fmt.Errorf("cofhe: %w: permit expired or unsigned", domain.ErrDecryptionUnavailable)
	}

	live := make([]string, 0, len(handles))
	for _, h := range handles {
		if !h.Zero() {
			live = append(live, string(h))
		}
	}
	if len(live) == 0 {
		return map[domain.Handle]uint64{}, nil
	}

	reqBody := decryptRequest{
		RequestID: uuid.NewString(),
		Permit:    permit,
		Handles:   live,
	}

	var resp decryptResponse
	if err := c.post(ctx, "/v1/decrypt", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("cofhe: batch decrypt: %w: %s", domain.ErrDecryptionUnavailable, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("cofhe: batch decrypt: %w: %s", domain.ErrDecryptionUnavailable, resp.Error)
	}

	out := make(map[domain.Handle]uint64, len(resp.Values))
	for h, v := range resp.Values {
		out[domain.Handle(h)] = v
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Encryption
// --------------------------------------------------------------------------

// encryptRequest asks the relayer to encrypt one input value and produce its
// zero-knowledge input proof.
type encryptRequest struct {
	RequestID string `json:"request_id"`
	Value     uint64 `json:"value"`
}

// encryptResponse carries the hex-encoded ciphertext and proof.
type encryptResponse struct {
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"proof"`
	Error      string `json:"error,omitempty"`
}

// Encrypt produces a contract-ready ciphertext for value. Failures map to
// ErrEncryptionNotReady.
func (c *Client) Encrypt(ctx context.Context, value uint64) (domain.Ciphertext, error) {
	reqBody := encryptRequest{
		RequestID: uuid.NewString(),
		Value:     value,
	}

	var resp encryptResponse
	if err := c.post(ctx, "/v1/encrypt", reqBody, &resp); err != nil {
		return domain.Ciphertext{}, fmt.Errorf("cofhe: encrypt: %w: %s", domain.ErrEncryptionNotReady, err)
	}
	if resp.Error != "" {
		return domain.Ciphertext{}, fmt.Errorf("cofhe: encrypt: %w: %s", domain.ErrEncryptionNotReady, resp.Error)
	}

	data, err := hex.DecodeString(strings.TrimPrefix(resp.Ciphertext, "0x"))
	if err != nil {
		return domain.Ciphertext{}, fmt.Errorf("cofhe: encrypt: invalid ciphertext hex: %w", err)
	}
	proof, err := hex.DecodeString(strings.TrimPrefix(resp.Proof, "0x"))
	if err != nil {
		return domain.Ciphertext{}, fmt.Errorf("cofhe: encrypt: invalid proof hex: %w", err)
	}
	if len(data) == 0 {
		return domain.Ciphertext{}, errors.New("cofhe: encrypt: relayer returned empty ciphertext")
	}

	return domain.Ciphertext{Data: data, Proof: proof}, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// post executes a JSON POST against the relayer and decodes the response
// into out.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

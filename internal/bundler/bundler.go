package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dex-task-service/internal/solana"
)

// TipAccount receives bundle tips.
const TipAccount = "96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"

// MaxBundleTransactions is the relay's per-bundle transaction limit.
const MaxBundleTransactions = 5

// BundleStatus describes a submitted bundle's landing state.
type BundleStatus struct {
	BundleID string `json:"bundle_id"`
	Status   string `json:"status"`
	Slot     uint64 `json:"slot"`
}

// Client submits atomic transaction bundles to a block engine relay.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string) *Client {
	return &Client{url: url, http: &http.Client{Timeout: 30 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}
	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: relay error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendBundle submits base58-encoded signed transactions as one atomic bundle
// and returns the relay's bundle id.
func (c *Client) SendBundle(ctx context.Context, transactions []string) (string, error) {
	if len(transactions) == 0 {
		return "", fmt.Errorf("empty bundle")
	}
	if len(transactions) > MaxBundleTransactions {
		return "", fmt.Errorf("bundle holds %d transactions, limit is %d", len(transactions), MaxBundleTransactions)
	}
	var bundleID string
	if err := c.call(ctx, "sendBundle", []any{transactions}, &bundleID); err != nil {
		return "", err
	}
	return bundleID, nil
}

// GetBundleStatus fetches the landing state of a previously sent bundle.
func (c *Client) GetBundleStatus(ctx context.Context, bundleID string) (*BundleStatus, error) {
	var result struct {
		Value []BundleStatus `json:"value"`
	}
	if err := c.call(ctx, "getBundleStatuses", []any{[]string{bundleID}}, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, fmt.Errorf("bundle %s not found", bundleID)
	}
	return &result.Value[0], nil
}

// TipInstruction builds the tip transfer a bundle must carry to be accepted.
func TipInstruction(payer solana.PublicKey, tipSol float64) (solana.Instruction, error) {
	tip, err := solana.PublicKeyFromBase58(TipAccount)
	if err != nil {
		return solana.Instruction{}, fmt.Errorf("tip account: %w", err)
	}
	return solana.NewTransferInstruction(payer, tip, solana.SolToLamports(tipSol)), nil
}

package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// MaxBatchAccounts is the getMultipleAccounts address limit per call.
const MaxBatchAccounts = 100

// Client is a minimal JSON-RPC client for the Solana HTTP endpoint.
type Client struct {
	url  string
	http *http.Client

	mu       sync.RWMutex
	decimals map[string]uint8
}

func NewClient(url string) *Client {
	return &Client{
		url:      url,
		http:     &http.Client{Timeout: 30 * time.Second},
		decimals: make(map[string]uint8),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
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
		return fmt.Errorf("%s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// GetLatestBlockhash returns the most recent blockhash in base58.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []any{map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction submits a base58-encoded signed transaction and returns its
// signature.
func (c *Client) SendTransaction(ctx context.Context, rawBase58 string) (string, error) {
	params := []any{rawBase58, map[string]any{"encoding": "base58", "skipPreflight": true}}
	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

type accountInfo struct {
	Lamports uint64   `json:"lamports"`
	Data     []string `json:"data"`
}

func (c *Client) getMultipleAccounts(ctx context.Context, addresses []string) ([]*accountInfo, error) {
	if len(addresses) > MaxBatchAccounts {
		return nil, fmt.Errorf("getMultipleAccounts accepts at most %d addresses, got %d", MaxBatchAccounts, len(addresses))
	}
	var result struct {
		Value []*accountInfo `json:"value"`
	}
	params := []any{addresses, map[string]string{"encoding": "base64"}}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// GetBatchSolBalances returns the SOL balance of each address, in order.
// Missing accounts report zero. At most MaxBatchAccounts addresses.
func (c *Client) GetBatchSolBalances(ctx context.Context, addresses []string) ([]float64, error) {
	accounts, err := c.getMultipleAccounts(ctx, addresses)
	if err != nil {
		return nil, err
	}
	balances := make([]float64, len(addresses))
	for i, acc := range accounts {
		if acc != nil {
			balances[i] = LamportsToSol(acc.Lamports)
		}
	}
	return balances, nil
}

// GetBatchTokenBalances returns each address's balance of mint, in token
// units and in order. Wallets without a token account report zero. At most
// MaxBatchAccounts addresses.
func (c *Client) GetBatchTokenBalances(ctx context.Context, addresses []string, mint string) ([]float64, error) {
	mintKey, err := PublicKeyFromBase58(mint)
	if err != nil {
		return nil, err
	}
	decimals, err := c.MintDecimals(ctx, mint)
	if err != nil {
		return nil, err
	}

	atas := make([]string, len(addresses))
	for i, addr := range addresses {
		owner, err := PublicKeyFromBase58(addr)
		if err != nil {
			return nil, err
		}
		ata, err := AssociatedTokenAddress(owner, mintKey)
		if err != nil {
			return nil, err
		}
		atas[i] = ata.String()
	}

	accounts, err := c.getMultipleAccounts(ctx, atas)
	if err != nil {
		return nil, err
	}
	divisor := float64(1)
	for i := uint8(0); i < decimals; i++ {
		divisor *= 10
	}
	balances := make([]float64, len(addresses))
	for i, acc := range accounts {
		if acc == nil {
			continue
		}
		raw, err := decodeAccountData(acc)
		if err != nil {
			return nil, fmt.Errorf("token account %s: %w", atas[i], err)
		}
		// SPL token account layout: mint (32) + owner (32) + amount (u64 LE).
		if len(raw) < 72 {
			return nil, fmt.Errorf("token account %s: short data %d", atas[i], len(raw))
		}
		amount := binary.LittleEndian.Uint64(raw[64:72])
		balances[i] = float64(amount) / divisor
	}
	return balances, nil
}

// GetAccountData fetches one account's raw data.
func (c *Client) GetAccountData(ctx context.Context, address string) ([]byte, error) {
	accounts, err := c.getMultipleAccounts(ctx, []string{address})
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 || accounts[0] == nil {
		return nil, fmt.Errorf("account %s not found", address)
	}
	raw, err := decodeAccountData(accounts[0])
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", address, err)
	}
	return raw, nil
}

// MintDecimals returns the decimal count of the mint, cached after the first
// lookup.
func (c *Client) MintDecimals(ctx context.Context, mint string) (uint8, error) {
	c.mu.RLock()
	d, ok := c.decimals[mint]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	accounts, err := c.getMultipleAccounts(ctx, []string{mint})
	if err != nil {
		return 0, err
	}
	if len(accounts) == 0 || accounts[0] == nil {
		return 0, fmt.Errorf("mint %s not found", mint)
	}
	raw, err := decodeAccountData(accounts[0])
	if err != nil {
		return 0, fmt.Errorf("mint %s: %w", mint, err)
	}
	// SPL mint layout: authority option (4) + authority (32) + supply (8) +
	// decimals (1).
	if len(raw) < 45 {
		return 0, fmt.Errorf("mint %s: short data %d", mint, len(raw))
	}
	d = raw[44]

	c.mu.Lock()
	c.decimals[mint] = d
	c.mu.Unlock()
	return d, nil
}

func decodeAccountData(acc *accountInfo) ([]byte, error) {
	if len(acc.Data) < 1 {
		return nil, fmt.Errorf("missing account data")
	}
	raw, err := base64.StdEncoding.DecodeString(acc.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return raw, nil
}

// Package rpc provides a JSON-RPC custody ledger client.
//
// It speaks to an external custody node that owns the actual balances. The
// engine treats it purely through the custody.Ledger and
// custody.BalanceOracle interfaces.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/answerpool/service_layer/internal/custody"
)

// Config holds client configuration.
type Config struct {
	// URL is the custody node JSON-RPC endpoint.
	URL string
	// EscrowAccount is the platform escrow identity on the custody node.
	EscrowAccount string
	// Timeout bounds each RPC call. Defaults to 30s.
	Timeout time.Duration
}

// Client is a JSON-RPC custody ledger.
type Client struct {
	url        string
	escrow     string
	httpClient *http.Client
}

var _ custody.Ledger = (*Client)(nil)
var _ custody.BalanceOracle = (*Client)(nil)

// NewClient creates a custody RPC client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("custody RPC URL required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	escrow := cfg.EscrowAccount
	if escrow == "" {
		escrow = "escrow"
	}
	return &Client{
		url:    cfg.URL,
		escrow: escrow,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call makes a raw RPC call to the custody node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// Lock debits the payer into the platform escrow account.
func (c *Client) Lock(ctx context.Context, payer string, amount uint64) error {
	return c.transfer(ctx, payer, c.escrow, amount)
}

// Pay credits a recipient out of the platform escrow account.
func (c *Client) Pay(ctx context.Context, recipient string, amount uint64) error {
	return c.transfer(ctx, c.escrow, recipient, amount)
}

func (c *Client) transfer(ctx context.Context, from, to string, amount uint64) error {
	result, err := c.Call(ctx, "transfer", []interface{}{from, to, amount})
	if err != nil {
		return fmt.Errorf("%w: %v", custody.ErrTransferRejected, err)
	}

	var ok bool
	if err := json.Unmarshal(result, &ok); err != nil {
		return fmt.Errorf("%w: malformed transfer result: %v", custody.ErrTransferRejected, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s for %d", custody.ErrTransferRejected, from, to, amount)
	}
	return nil
}

// PayAll submits a batch transfer out of escrow. The custody node applies
// the batch atomically.
func (c *Client) PayAll(ctx context.Context, payments []custody.Payment) error {
	legs := make([]interface{}, 0, len(payments))
	for _, p := range payments {
		legs = append(legs, map[string]interface{}{
			"recipient": p.Recipient,
			"amount":    p.Amount,
		})
	}

	result, err := c.Call(ctx, "transferbatch", []interface{}{c.escrow, legs})
	if err != nil {
		return fmt.Errorf("%w: %v", custody.ErrTransferRejected, err)
	}

	var ok bool
	if err := json.Unmarshal(result, &ok); err != nil {
		return fmt.Errorf("%w: malformed batch result: %v", custody.ErrTransferRejected, err)
	}
	if !ok {
		return fmt.Errorf("%w: batch of %d payments", custody.ErrTransferRejected, len(payments))
	}
	return nil
}

// BalanceOf reports a holder's spendable balance on the custody node.
func (c *Client) BalanceOf(ctx context.Context, holder string) (uint64, error) {
	result, err := c.Call(ctx, "balanceof", []interface{}{holder})
	if err != nil {
		return 0, err
	}

	var balance uint64
	if err := json.Unmarshal(result, &balance); err != nil {
		return 0, fmt.Errorf("unmarshal balance: %w", err)
	}
	return balance, nil
}

// NativeBalance implements the eligibility balance oracle.
func (c *Client) NativeBalance(ctx context.Context, identity string) (uint64, error) {
	return c.BalanceOf(ctx, identity)
}

// Package ledger implements the JSON-RPC client for the external
// accounting ledger. It satisfies core.LedgerClient; the core never sees
// the wire format.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"billing-agent/internal/core"
)

// Config carries the ledger endpoint and credentials.
type Config struct {
	URL      string `env:"LEDGER_URL"`
	Database string `env:"LEDGER_DB"`
	Username string `env:"LEDGER_USER"`
	Password string `env:"LEDGER_PASSWORD"`
}

// Client talks JSON-RPC 2.0 to the ledger's /jsonrpc endpoint using the
// classic service/method/args envelope (service "common" for
// authentication, "object" with execute_kw for everything else).
type Client struct {
	httpClient *http.Client
	cfg        Config
	uid        int64 // authenticated user id, set by Authenticate
	nextID     atomic.Int64
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cfg:        cfg,
		log:        log,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Data.Message)
	}
	return e.Message
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/jsonrpc", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc call returned HTTP %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("ledger error: %w", rpcResp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode rpc result: %w", err)
		}
	}
	return nil
}

// Authenticate resolves the user id for subsequent execute_kw calls.
// Must succeed before any other method is used.
func (c *Client) Authenticate(ctx context.Context) error {
	// Bad credentials come back as the literal false, not an error.
	var result any
	err := c.call(ctx, "common", "authenticate",
		[]any{c.cfg.Database, c.cfg.Username, c.cfg.Password, map[string]any{}}, &result)
	if err != nil {
		return fmt.Errorf("ledger authentication failed: %w", err)
	}
	uid, ok := result.(float64)
	if !ok || uid == 0 {
		return fmt.Errorf("ledger rejected credentials for %s on %s", c.cfg.Username, c.cfg.Database)
	}
	c.uid = int64(uid)
	c.log.Debug("authenticated against ledger", zap.Int64("uid", c.uid))
	return nil
}

// executeKw invokes model.method(args, kwargs) as the authenticated user.
func (c *Client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	if c.uid == 0 {
		return fmt.Errorf("ledger client is not authenticated")
	}
	callArgs := []any{c.cfg.Database, c.uid, c.cfg.Password, model, method, args}
	if kwargs != nil {
		callArgs = append(callArgs, kwargs)
	}
	return c.call(ctx, "object", "execute_kw", callArgs, out)
}

// domain renders conditions as the ledger's triplet filter format.
func domain(filter []core.Condition) []any {
	out := make([]any, 0, len(filter))
	for _, cond := range filter {
		out = append(out, []any{cond.Field, cond.Op, cond.Value})
	}
	return out
}

// SearchRead implements core.LedgerClient.
func (c *Client) SearchRead(ctx context.Context, model string, filter []core.Condition, fields []string, limit int) ([]core.Record, error) {
	kwargs := map[string]any{"fields": fields}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	var records []core.Record
	if err := c.executeKw(ctx, model, "search_read", []any{domain(filter)}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create implements core.LedgerClient.
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	var id int64
	if err := c.executeKw(ctx, model, "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write implements core.LedgerClient.
func (c *Client) Write(ctx context.Context, model string, ids []int64, values map[string]any) error {
	return c.executeKw(ctx, model, "write", []any{ids, values}, nil, nil)
}

// Execute implements core.LedgerClient. The result of the remote operation
// is discarded; only success matters to the caller.
func (c *Client) Execute(ctx context.Context, model, method string, ids []int64) error {
	return c.executeKw(ctx, model, method, []any{ids}, nil, nil)
}

// rpc.go is a minimal Ethereum JSON-RPC client with
// multi-endpoint fallback.
package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// RPCClient talks to one or more JSON-RPC endpoints, trying each in order
// until a call succeeds.
type RPCClient struct {
	urls       []string
	httpClient *http.Client
	requestID  atomic.Int64
}

// NewRPCClient creates a client for the given endpoint URLs.
func NewRPCClient(urls []string) *RPCClient {
	return &RPCClient{
		urls:       urls,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method, falling back across endpoints.
func (c *RPCClient) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.requestID.Add(1),
	}

	var lastErr error
	for _, url := range c.urls {
		result, err := c.doRequest(ctx, url, req)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}

func (c *RPCClient) doRequest(ctx context.Context, url string, req rpcRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// CallString invokes a method whose result is a JSON string.
func (c *RPCClient) CallString(ctx context.Context, method string, params ...interface{}) (string, error) {
	raw, err := c.Call(ctx, method, params...)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("unmarshaling %s result: %w", method, err)
	}
	return s, nil
}

// EthCall performs eth_call against a contract and returns the raw
// return data.
func (c *RPCClient) EthCall(ctx context.Context, to string, data []byte) ([]byte, error) {
	result, err := c.CallString(ctx, "eth_call", map[string]string{
		"to":   to,
		"data": HexEncode(data),
	}, "latest")
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimPrefix(result, "0x"))
}

// EthBalance returns the native currency balance of an address in wei.
func (c *RPCClient) EthBalance(ctx context.Context, addr string) (*big.Int, error) {
	result, err := c.CallString(ctx, "eth_getBalance", addr, "latest")
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(result, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", result)
	}
	return v, nil
}

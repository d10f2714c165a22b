package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is a minimal JSON-RPC 2.0 client for the vaultd endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient constructs a client for the given endpoint URL.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method with a single params object and decodes the
// result into out when non-nil.
func (c *Client) Call(method string, params interface{}, out interface{}) error {
	payload := rpcRequest{JSONRPC: "2.0", Method: method, ID: 1}
	if params != nil {
		payload.Params = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out != nil {
		return json.Unmarshal(decoded.Result, out)
	}
	return nil
}

type checkUpkeepResult struct {
	UpkeepNeeded bool   `json:"upkeepNeeded"`
	PerformData  string `json:"performData"`
}

// CheckUpkeep polls the automation predicate.
func (c *Client) CheckUpkeep() (*checkUpkeepResult, error) {
	result := &checkUpkeepResult{}
	if err := c.Call("vault_checkUpkeep", nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PerformUpkeep submits the automated execution with the advisory snapshot
// returned by the last check.
func (c *Client) PerformUpkeep(caller, performData string) error {
	params := map[string]string{"caller": caller, "performData": performData}
	return c.Call("vault_performUpkeep", params, nil)
}

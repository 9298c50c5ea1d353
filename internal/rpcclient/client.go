// Package rpcclient provides a JSON-RPC client for bitcoind-compatible
// nodes, returning wire types ready for indexing.
package rpcclient

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Client is a JSON-RPC HTTP client.
type Client struct {
	endpoint string
	user     string
	pass     string
	http     *http.Client
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint, user, pass string) *Client {
	return NewWithTimeout(endpoint, user, pass, 10*time.Second)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
func NewWithTimeout(endpoint, user, pass string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		user:     user,
		pass:     pass,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// response is a JSON-RPC response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// rpcError is a JSON-RPC error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// errInvalidParameter is the code bitcoind returns for getblockhash past
// the tip. It marks chain end, not failure.
const errInvalidParameter = -8

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(method string, params, result interface{}) error {
	req := request{
		JSONRPC: "1.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		httpReq.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// GetBlockCount returns the height of the node's chain tip.
func (c *Client) GetBlockCount() (uint64, error) {
	var count uint64
	if err := c.Call("getblockcount", nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetBlockHash returns the hash of the block at the given height, or
// (nil, nil) when the chain has no block there.
func (c *Client) GetBlockHash(height uint64) (*chainhash.Hash, error) {
	var s string
	err := c.Call("getblockhash", []interface{}{height}, &s)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == errInvalidParameter {
			return nil, nil
		}
		return nil, err
	}
	return chainhash.NewHashFromStr(s)
}

// GetBlock fetches the full block with the given hash.
func (c *Client) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	var raw string
	if err := c.Call("getblock", []interface{}{hash.String(), 0}, &raw); err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode block hex: %w", err)
	}
	var block wire.MsgBlock
	if err := block.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("deserialize block: %w", err)
	}
	return &block, nil
}

// GetBlockHeader fetches only the header of the block with the given hash.
func (c *Client) GetBlockHeader(hash *chainhash.Hash) (*wire.BlockHeader, error) {
	var raw string
	if err := c.Call("getblockheader", []interface{}{hash.String(), false}, &raw); err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode header hex: %w", err)
	}
	var header wire.BlockHeader
	if err := header.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("deserialize header: %w", err)
	}
	return &header, nil
}

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient implements Client over a WebSocket connection.
// Calls are serialized: one request is written and its response read before
// the next call starts, which matches the sequential submission flow.
//
// gorilla/websocket connections are unusable after any read or write error
// (deadline errors included), so a failed call drops the connection and the
// next call redials.
type WSClient struct {
	url     string
	conn    *websocket.Conn
	mu      sync.Mutex
	nextID  int
	timeout time.Duration
	logger  *slog.Logger
}

// DialWebSocket connects to a ws:// or wss:// JSON-RPC endpoint.
func DialWebSocket(ctx context.Context, cfg ClientConfig) (*WSClient, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &WSClient{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *WSClient) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", c.url, err)
	}
	c.conn = conn
	c.logger.Debug("connected to RPC websocket", slog.String("url", c.url))
	return nil
}

// drop closes a connection that failed mid-call.
func (c *WSClient) drop(cause error) {
	if c.conn == nil {
		return
	}
	c.logger.Debug("dropping websocket connection", slog.String("error", cause.Error()))
	_ = c.conn.Close()
	c.conn = nil
}

// Call writes one JSON-RPC request and waits for the response with the same id.
// Messages with other ids (subscription notifications) are skipped.
func (c *WSClient) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return nil, err
		}
	}

	result, err := c.roundTrip(ctx, method, params)
	if err != nil && !isRPCError(err) {
		c.drop(err)
	}
	return result, err
}

func (c *WSClient) roundTrip(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	} else if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	req := JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: id}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("websocket write: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var resp JSONRPCResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("websocket read: %w", err)
		}
		if resp.ID != id {
			c.logger.Debug("skipping websocket message",
				slog.Int("id", resp.ID),
				slog.Int("want", id),
			)
			continue
		}
		if resp.Error != nil {
			return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	}
}

// SendRawTransaction sends a signed transaction.
func (c *WSClient) SendRawTransaction(ctx context.Context, txRLP []byte) error {
	return sendRawTransaction(ctx, c, txRLP)
}

// GetNonce fetches the pending nonce for an address.
func (c *WSClient) GetNonce(ctx context.Context, address string) (uint64, error) {
	return getNonce(ctx, c, address)
}

// GetChainID returns the chain id reported by the node.
func (c *WSClient) GetChainID(ctx context.Context) (*big.Int, error) {
	return getChainID(ctx, c)
}

// GetPendingBaseFee returns baseFeePerGas of the pending block.
func (c *WSClient) GetPendingBaseFee(ctx context.Context) (*big.Int, error) {
	return getPendingBaseFee(ctx, c)
}

// GetTransactionReceipt returns the receipt for a transaction.
func (c *WSClient) GetTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	return getTransactionReceipt(ctx, c, txHash)
}

// Close sends a close frame and closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	defer func() { c.conn = nil }()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

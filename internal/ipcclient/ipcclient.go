// Package ipcclient is the daemon-facing half of spec §4.3: one persistent
// connection, serialized requests, single-shot failure.
package ipcclient

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	rqerrors "github.com/roslynq/roslynq/internal/errors"
	"github.com/roslynq/roslynq/internal/wire"
)

// Client owns one socket connection to a daemon. Concurrent Request calls
// are serialized internally so framing is never interleaved. A failed send
// or read closes the client; it is not retried automatically.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Connect dials socketPath, failing if no listener answers within deadline.
func Connect(socketPath string, deadline time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, deadline)
	if err != nil {
		return nil, rqerrors.WrapError(rqerrors.ErrDaemonConnectFailed, err.Error())
	}
	return &Client{conn: conn}, nil
}

// Request sends method/params and waits for the matching response. The
// request ID is generated with google/uuid since the caller does not
// need to track correlation itself on a single in-flight-per-call client.
func (c *Client) Request(method string, params interface{}) (*wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("ipcclient: connection already closed")
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("marshaling params: %w", err)
	}

	req := wire.Request{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: rawParams}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	if err := wire.WriteFrame(c.conn, reqBytes); err != nil {
		c.fail()
		return nil, fmt.Errorf("writing request: %w", err)
	}

	respBytes, err := wire.ReadFrame(c.conn)
	if err != nil {
		c.fail()
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp wire.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		c.fail()
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.ID != req.ID {
		c.fail()
		return nil, fmt.Errorf("response id %q does not match request id %q", resp.ID, req.ID)
	}
	return &resp, nil
}

// fail marks the client closed after any I/O failure (spec §4.3: "single
// shot: a failed send closes the client").
func (c *Client) fail() {
	c.closed = true
	_ = c.conn.Close()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

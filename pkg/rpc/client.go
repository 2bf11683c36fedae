package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// ErrClosed is returned by calls on a client whose connection has failed or
// been closed.
var ErrClosed = errors.New("rpc: connection closed")

// Client multiplexes calls over one connection. Requests are written in
// order and matched to responses by ID, so concurrent callers do not wait
// for each other's round trips.
type Client struct {
	conn net.Conn

	writeMu sync.Mutex
	w       *bufio.Writer
	enc     *json.Encoder

	mu      sync.Mutex
	nextID  uint64
	pending map[string]chan Response
	err     error
}

// Dial connects to the server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	w := bufio.NewWriter(conn)
	c := &Client{
		conn:    conn,
		w:       w,
		enc:     json.NewEncoder(w),
		pending: make(map[string]chan Response),
	}
	go c.readLoop()
	return c, nil
}

// Call invokes method with params and decodes the reply into result, which
// may be nil. The ctx deadline is sent along so the server bounds the
// handler too. A remote failure is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.nextID++
	req := Request{Method: method, ID: strconv.FormatUint(c.nextID, 10), Params: raw}
	reply := make(chan Response, 1)
	c.pending[req.ID] = reply
	c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		req.TimeoutMs = max(time.Until(deadline).Milliseconds(), 1)
	}
	if err := c.send(req); err != nil {
		c.forget(req.ID)
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case resp, ok := <-reply:
		if !ok {
			return c.closedErr()
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(req.ID)
		return ctx.Err()
	}
}

func (c *Client) send(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.enc.Encode(req); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// readLoop routes responses to waiting calls until the connection fails,
// then fails every pending call.
func (c *Client) readLoop() {
	dec := json.NewDecoder(bufio.NewReader(c.conn))
	var err error
	for {
		var resp Response
		if err = dec.Decode(&resp); err != nil {
			break
		}
		c.mu.Lock()
		reply, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			reply <- resp
		}
	}

	c.mu.Lock()
	if c.err == nil {
		c.err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	for id, reply := range c.pending {
		close(reply)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

// Close closes the connection. Calls still waiting fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()
	return c.conn.Close()
}

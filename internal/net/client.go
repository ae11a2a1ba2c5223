package net

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"LocalInk/internal/worker"
)

// Scheme prefixes share links handed from a host to its clients.
const Scheme = "localink://"

// ParseLink extracts host:port from a share link. An empty address means the
// client should look for a host with mDNS.
func ParseLink(link string) (string, error) {
	if !strings.HasPrefix(link, Scheme) {
		return "", fmt.Errorf("link %q does not start with %s", link, Scheme)
	}
	addr := strings.TrimSuffix(strings.TrimPrefix(link, Scheme), "/")
	return addr, nil
}

// Link builds the share link for addr.
func Link(addr string) string {
	return Scheme + addr
}

// Client is a remote worker transport. It implements worker.Transport.
type Client struct {
	conn    *websocket.Conn
	results chan worker.Result
	writeMu sync.Mutex
	logger  *zap.Logger
}

var _ worker.Transport = (*Client)(nil)

// Dial connects to the worker endpoint at addr (host:port) and path.
func Dial(ctx context.Context, addr, path string, logger *zap.Logger) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		conn:    conn,
		results: make(chan worker.Result, 64),
		logger:  logger.With(zap.String("host", addr)),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.results)
	for {
		var res worker.Result
		if err := c.conn.ReadJSON(&res); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Warn("[CLIENT] read failed", zap.Error(err))
			}
			return
		}
		c.results <- res
	}
}

// Send writes req to the host.
func (c *Client) Send(ctx context.Context, req worker.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// Results returns the replies from the host. The channel is closed when the
// connection ends.
func (c *Client) Results() <-chan worker.Result {
	return c.results
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// Package unveilcli is the client library for the unveil daemon. It speaks
// the length-prefixed JSON protocol over a unix socket, named pipe or TCP
// and exposes typed methods for every daemon operation.
package unveilcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/unveil/unveil/common"
)

// ensureDaemonFunc is swappable for tests.
var ensureDaemonFunc = ensureDaemon

type Client struct {
	mu     *sync.RWMutex
	d      *Dispatcher
	conn   net.Conn
	listen bool
}

// NewClient connects to the daemon, spawning one when none is reachable.
func NewClient() (*Client, error) {
	if err := ensureDaemonFunc(); err != nil {
		return nil, fmt.Errorf("daemon unavailable: %w", err)
	}
	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("error connecting to daemon: %w", err)
	}
	return newClient(conn), nil
}

// NewClientWithURI connects to the daemon at the given URI (unix://, tcp://
// or pipe://). An empty URI behaves like NewClient.
func NewClientWithURI(rawURI string) (*Client, error) {
	if rawURI == "" {
		return NewClient()
	}
	uri, err := ParseDaemonURI(rawURI)
	if err != nil {
		return nil, err
	}
	conn, err := dialURI(uri)
	if err != nil {
		return nil, fmt.Errorf("error connecting to daemon: %w", err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		mu:   &sync.RWMutex{},
		d: &Dispatcher{
			Handlers: make(map[common.UpdateType][]Handler),
		},
	}
}

// AddHandler registers a handler for streamed updates of the given type.
func (c *Client) AddHandler(t common.UpdateType, h Handler) {
	c.d.AddHandler(t, h)
}

// RemoveHandler drops all handlers for the given update type.
func (c *Client) RemoveHandler(t common.UpdateType) {
	c.d.RemoveHandler(t)
}

// Disconnect stops the Listen loop after the frame being processed.
func (c *Client) Disconnect() {
	c.listen = false
}

// Close releases the daemon connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Listen reads streamed updates until a handler returns ErrDisconnect,
// Disconnect is called, or the connection fails.
func (c *Client) Listen() (err error) {
	c.listen = true
	defer c.conn.Close()
	for c.listen {
		c.mu.RLock()
		var buf []byte
		buf, err = read(c.conn)
		if err != nil {
			c.mu.RUnlock()
			return fmt.Errorf("error reading: %s", err.Error())
		}
		err = c.d.process(buf)
		c.mu.RUnlock()
		if err != nil {
			if errors.Is(err, ErrDisconnect) {
				return nil
			}
			return fmt.Errorf("error processing: %s", err.Error())
		}
	}
	return nil
}

// invoke blocks the updates listener while a method call is in flight so its
// reply is consumed here instead.
func (c *Client) invoke(method common.UpdateType, message any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := json.Marshal(&Request{
		Method:  method,
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	err = write(c.conn, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	buf, err = read(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	var res Response
	err = json.Unmarshal(buf, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %s", method, err.Error())
	}
	if !res.Ok {
		return nil, errors.New(res.Error)
	}
	if res.Update == nil {
		return nil, fmt.Errorf("empty update in %s response", method)
	}
	return res.Update.Message, nil
}

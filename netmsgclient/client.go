// Package netmsgclient implements a single synchronous TCP client socket
// with Connect/Send/Recv/Request/Close.
//
// Grounded on pyserve.client.Client's state machine and method shapes,
// expressed with mini-rpc's net.Conn-based style (mini-rpc/transport's
// direct net.Dial use) rather than the Python source's raw socket calls.
package netmsgclient

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"netmsg/address"
	"netmsg/wire"
)

// ErrNotConnected is returned by Send/Recv/Request when the client is not
// in the Connected state.
var ErrNotConnected = errors.New("netmsgclient: not connected")

type state int

const (
	idle state = iota
	connected
	closed
)

// Client is a single, synchronous connection to a netmsg Server.
type Client struct {
	addr    address.Address
	framer  wire.Framer
	timeout time.Duration

	conn  net.Conn
	state state
}

// New creates an unconnected client bound to addr and framer.
func New(addr address.Address, framer wire.Framer, timeout time.Duration) *Client {
	return &Client{addr: addr, framer: framer, timeout: timeout, state: idle}
}

// Connect dials the configured address and transitions to Connected. It
// returns the client itself so callers can write `defer client.Close()`
// immediately after connecting.
func (c *Client) Connect() (*Client, error) {
	conn, err := net.DialTimeout("tcp", c.addr.String(), c.timeout)
	if err != nil {
		return nil, fmt.Errorf("netmsgclient: connect to %s: %w", c.addr, err)
	}
	c.conn = conn
	c.state = connected
	return c, nil
}

// Send encodes and writes packet on the connected socket. An encode-side
// malformed value propagates to the caller as wire.ErrPacketMalformed; the
// connection stays open.
func (c *Client) Send(packet wire.Packet) error {
	if c.state != connected {
		return fmt.Errorf("%w: client is %v", ErrNotConnected, c.state)
	}
	return c.framer.SendMessage(c.conn, packet)
}

// Recv waits for the next framed packet. A single benign
// connection-reset/aborted error is swallowed as "no packet yet" rather than
// retried — a single attempt, deliberately not turned into a retry loop —
// whatever the framer produces on that one attempt, including nil, is
// returned.
func (c *Client) Recv() (wire.Packet, error) {
	if c.state != connected {
		return nil, fmt.Errorf("%w: client is %v", ErrNotConnected, c.state)
	}

	packet, err := c.framer.RecvMessage(c.conn)
	if err != nil && isBenignResetOrAbort(err) {
		return nil, nil
	}
	return packet, err
}

// Request sends packet and returns the server's reply.
func (c *Client) Request(packet wire.Packet) (wire.Packet, error) {
	if err := c.Send(packet); err != nil {
		return nil, err
	}
	return c.Recv()
}

// Close transitions to Closed and closes the socket. Idempotent.
func (c *Client) Close() error {
	if c.state == closed {
		return nil
	}
	c.state = closed
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func isBenignResetOrAbort(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED)
}

func (s state) String() string {
	switch s {
	case idle:
		return "idle"
	case connected:
		return "connected"
	default:
		return "closed"
	}
}

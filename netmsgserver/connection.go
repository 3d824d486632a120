package netmsgserver

import (
	"net"
	"sync/atomic"

	"netmsg/address"
	"netmsg/wire"
)

// Envelope is the tagged entry posted to a server's inbound queue: either a
// decoded packet from peer, or — when Packet is nil — a disconnect sentinel.
// A worker posts exactly one disconnect sentinel when its read returns no
// packet (peer gone or malformed frame); a worker whose connection is
// closed between two reads exits without posting one.
type Envelope struct {
	Peer   address.Address
	Packet wire.Packet
}

// connection is a per-accepted-socket worker: it owns the socket, the framer
// it decodes with, the server's inbound queue, its peer address, and a
// single-writer closed flag.
//
// Grounded on pyserve.connection.Connection, generalized from a
// recv()-called-externally object to a goroutine that drives its own loop,
// matching mini-rpc's per-connection goroutine style in server.handleConn.
type connection struct {
	conn    net.Conn
	framer  wire.Framer
	peer    address.Address
	inbound chan<- Envelope
	closed  atomic.Bool
}

func newConnection(conn net.Conn, framer wire.Framer, peer address.Address, inbound chan<- Envelope) *connection {
	return &connection{conn: conn, framer: framer, peer: peer, inbound: inbound}
}

// send writes a packet on this connection's socket unless it is already
// closed, in which case it silently no-ops — the worker will surface the
// connection's death through its disconnect sentinel instead.
func (c *connection) send(p wire.Packet) error {
	if c.closed.Load() {
		return nil
	}
	return c.framer.SendMessage(c.conn, p)
}

// close marks the connection closed and closes its socket. Safe to call
// more than once; readers of closed tolerate a stale-true read (see run).
func (c *connection) close() {
	c.closed.Store(true)
	c.conn.Close()
}

// run is the connection worker's receive loop: while not closed, read one
// framed packet; a nil result (malformed frame or EOF) posts the
// disconnect sentinel and ends the loop. A close from outside unblocks the
// in-flight read by closing the underlying socket, which the framer reports
// as a nil packet here — the loop's "not closed" check may momentarily read
// stale state, producing at most one extra receive attempt after close.
func (c *connection) run(exited chan<- *connection) {
	defer func() { exited <- c }()

	for !c.closed.Load() {
		packet, _ := c.framer.RecvMessage(c.conn)
		if packet == nil {
			c.inbound <- Envelope{Peer: c.peer, Packet: nil}
			c.close()
			return
		}
		c.inbound <- Envelope{Peer: c.peer, Packet: packet}
	}
}

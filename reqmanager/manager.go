// Package reqmanager implements a request/response router on top of
// netmsgserver: a Server whose tick callback reads a string header field out
// of each packet and dispatches to a table of named handlers, replying
// automatically with whatever the handler returns.
//
// Grounded on pyserve.manager.RequestManagerServer's handler table, reworked
// as composition rather than subclassing: the manager owns a
// *netmsgserver.Server and supplies its TickFunc, rather than extending
// Server the way the Python original's multiple inheritance
// (RequestManagerBase, Server) does — Go has no multiple inheritance to
// imitate here.
package reqmanager

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"netmsg/address"
	"netmsg/internal/logging"
	"netmsg/netmsgserver"
	"netmsg/wire"
)

// ErrAlreadySubscribed is returned by Subscribe when a name already has a
// handler.
var ErrAlreadySubscribed = errors.New("reqmanager: already subscribed")

// ErrNotFound is returned by Unsubscribe when a name has no handler.
var ErrNotFound = errors.New("reqmanager: not found")

// ErrHandlerMismatch is returned by Unsubscribe when a caller-supplied
// handler doesn't match the one currently subscribed under that name.
var ErrHandlerMismatch = errors.New("reqmanager: handler mismatch")

// DefaultHeaderKey is the packet field a Manager reads to pick a handler
// when none is configured.
const DefaultHeaderKey = "RequestType"

// HandlerFunc handles one named request and produces the reply packet to
// send back. Returning a non-nil error is equivalent to returning a packet
// whose failure the application encodes itself — the manager does not
// interpret handler errors beyond logging them.
type HandlerFunc func(ctx context.Context, packet wire.Packet) (wire.Packet, error)

// Manager is a Server decorated with a handler table keyed by headerKey.
type Manager struct {
	Server *netmsgserver.Server

	headerKey string
	log       logging.Logger
	chain     Middleware

	mu       sync.Mutex
	handlers map[string]HandlerFunc
}

// New builds a Manager whose underlying server listens on addr using
// framer, and registers Manager.tick as its TickFunc. headerKey defaults to
// DefaultHeaderKey when empty.
func New(addr address.Address, framer wire.Framer, headerKey string, timeout, delay time.Duration, log logging.Logger) (*Manager, error) {
	if headerKey == "" {
		headerKey = DefaultHeaderKey
	}
	if log == nil {
		log = logging.NewNop()
	}

	m := &Manager{
		headerKey: headerKey,
		log:       log,
		chain:     Chain(LoggingMiddleware(log), TimeOutMiddleware(timeout)),
		handlers:  make(map[string]HandlerFunc),
	}

	server, err := netmsgserver.New(addr, framer, m.tick, timeout, delay, log)
	if err != nil {
		return nil, err
	}
	m.Server = server
	return m, nil
}

// Subscribe registers handler under name. ErrAlreadySubscribed if name is
// already taken — use Unsubscribe first to replace a handler.
func (m *Manager) Subscribe(name string, handler HandlerFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, name)
	}
	m.handlers[name] = handler
	return nil
}

// Unsubscribe removes name's handler. ErrNotFound if absent. If handler is
// non-nil, it must reference the same underlying function as the one
// subscribed or Unsubscribe fails with ErrHandlerMismatch — Go functions
// aren't comparable with ==, so identity is approximated by code pointer
// (reflect.Value.Pointer), the common idiom for this check.
func (m *Manager) Unsubscribe(name string, handler HandlerFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.handlers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if handler != nil && funcPointer(handler) != funcPointer(existing) {
		return fmt.Errorf("%w: handler for %s does not match", ErrHandlerMismatch, name)
	}
	delete(m.handlers, name)
	return nil
}

func funcPointer(h HandlerFunc) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// Post invokes name's handler with packet if one is subscribed, applying
// the manager's logging/timeout middleware chain, and returns its result.
// A name with no handler returns (nil, nil) rather than an error.
func (m *Manager) Post(name string, packet wire.Packet) (wire.Packet, error) {
	m.mu.Lock()
	handler, ok := m.handlers[name]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.chain(handler)(context.Background(), packet)
}

// tick is the server TickFunc. A nil packet (disconnect sentinel) is a
// no-op. Otherwise the header field names the handler to post to, the peer
// address is injected under "addr", and the reply - even a nil one, for an
// unrecognized request name or a handler that returns nil - is always sent
// back so a waiting client's Recv unblocks; any send-back failure is logged
// and swallowed rather than raised.
func (m *Manager) tick(s *netmsgserver.Server, peer address.Address, packet wire.Packet) {
	if packet == nil {
		return
	}

	header, _ := packet[m.headerKey].(string)
	packet["addr"] = peer.AsList()

	response, err := m.Post(header, packet)
	if err != nil {
		m.log.Warnw("request handler returned an error", "request", header, "peer", peer, "error", err)
	}
	if err := s.Send(peer, response); err != nil {
		m.log.Warnw("failed to reply to peer", "peer", peer, "error", err)
	}
}

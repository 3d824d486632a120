// Package netmsgserver implements a TCP request/response server: a
// listener, a registry of active connections keyed by peer address, an
// inbound dispatch queue, the dispatch loop, and the set of connection
// worker goroutines.
//
// Grounded on mini-rpc/server/server.go's accept-loop-plus-handleConn
// shape, generalized to the state machine, single dispatch queue, and
// exited-worker bookkeeping pyserve.server.Server implements.
package netmsgserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"netmsg/address"
	"netmsg/internal/logging"
	"netmsg/wire"
)

// ErrServer covers illegal state transitions, bind failures, and sends to
// an unknown peer.
var ErrServer = errors.New("netmsgserver: server error")

// TickFunc is the user-supplied handler invoked serially from the dispatch
// goroutine for every inbound packet, or for the disconnect sentinel
// (packet == nil). Long-running work blocks all dispatch, by design.
type TickFunc func(s *Server, peer address.Address, packet wire.Packet)

// Server is the transport's central coordinator.
type Server struct {
	addr    address.Address
	framer  wire.Framer
	tick    TickFunc
	timeout time.Duration
	delay   time.Duration
	log     logging.Logger

	listener   *net.TCPListener
	state      atomic.Int32
	acceptOnce sync.Once

	connMu sync.Mutex
	conns  map[address.Address]*connection

	inbound chan Envelope
	exited  chan *connection

	exitedMu  sync.Mutex
	toJoin    []*connection
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New binds a listening socket to addr with the given accept timeout and
// returns an Idle server. A bind failure is ErrServer.
func New(addr address.Address, framer wire.Framer, tick TickFunc, timeout, delay time.Duration, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.NewNop()
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve %s: %v", ErrServer, addr, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to bind to %s: %v", ErrServer, addr, err)
	}

	boundAddr := addr
	if tcpListenAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		boundAddr = address.New(addr.Host, tcpListenAddr.Port)
	}

	s := &Server{
		addr:    boundAddr,
		framer:  framer,
		tick:    tick,
		timeout: timeout,
		delay:   delay,
		log:     log,

		listener: listener,
		conns:    make(map[address.Address]*connection),
		inbound:  make(chan Envelope, 4096),
		exited:   make(chan *connection, 256),
	}
	s.state.Store(int32(Idle))
	return s, nil
}

// Address returns the address this server is bound to.
func (s *Server) Address() address.Address { return s.addr }

// State returns the server's current lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// Operate starts the dispatch and accept loops on a background goroutine
// and returns once the server is observably Running, for use in a
// `defer s.Close()` scoped-acquisition idiom. Idle-only; any other starting
// state is ErrServer.
func (s *Server) Operate() (*Server, error) {
	if err := s.operateCheck(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.BlockingOperate()
	}()

	for s.State() != Running {
		time.Sleep(s.delay)
	}
	return s, nil
}

// BlockingOperate starts the accept loop (once) and runs the dispatch loop
// on the calling goroutine until the server is closed. State transitions to
// Running immediately before the dispatch loop begins.
func (s *Server) BlockingOperate() {
	if err := s.operateCheck(); err != nil {
		return
	}
	s.acceptOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.acceptLoop()
		}()
	})
	s.state.Store(int32(Running))
	for s.State() != Closed {
		s.dispatchTick()
	}
}

func (s *Server) operateCheck() error {
	state := s.State()
	if state == Running || state == Closed {
		return fmt.Errorf("%w: server in state %s cannot be operated on", ErrServer, state)
	}
	return nil
}

// acceptLoop accepts connections until the server is closed, spawning one
// Connection Worker per socket. Accept errors (including timeouts, used so
// this loop can periodically observe closure) are swallowed, matching
// pyserve.server._accept_clients's suppress(socket.timeout, OSError).
func (s *Server) acceptLoop() {
	for s.State() != Closed {
		s.listener.SetDeadline(time.Now().Add(s.timeout))
		conn, err := s.listener.Accept()
		if err != nil {
			continue
		}
		s.spawnConnection(conn)
	}
}

func (s *Server) spawnConnection(netConn net.Conn) {
	peer := peerAddress(netConn)
	conn := newConnection(netConn, s.framer, peer, s.inbound)

	s.connMu.Lock()
	s.conns[peer] = conn
	s.connMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn.run(s.exited)
	}()
}

func peerAddress(conn net.Conn) address.Address {
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return address.New(tcpAddr.IP.String(), tcpAddr.Port)
	}
	return address.New(conn.RemoteAddr().String(), 0)
}

// dispatchTick is one pass of the dispatch loop. A ready inbound packet is
// handled first; failing that, any exited workers are joined and their
// connections dropped from the map; failing that, the loop sleeps delay.
//
// Each check is a non-blocking channel receive, so "non-empty -> dequeue"
// is one atomic step for the single consumer, without the unlocked
// peek-then-pop race an ad hoc queue would need to guard against. When
// nothing is ready the loop polls again after delay.
func (s *Server) dispatchTick() {
	select {
	case env := <-s.inbound:
		s.tick(s, env.Peer, env.Packet)
		return
	default:
	}

	select {
	case conn := <-s.exited:
		s.joinExited(conn)
		return
	default:
	}

	time.Sleep(s.delay)
}

func (s *Server) joinExited(first *connection) {
	s.exitedMu.Lock()
	defer s.exitedMu.Unlock()

	pending := []*connection{first}
	drain := true
	for drain {
		select {
		case c := <-s.exited:
			pending = append(pending, c)
		default:
			drain = false
		}
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	for _, c := range pending {
		if existing, ok := s.conns[c.peer]; ok && existing == c {
			delete(s.conns, c.peer)
		}
	}
}

// Send writes packet to the connection registered for peer. ErrServer if no
// such connection is known; a no-op (not an error) if the connection is
// already closed, since the worker will surface its death via the
// disconnect sentinel.
//
// The connection handle is copied out from under the connections lock
// before the (possibly blocking) socket write happens — the lock never
// spans a blocking write.
func (s *Server) Send(peer address.Address, packet wire.Packet) error {
	s.connMu.Lock()
	conn, ok := s.conns[peer]
	s.connMu.Unlock()

	if !ok {
		return fmt.Errorf("%w: no connection for %s", ErrServer, peer)
	}
	return conn.send(packet)
}

// Close transitions the server to Closed, closes the listener, closes every
// known connection, and waits for every goroutine the server spawned
// (accept loop, connection workers, and Operate's background dispatch
// goroutine, if started that way) before returning. Best-effort:
// individual connection-close failures are swallowed so teardown always
// completes.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closed))
		s.listener.Close()

		s.connMu.Lock()
		conns := make([]*connection, 0, len(s.conns))
		for _, c := range s.conns {
			conns = append(conns, c)
		}
		s.conns = make(map[address.Address]*connection)
		s.connMu.Unlock()

		for _, c := range conns {
			c.close()
		}

		// Keep draining the inbound/exited queues while goroutines wind
		// down: once the dispatch loop observes Closed it stops consuming
		// them, but exiting connection workers still post their final
		// disconnect sentinel and exited-notice, and both channels are
		// bounded — without a drainer those sends could block the very
		// goroutines wg.Wait below is waiting on.
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-s.inbound:
				case <-s.exited:
				case <-done:
					return
				}
			}
		}()

		s.wg.Wait()
		close(done)
	})
	return nil
}

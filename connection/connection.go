// Package connection implements per-socket connection lifecycle:
// dialing, the isMaster/hello handshake, request/reply demultiplexing by
// requestID, and a bounded pool. Grounded on
// core/connection/connection.go's Connection/Dialer/Handshaker
// interfaces and its compressor negotiation against the server's
// advertised list, adapted from its raw wiremessage.WireMessage type to
// this core's pack.Pack / wire byte-slice framing.
package connection

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corewire/mongodrv/internal/csot"
	"github.com/corewire/mongodrv/internal/logger"
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/wire"
	"github.com/corewire/mongodrv/wireversion"
)

// State is the handshake state machine a Connection moves through:
// Init -> HandshakeSent -> (Ready | Failed).
type State int32

const (
	StateInit State = iota
	StateHandshakeSent
	StateReady
	StateFailed
)

// Dialer opens the underlying byte stream. Grounded on
// connection.Dialer, narrowed to the one method this core calls.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// DefaultDialer is the Dialer used when Options.Dialer is left nil.
var DefaultDialer Dialer = DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
})

// Options configures a Connection's construction.
type Options struct {
	Dialer          Dialer
	Compressors     []wire.Compressor
	AppName         string
	Authenticator   Authenticator
	ConnectTimeout  time.Duration
	Logger          *logger.Logger
}

// Authenticator runs a SASL-style handshake authentication conversation
// over a Connection once it reaches StateReady. Implemented by
// connection/auth.
type Authenticator interface {
	Authenticate(ctx context.Context, p pack.Pack, rt RoundTripper, database string) error
}

// RoundTripper is the same narrow seam command.RoundTripper names; kept
// as a local type so connection/auth doesn't need to import command and
// risk a cycle.
type RoundTripper interface {
	RoundTrip(ctx context.Context, wm []byte) ([]byte, error)
}

type pendingWaiter struct {
	resp chan []byte
	err  chan error
}

// Connection is a single socket speaking the wire protocol: it runs one
// writer and demultiplexes replies by requestID on its reader loop.
// Send registers a waiter; Await resolves it or reports the
// connection-wide terminal error.
type Connection struct {
	addr string
	id   string
	conn net.Conn
	pk   pack.Pack

	state atomic.Int32

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int32]pendingWaiter
	dead    error // set once the reader loop observes a fatal error

	compressor    wire.Compressor
	compressorMap map[wire.CompressorID]wire.Compressor
	wireVersion   wireversion.WireVersion
	description   NodeDescription

	log *logger.Logger
}

var connectionCounter uint64

func nextConnectionID() uint64 { return atomic.AddUint64(&connectionCounter, 1) }

// Connect dials addr, starts the reader loop, performs the isMaster
// handshake, negotiates a compressor against the server's advertised
// list, and - if opts.Authenticator is set - runs the authentication
// conversation before returning. Grounded on connection.New, adapted to
// register a background demux loop instead of exposing synchronous
// WriteWireMessage/ReadWireMessage calls, because this core requires
// concurrent outstanding requests on one socket.
func Connect(ctx context.Context, addr string, p pack.Pack, opts Options) (*Connection, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}

	dialCtx, cancel := csot.MakeTimeoutContext(ctx, opts.ConnectTimeout)
	defer cancel()

	nc, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, mongoerr.NetworkError{Cause: err}
	}

	compressorMap := make(map[wire.CompressorID]wire.Compressor, len(opts.Compressors))
	for _, c := range opts.Compressors {
		compressorMap[c.ID()] = c
	}

	c := &Connection{
		addr:          addr,
		id:            fmt.Sprintf("%s[-%d]", addr, nextConnectionID()),
		conn:          nc,
		pk:            p,
		pending:       make(map[int32]pendingWaiter),
		compressorMap: compressorMap,
		log:           opts.Logger,
	}
	c.state.Store(int32(StateInit))

	go c.readLoop()

	c.state.Store(int32(StateHandshakeSent))
	desc, err := c.handshake(ctx)
	if err != nil {
		c.state.Store(int32(StateFailed))
		c.Close()
		return nil, err
	}
	c.description = desc
	c.wireVersion = wireversion.Coerce(desc.MaxWireVersion)

	for _, preferred := range opts.Compressors {
		for _, serverName := range desc.Compression {
			if preferred.Name() == serverName {
				c.compressor = preferred
			}
		}
		if c.compressor != nil {
			break
		}
	}

	c.state.Store(int32(StateReady))
	c.logHandshake(nil)

	if opts.Authenticator != nil {
		if err := opts.Authenticator.Authenticate(ctx, p, c, "admin"); err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

func (c *Connection) logHandshake(err error) {
	if c.log == nil {
		return
	}
	msg := logger.ConnectionHandshakeMessage{Address: c.addr, WireVersion: int(c.wireVersion)}
	if err != nil {
		msg.Err = err.Error()
	}
	c.log.Print(logger.LevelDebug, msg)
}

// handshake sends {isMaster: 1} and classifies the reply into a
// NodeDescription, per this module's "a connection in Ready advertises
// its wireVersion".
func (c *Connection) handshake(ctx context.Context) (NodeDescription, error) {
	body := c.pk.MakeDocument(
		c.pk.ElementProducer("isMaster", c.pk.Int32(1)),
		c.pk.ElementProducer("$db", c.pk.String("admin")),
	)
	wm, err := wire.BuildOpMsg(c.pk, body, wire.NextRequestID())
	if err != nil {
		return NodeDescription{}, mongoerr.ProtocolError{Cause: err}
	}

	respBytes, err := c.RoundTrip(ctx, wm)
	if err != nil {
		return NodeDescription{}, err
	}

	reply, err := wire.ParseReply(c.pk, respBytes, c.compressorMap)
	if err != nil {
		return NodeDescription{}, mongoerr.ProtocolError{Cause: err}
	}

	return classifyStatus(c.pk, reply.Document), nil
}

// State reports the connection's current handshake state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Description reports the node classification discovered at handshake.
func (c *Connection) Description() NodeDescription { return c.description }

// WireVersion reports the negotiated wire version.
func (c *Connection) WireVersion() wireversion.WireVersion { return c.wireVersion }

// ID is this connection's log-friendly identifier.
func (c *Connection) ID() string { return c.id }

// Send writes a framed wire message and registers a waiter for its
// reply, keyed by the requestID embedded in wm's header, upholding the
// invariant that every send that succeeds registers a waiter.
func (c *Connection) Send(ctx context.Context, wm []byte) (int32, error) {
	h, _, err := wire.ReadHeader(wm)
	if err != nil {
		return 0, mongoerr.ProtocolError{Cause: err}
	}

	toSend := wm
	if c.compressor != nil {
		compressed, err := wire.CompressBody(wm, c.compressor)
		if err == nil {
			toSend = compressed
		}
	}

	waiter := pendingWaiter{resp: make(chan []byte, 1), err: make(chan error, 1)}

	c.mu.Lock()
	if c.dead != nil {
		err := c.dead
		c.mu.Unlock()
		return 0, err
	}
	c.pending[h.RequestID] = waiter
	c.mu.Unlock()

	c.writeMu.Lock()
	_, writeErr := c.conn.Write(toSend)
	c.writeMu.Unlock()

	if writeErr != nil {
		c.mu.Lock()
		delete(c.pending, h.RequestID)
		c.mu.Unlock()
		c.fail(mongoerr.NetworkError{Cause: writeErr})
		return 0, mongoerr.NetworkError{Cause: writeErr}
	}

	return h.RequestID, nil
}

// Await blocks for the reply to a prior Send, honoring ctx cancellation
// per this module's "cancelling an awaiting operation detaches its
// waiter but does not retract the wire request".
func (c *Connection) Await(ctx context.Context, requestID int32) ([]byte, error) {
	c.mu.Lock()
	waiter, ok := c.pending[requestID]
	c.mu.Unlock()
	if !ok {
		return nil, mongoerr.ProtocolError{Cause: fmt.Errorf("no pending waiter for request %d", requestID)}
	}

	select {
	case resp := <-waiter.resp:
		return resp, nil
	case err := <-waiter.err:
		return nil, err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
		return nil, mongoerr.Cancelled{Cause: ctx.Err()}
	}
}

// RoundTrip is Send followed by Await, satisfying command.RoundTripper
// (via structural typing) for callers that don't need the two phases
// split across a suspension point.
func (c *Connection) RoundTrip(ctx context.Context, wm []byte) ([]byte, error) {
	requestID, err := c.Send(ctx, wm)
	if err != nil {
		return nil, err
	}
	return c.Await(ctx, requestID)
}

// readLoop is the connection's single reader, demultiplexing replies by
// responseTo. A reply that matches no pending waiter is dropped; no
// warning is logged for it.
func (c *Connection) readLoop() {
	for {
		wm, err := c.readOneMessage()
		if err != nil {
			c.fail(mongoerr.NetworkError{Cause: err})
			return
		}

		h, _, err := wire.ReadHeader(wm)
		if err != nil {
			c.fail(mongoerr.ProtocolError{Cause: err})
			return
		}

		c.mu.Lock()
		waiter, ok := c.pending[h.ResponseTo]
		if ok {
			delete(c.pending, h.ResponseTo)
		}
		c.mu.Unlock()

		if !ok {
			continue
		}
		waiter.resp <- wm
	}
}

func (c *Connection) readOneMessage() ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.conn, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
	if size < 16 {
		return nil, mongoerr.ProtocolError{Cause: fmt.Errorf("wire message length %d below header size", size)}
	}
	buf := make([]byte, size)
	copy(buf, sizeBuf[:])
	if _, err := io.ReadFull(c.conn, buf[4:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// fail transitions every outstanding waiter to error(err): a fatal
// socket error fails all pending waiters with a network-unreachable
// error rather than leaving them to hang.
func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.dead == nil {
		c.dead = err
	}
	pending := c.pending
	c.pending = make(map[int32]pendingWaiter)
	c.mu.Unlock()

	for _, w := range pending {
		w.err <- err
	}
	c.state.Store(int32(StateFailed))
}

// Alive reports whether the connection is still usable.
func (c *Connection) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead == nil
}

// Close tears down the underlying socket and fails any outstanding
// waiters.
func (c *Connection) Close() error {
	c.fail(mongoerr.NetworkError{Cause: fmt.Errorf("connection closed")})
	return c.conn.Close()
}

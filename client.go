package rcon

import (
	"context"
	"math"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Client is a remote-console session over a single TCP connection. It is
// safe for concurrent use: commands issued from multiple goroutines are
// correlated to their own replies by packet id, and frames are written to
// the transport one at a time.
//
// A Client is single-use. Once closed, whether explicitly or because the
// connection failed, a new session requires a new Client.
type Client struct {
	conn   *conn
	corr   *correlator
	logger Logger
	opts   options

	nextID atomic.Int32
	ready  atomic.Bool
}

// Dial connects to addr, authenticates with password, and returns a ready
// client. addr is "host" or "host:port"; a bare host gets DefaultPort.
// A rejected password fails with ErrAuthFailure and the connection is torn
// down.
func Dial(addr, password string, opt ...Option) (*Client, error) {
	client, err := newClient(opt...)
	if err != nil {
		return nil, err
	}

	if err = client.conn.connect(withDefaultPort(addr)); err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	go client.conn.run()

	ctx, cancel := context.WithTimeout(context.Background(), client.opts.dialTimeout)
	defer cancel()

	if err = client.Login(ctx, password); err != nil {
		client.conn.close()
		return nil, err
	}
	return client, nil
}

// NewClient wraps an already-established transport. The returned client is
// connected but not authenticated; call Login before issuing commands.
func NewClient(raw net.Conn, opt ...Option) (*Client, error) {
	client, err := newClient(opt...)
	if err != nil {
		return nil, err
	}

	client.conn.attach(raw)
	go client.conn.run()

	return client, nil
}

func newClient(opt ...Option) (*Client, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	client := &Client{
		logger: opts.logger,
	}
	client.corr = newCorrelator(opts.logger)
	client.nextID.Store(AuthID)

	// Pending requests must fail fast on any terminal connection event,
	// before the user's own close listener runs.
	userOnClose := opts.onClose
	opts.onClose = func(err error) {
		cause := ErrConnectionClosed
		if err != nil {
			cause = errors.Wrap(ErrConnectionClosed, err.Error())
		}
		client.corr.fail(cause)
		if userOnClose != nil {
			userOnClose(err)
		}
	}
	client.opts = opts
	client.conn = newConn(client.corr.dispatch, opts)

	return client, nil
}

// Login runs the authentication handshake: an AUTH packet carrying the
// password under the fixed auth id, answered either by an echo of that id
// (accepted) or by the failure sentinel id (rejected). It may be called
// once per client; a second call on an authenticated instance fails with
// ErrAlreadyAuthenticated.
func (c *Client) Login(ctx context.Context, password string) error {
	if c.conn.currentState() == StateClosed {
		return ErrConnectionClosed
	}
	if c.conn.authenticated.Load() {
		return ErrAlreadyAuthenticated
	}

	reply, err := c.roundTrip(ctx, &Packet{Type: TypeAuth, ID: AuthID, Body: password})
	if err != nil {
		return errors.Wrap(err, "login")
	}

	if reply.ID == AuthFailedID {
		return errors.Wrapf(ErrAuthFailure, "server rejected password for %s", c.conn.remoteAddr())
	}

	c.conn.authenticated.Store(true)
	if c.ready.CompareAndSwap(false, true) {
		c.logger.Info("authenticated", "addr", c.conn.remoteAddr())
		if c.opts.onReady != nil {
			c.opts.onReady()
		}
	}
	return nil
}

// Exec executes one console command and returns the reply body. The reply
// is assumed to arrive as a single packet; the protocol's fragmented
// multi-packet replies for very large output are not reassembled.
func (c *Client) Exec(ctx context.Context, command string) (string, error) {
	if !c.conn.authenticated.Load() {
		return "", ErrNotAuthenticated
	}

	reply, err := c.Send(ctx, &Packet{Type: TypeExecCommand, ID: c.allocID(), Body: command})
	if err != nil {
		return "", errors.Wrapf(err, "exec %q", command)
	}
	return reply.Body, nil
}

// Send writes one packet and blocks until the reply carrying the same id
// arrives, ctx is done, or the connection terminates (ErrConnectionClosed).
func (c *Client) Send(ctx context.Context, pkt *Packet) (*Packet, error) {
	return c.roundTrip(ctx, pkt)
}

// SendFrame is Send for a pre-encoded frame. The frame is decoded only as
// far as needed to learn the request id, and written to the wire as given.
func (c *Client) SendFrame(ctx context.Context, frame []byte) (*Packet, error) {
	pkt, err := ResolvePacket(nil, frame)
	if err != nil {
		return nil, err
	}
	return c.roundTripFrame(ctx, pkt.ID, frame)
}

func (c *Client) roundTrip(ctx context.Context, pkt *Packet) (*Packet, error) {
	frame, err := ResolveFrame(pkt, nil)
	if err != nil {
		return nil, err
	}
	return c.roundTripFrame(ctx, pkt.ID, frame)
}

// roundTripFrame registers the pending entry before the frame leaves, so a
// reply racing ahead of the caller's wait still finds its entry.
func (c *Client) roundTripFrame(ctx context.Context, id int32, frame []byte) (*Packet, error) {
	replyCh, err := c.corr.register(id)
	if err != nil {
		return nil, err
	}

	if err = c.conn.write(ctx, frame); err != nil {
		c.corr.cancel(id)
		return nil, err
	}

	select {
	case reply, ok := <-replyCh:
		if !ok {
			return nil, c.corr.failure()
		}
		return reply, nil
	case <-ctx.Done():
		c.corr.cancel(id)
		return nil, ctx.Err()
	}
}

// allocID hands out request ids above the reserved auth id. Ids wrap
// around; they only need to be unique among requests currently in flight.
func (c *Client) allocID() int32 {
	for {
		id := c.nextID.Add(1)
		if id > AuthID && id < math.MaxInt32 {
			return id
		}
		c.nextID.CompareAndSwap(id, AuthID)
	}
}

// Authenticated reports whether the handshake has completed successfully.
func (c *Client) Authenticated() bool {
	return c.conn.authenticated.Load()
}

// State returns the lifecycle state of the underlying connection.
func (c *Client) State() State {
	return c.conn.currentState()
}

// RemoteAddr returns the remote address, or nil before the transport is
// established.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.remoteAddr()
}

// Close terminates the session. Pending requests fail with
// ErrConnectionClosed. Safe to call multiple times.
func (c *Client) Close() error {
	c.conn.close()
	return nil
}

// withDefaultPort appends DefaultPort when addr carries no port.
func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
}

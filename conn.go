// Package rcon implements a client for the RCON remote-console protocol:
// length-prefixed binary frames over a persistent TCP connection, a
// password handshake at session start, and text commands answered by text
// replies correlated through packet ids.
package rcon

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a connection.
type State int32

const (
	// StateDisconnected means no transport has been established yet.
	StateDisconnected State = iota
	// StateConnecting means transport establishment is in progress.
	StateConnecting
	// StateConnected means the transport is up and frames flow.
	StateConnected
	// StateClosed is terminal. A closed connection is never reused; a new
	// session requires a new client.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// conn owns the TCP transport of a single client session. It reassembles
// the inbound byte stream into frames, decodes each frame into exactly one
// packet, and hands decoded packets to the handler and the registered
// listeners. Whatever path terminates it (transport error, peer end,
// explicit close), the transport is released and the close notification
// fires exactly once.
type conn struct {
	raw    net.Conn
	reader *bufio.Reader
	logger Logger
	opts   options

	// handler receives every decoded inbound packet, ahead of the
	// optional onPacket listener.
	handler func(*Packet)

	state         atomic.Int32
	authenticated atomic.Bool

	sendMsg chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(handler func(*Packet), opts options) *conn {
	c := &conn{
		logger:  opts.logger,
		opts:    opts,
		handler: handler,
		sendMsg: make(chan []byte, opts.bufferSize),
		done:    make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.state.Store(int32(StateDisconnected))
	return c
}

// connect establishes the transport and moves the connection to
// StateConnected. A failed dial moves straight to StateClosed: the
// connection object is single-use.
func (c *conn) connect(addr string) error {
	c.state.Store(int32(StateConnecting))

	raw, err := net.DialTimeout("tcp", addr, c.opts.dialTimeout)
	if err != nil {
		c.shutdown(err)
		return err
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	c.attach(raw)
	return nil
}

// attach wires an already-established transport into the connection.
func (c *conn) attach(raw net.Conn) {
	c.raw = raw
	c.reader = bufio.NewReaderSize(raw, c.opts.maxFrameSize)
	c.state.Store(int32(StateConnected))
}

// run drives the read and write loops until the connection terminates,
// then performs the single shutdown. Must be called exactly once, after a
// successful connect or attach.
func (c *conn) run() error {
	c.logger.Debug("connection established", "addr", c.remoteAddr())

	group, ctx := errgroup.WithContext(c.ctx)

	// Unblock a reader parked in ReadFrame once either loop ends.
	go func() {
		<-ctx.Done()
		_ = c.raw.Close()
	}()

	group.Go(func() error {
		return c.readLoop(ctx)
	})

	group.Go(func() error {
		return c.writeLoop(ctx)
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	c.shutdown(err)

	return err
}

// readLoop reassembles and decodes inbound frames. Each frame is handed to
// the raw-frame listener, then decoded and handed to the handler and the
// packet listener. Returns when the context is canceled, the peer ends the
// stream, or a malformed frame arrives and the error policy says
// Disconnect.
func (c *conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			frame, err := ReadFrame(c.reader, c.opts.maxFrameSize)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
					return ErrConnectionClosed
				}
				if errors.Is(err, ErrMalformedFrame) || errors.Is(err, ErrFrameTooLarge) {
					c.logger.Debug("read error", "addr", c.remoteAddr(), "error", err)
					if c.opts.onError(err) == Disconnect {
						return err
					}
					continue
				}
				return err
			}

			if c.opts.onFrame != nil {
				c.opts.onFrame(frame)
			}

			pkt, err := Decode(frame)
			if err != nil {
				c.logger.Debug("decode error", "addr", c.remoteAddr(), "error", err)
				if c.opts.onError(err) == Disconnect {
					return err
				}
				continue
			}

			if c.handler != nil {
				c.handler(pkt)
			}
			if c.opts.onPacket != nil {
				c.opts.onPacket(pkt)
			}
		}
	}
}

// writeLoop drains the send channel to the transport. Frames are written
// whole, one at a time, so concurrent senders never interleave bytes.
func (c *conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-c.sendMsg:
			if c.opts.writeTimeout > 0 {
				_ = c.raw.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))
			}
			if _, err := c.raw.Write(frame); err != nil {
				c.logger.Debug("write error", "addr", c.remoteAddr(), "error", err)
				return err
			}
		}
	}
}

// write queues one frame for transmission, blocking until the frame is
// queued, the context is done, or the connection closes.
func (c *conn) write(ctx context.Context, frame []byte) error {
	if c.currentState() == StateClosed {
		return ErrConnectionClosed
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown moves the connection to StateClosed, releases the transport,
// and emits the close notification. Every terminating path funnels here;
// only the first call has any effect.
func (c *conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.authenticated.Store(false)
		c.cancel()
		if c.raw != nil {
			_ = c.raw.Close()
		}

		close(c.done)

		if err != nil {
			c.logger.Info("connection closed with error", "addr", c.remoteAddr(), "error", err)
		} else {
			c.logger.Info("connection closed", "addr", c.remoteAddr())
		}

		if c.opts.onClose != nil {
			c.opts.onClose(err)
		}
	})
}

// close terminates the connection locally. Safe to call multiple times.
func (c *conn) close() {
	c.shutdown(nil)
}

func (c *conn) currentState() State {
	return State(c.state.Load())
}

func (c *conn) remoteAddr() net.Addr {
	if c.raw == nil {
		return nil
	}
	return c.raw.RemoteAddr()
}

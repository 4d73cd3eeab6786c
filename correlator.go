package rcon

import (
	"sync"

	"github.com/pkg/errors"
)

// correlator matches every inbound packet to the outgoing request awaiting
// it, keyed by packet id. Requests register before their frame is written
// and are removed when the matching reply is routed, the caller gives up,
// or the connection terminates, so replies may arrive in any order without
// ever resolving a caller with someone else's reply.
type correlator struct {
	logger Logger

	mu      sync.Mutex
	pending map[int32]chan *Packet
	closed  bool
	cause   error
}

func newCorrelator(logger Logger) *correlator {
	return &correlator{
		logger:  logger,
		pending: make(map[int32]chan *Packet),
	}
}

// register creates the pending entry for id and returns its reply channel.
// The channel is buffered so dispatch never blocks; it is closed without a
// value when the connection fails.
func (c *correlator) register(id int32) (<-chan *Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, c.failure()
	}
	if _, inFlight := c.pending[id]; inFlight {
		return nil, errors.Errorf("request id %d already in flight", id)
	}

	ch := make(chan *Packet, 1)
	c.pending[id] = ch
	return ch, nil
}

// cancel abandons the pending entry for id, if still present.
func (c *correlator) cancel(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// dispatch routes one inbound packet to its pending entry. A rejected
// authentication is answered with the sentinel id rather than the request
// id, so an unmatched sentinel falls back to the pending auth request.
// Packets matching nothing are discarded with a warning; a stray reply is
// not a client failure.
func (c *correlator) dispatch(pkt *Packet) {
	c.mu.Lock()
	id := pkt.ID
	ch, ok := c.pending[id]
	if !ok && pkt.ID == AuthFailedID {
		id = AuthID
		ch, ok = c.pending[id]
	}
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("discarding reply with no pending request", "id", pkt.ID, "type", pkt.Type)
		return
	}

	ch <- pkt
}

// fail terminates every pending entry and refuses further registrations.
// Waiters observe a closed reply channel and report the given cause.
func (c *correlator) fail(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cause = cause

	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

// failure returns the terminal cause. It is written once, before any
// reply channel closes, so reading it after observing a closed channel
// needs no lock.
func (c *correlator) failure() error {
	if c.cause != nil {
		return c.cause
	}
	return ErrConnectionClosed
}

package rcon

import (
	"time"
)

// ErrorAction defines what the connection does after a recoverable
// decode error.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and keeps reading.
	Continue
)

// Default configuration values.
const (
	// DefaultPort is the conventional remote-console port.
	DefaultPort = 25575
	// defaultBufferSize is the default size of the outbound frame channel.
	defaultBufferSize = 1
	// defaultMaxFrameSize is the default maximum size of a single frame.
	// Console replies are small; anything bigger indicates a
	// desynchronized stream or a hostile peer.
	defaultMaxFrameSize = 4110
	// defaultDialTimeout bounds connection establishment and the
	// authentication handshake.
	defaultDialTimeout = 10 * time.Second
)

// options holds the configuration for a client and its connection.
type options struct {
	logger Logger

	// onError decides whether a malformed inbound frame tears down the
	// connection or is skipped.
	onError func(error) ErrorAction
	// onClose observes the single close notification of the connection.
	onClose func(error)
	// onReady observes the readiness notification after a successful
	// handshake.
	onReady func()
	// onPacket observes every decoded inbound packet.
	onPacket func(*Packet)
	// onFrame observes every raw inbound frame before decoding.
	onFrame func([]byte)

	bufferSize   int
	maxFrameSize int
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

// Option is a function that configures client options.
type Option func(*options)

// checkOptions validates and sets default values.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.maxFrameSize < MinFrameSize {
		opts.maxFrameSize = defaultMaxFrameSize
	}

	if opts.dialTimeout <= 0 {
		opts.dialTimeout = defaultDialTimeout
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// BufferSizeOption returns an Option that sets the size of the outbound
// frame channel. A larger buffer allows more frames to be queued before
// senders block.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// MaxFrameSizeOption returns an Option that sets the maximum size of a
// single inbound frame. Frames declaring a larger size fail with
// ErrFrameTooLarge.
func MaxFrameSizeOption(size int) Option {
	return func(o *options) {
		o.maxFrameSize = size
	}
}

// DialTimeoutOption returns an Option that bounds connection establishment
// and the authentication handshake.
func DialTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = timeout
	}
}

// WriteTimeoutOption returns an Option that sets a per-write deadline on
// the transport. Zero means no deadline.
func WriteTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = timeout
	}
}

// OnErrorOption returns an Option that sets the decode error callback.
// Return Disconnect to close the connection, or Continue to skip the
// frame and keep reading.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnCloseOption returns an Option that registers a listener for the
// connection's close notification. The listener runs exactly once per
// connection lifetime, whichever path closed it; err is nil for a clean
// local close.
func OnCloseOption(cb func(err error)) Option {
	return func(o *options) {
		o.onClose = cb
	}
}

// OnReadyOption returns an Option that registers a listener invoked once
// when the handshake succeeds and the client becomes ready.
func OnReadyOption(cb func()) Option {
	return func(o *options) {
		o.onReady = cb
	}
}

// OnPacketOption returns an Option that registers a listener for every
// decoded inbound packet, in addition to request/response correlation.
func OnPacketOption(cb func(*Packet)) Option {
	return func(o *options) {
		o.onPacket = cb
	}
}

// OnFrameOption returns an Option that registers a listener for every raw
// inbound frame, before decoding.
func OnFrameOption(cb func([]byte)) Option {
	return func(o *options) {
		o.onFrame = cb
	}
}

package rcon

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"sync"
	"time"
)

// Handler produces the reply body for one executed console command.
type Handler func(command string) string

// Server is a minimal server side of the protocol: it verifies the
// password on AUTH, answers rejected passwords with the failure sentinel
// id, and dispatches CMD_EXEC bodies to a Handler. It exists mainly to
// exercise clients against a real peer.
type Server struct {
	listener *net.TCPListener
	password string
	handler  Handler
	logger   Logger

	maxFrameSize int

	mu       sync.Mutex
	shutdown bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerMaxFrameSizeOption sets the maximum accepted request frame size.
func ServerMaxFrameSizeOption(size int) ServerOption {
	return func(s *Server) {
		if size >= MinFrameSize {
			s.maxFrameSize = size
		}
	}
}

// NewServer creates a server bound to addr. handler may be nil, in which
// case every command is answered with an empty body.
func NewServer(addr, password string, handler Handler, opts ...ServerOption) (*Server, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:     listener,
		password:     password,
		handler:      handler,
		logger:       defaultLogger(),
		maxFrameSize: defaultMaxFrameSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts connections and serves the protocol on each until the
// context is canceled or an unrecoverable accept error occurs.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)
		go s.serveConn(ctx, conn)
	}
}

// serveConn answers frames on one connection until the peer disconnects.
// Commands sent before a successful AUTH are refused with the failure
// sentinel.
func (s *Server) serveConn(ctx context.Context, conn *net.TCPConn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	reader := bufio.NewReaderSize(conn, s.maxFrameSize)
	authenticated := false

	for {
		frame, err := ReadFrame(reader, s.maxFrameSize)
		if err != nil {
			s.logger.Debug("connection done", "remote_addr", conn.RemoteAddr(), "error", err)
			return
		}

		req, err := Decode(frame)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "remote_addr", conn.RemoteAddr(), "error", err)
			return
		}

		var reply *Packet
		switch req.Type {
		case TypeAuth:
			if subtle.ConstantTimeCompare([]byte(s.password), []byte(req.Body)) == 1 {
				authenticated = true
				reply = &Packet{Type: TypeResponse, ID: req.ID}
			} else {
				s.logger.Warn("rejected password", "remote_addr", conn.RemoteAddr())
				reply = &Packet{Type: TypeAuthFailed, ID: AuthFailedID}
			}

		case TypeExecCommand:
			if !authenticated {
				reply = &Packet{Type: TypeAuthFailed, ID: AuthFailedID}
				break
			}
			var body string
			if s.handler != nil {
				body = s.handler(req.Body)
			}
			reply = &Packet{Type: TypeResponse, ID: req.ID, Body: body}

		default:
			s.logger.Warn("unknown packet type", "remote_addr", conn.RemoteAddr(), "type", req.Type)
			continue
		}

		if _, err = conn.Write(Encode(reply)); err != nil {
			s.logger.Debug("write error", "remote_addr", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

// Close stops the server by closing the listener. Blocked Accept calls
// return immediately.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

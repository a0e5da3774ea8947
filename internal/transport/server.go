// Package transport implements the WebSocket duplex byte stream client and
// server talk over (github.com/gorilla/websocket), replacing the original
// implementation's uWS::WebSocket transport (see
// original_source/shared/source/streaming_server.hpp). Where the original
// dispatches incoming packets through a fixed set of registered callbacks,
// this package exposes a channel of decoded packets and lets the caller
// drive a select loop instead (see REDESIGN FLAGS).
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

// DefaultPort is the port the original server listens on.
const DefaultPort = 9000

// Packet is one decoded inbound message, paired with its type tag so the
// session-handling select loop can switch on it without re-parsing.
type Packet struct {
	Type    wire.Type
	Payload []byte
}

// Conn wraps one accepted WebSocket connection: a channel of decoded
// inbound Packets and a thread-safe Send for outbound frames (gorilla's
// websocket.Conn requires a single writer goroutine, so Send serializes
// through a mutex rather than a dedicated writer goroutine, matching the
// original's single send_buffer guarded by no additional lock since uWS
// itself is single-threaded per connection).
type Conn struct {
	ws     *websocket.Conn
	log    zerolog.Logger
	inbox  chan Packet
	closed chan struct{}
	once   sync.Once
	mu     sync.Mutex
}

func newConn(ws *websocket.Conn, log zerolog.Logger) *Conn {
	return &Conn{
		ws:     ws,
		log:    log,
		inbox:  make(chan Packet, 64),
		closed: make(chan struct{}),
	}
}

// Inbox returns the channel of decoded packets; it is closed when the
// connection is closed (by the peer or by Close).
func (c *Conn) Inbox() <-chan Packet { return c.inbox }

// Closed returns a channel that is closed once the connection has ended.
func (c *Conn) Closed() <-chan struct{} { return c.closed }

// Send writes one fully-encoded wire packet (including its leading type
// tag) to the peer.
func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// Close closes the underlying connection, idempotently.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	defer close(c.inbox)
	defer close(c.closed)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		tag, payload, err := wire.PeekType(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed packet")
			continue
		}
		select {
		case c.inbox <- Packet{Type: tag, Payload: payload}:
		case <-c.closed:
			return
		}
	}
}

// Server accepts the single active WebSocket session the protocol allows at
// a time (matching the original's single session_socket), handing each new
// connection to the caller's accept callback.
type Server struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	current *Conn
}

// NewServer constructs a Server. log is used for connection-level
// diagnostics (upgrade failures, malformed packets).
func NewServer(log zerolog.Logger) *Server {
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns an http.HandlerFunc that upgrades the request to a
// WebSocket connection and invokes onConnect with the resulting Conn. A
// second connection while one is already active closes the existing one
// first, matching "at most one active session" at the transport level.
func (s *Server) Handler(onConnect func(*Conn)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		s.mu.Lock()
		if s.current != nil {
			s.current.Close()
		}
		conn := newConn(ws, s.log)
		s.current = conn
		s.mu.Unlock()

		go conn.readLoop()
		onConnect(conn)
	}
}

// Current returns the active connection, if any.
func (s *Server) Current() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ListenAndServe starts an HTTP server bound to addr serving the WebSocket
// endpoint at path, blocking until ctx is cancelled or an unrecoverable
// error occurs.
func ListenAndServe(ctx context.Context, addr, path string, handler http.HandlerFunc) error {
	mux := http.NewServeMux()
	mux.HandleFunc(path, handler)

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("transport: serve: %w", err)
		}
		return nil
	}
}

package transport

import (
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Dial opens a client-side WebSocket connection to the streaming server at
// addr (host:port) and path, returning a Conn with the same decoded-packet
// Inbox/Send surface the server side uses, generalizing the original
// implementation's uWS client half (stream_client.hpp) the same way Server
// generalizes its server half.
func Dial(addr, path string, log zerolog.Logger) (*Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", u.String(), err)
	}

	conn := newConn(ws, log)
	go conn.readLoop()
	return conn, nil
}

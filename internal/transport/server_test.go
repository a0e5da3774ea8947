package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func TestServerRoundTripsPacket(t *testing.T) {
	log := zerolog.Nop()
	srv := NewServer(log)

	connected := make(chan *Conn, 1)
	handler := srv.Handler(func(c *Conn) {
		connected <- c
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	var conn *Conn
	select {
	case conn = <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted connection")
	}

	destroy := wire.EncodeSessionDestroy()
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, destroy))

	select {
	case pkt := <-conn.Inbox():
		require.Equal(t, wire.TypeSessionDestroy, pkt.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound packet")
	}

	layerResponse := []byte{1, 2, 3, 4}
	require.NoError(t, conn.Send(layerResponse))

	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, layerResponse, data)
}

func TestSecondConnectionClosesFirst(t *testing.T) {
	log := zerolog.Nop()
	srv := NewServer(log)

	var conns []*Conn
	handler := srv.Handler(func(c *Conn) {
		conns = append(conns, c)
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer first.Close()
	time.Sleep(20 * time.Millisecond)

	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer second.Close()
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, srv.Current(), conns[len(conns)-1])
}

package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWS(t *testing.T) {
	initWS("*")

	closed := make(chan struct{})
	HandleFunc("echo", func(tr *Transport, msg *Message) error {
		tr.OnClose(func() { close(closed) })
		tr.Write(&Message{Type: "echo", Value: msg.String()})
		return nil
	})

	srv := httptest.NewServer(http.HandlerFunc(apiWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "echo", "value": "hello"}))

	var msg struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "echo", msg.Type)
	require.Equal(t, "hello", msg.Value)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "nope"}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "error", msg.Type)

	_ = conn.Close()
	<-closed
}

func TestTransportOnClose(t *testing.T) {
	tr := newTransport(nil)
	var n int
	tr.OnClose(func() { n++ })
	tr.Close()
	tr.Close()
	tr.OnClose(func() { n++ })
	require.Equal(t, 2, n)

	// writes after close never block
	for i := 0; i < sendQueue*2; i++ {
		tr.Write(&Message{Type: "camera"})
	}
}

func TestSameHost(t *testing.T) {
	r := httptest.NewRequest("GET", "http://cam.local:1985/api/ws", nil)
	require.True(t, sameHost(r))

	r.Header.Set("Origin", "http://cam.local:8080")
	require.True(t, sameHost(r))

	r.Header.Set("Origin", "http://evil.local:1985")
	require.False(t, sameHost(r))
}

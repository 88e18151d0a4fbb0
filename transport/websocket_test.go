package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeevrajeshuni/MentraOS-sub001/errors"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// echoServer upgrades connections and echoes every frame back until the
// handler function returns true (terminate).
func echoServer(t *testing.T, handler func(conn *websocket.Conn, msgType int, data []byte) bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if handler(conn, msgType, data) {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocket_OpenSendReceive(t *testing.T) {
	server := echoServer(t, func(conn *websocket.Conn, msgType int, data []byte) bool {
		_ = conn.WriteMessage(msgType, data)
		return false
	})
	defer server.Close()

	var (
		mu       sync.Mutex
		opened   bool
		received [][]byte
		binary   []bool
	)
	gotMessage := make(chan struct{}, 4)

	tr := NewWebSocket(wsURL(server))
	err := tr.Open(context.Background(), Events{
		OnOpen: func() {
			mu.Lock()
			opened = true
			mu.Unlock()
		},
		OnMessage: func(data []byte, isBinary bool) {
			mu.Lock()
			received = append(received, data)
			binary = append(binary, isBinary)
			mu.Unlock()
			gotMessage <- struct{}{}
		},
	})
	require.NoError(t, err)
	defer tr.Close()

	mu.Lock()
	assert.True(t, opened)
	mu.Unlock()

	require.NoError(t, tr.Send([]byte(`{"type":"ping"}`)))
	require.NoError(t, tr.SendBinary([]byte{0x01, 0x02}))

	for i := 0; i < 2; i++ {
		select {
		case <-gotMessage:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for echoed message")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, `{"type":"ping"}`, string(received[0]))
	assert.False(t, binary[0])
	assert.True(t, binary[1])
}

func TestWebSocket_LocalCloseIsClean(t *testing.T) {
	server := echoServer(t, func(_ *websocket.Conn, _ int, _ []byte) bool { return false })
	defer server.Close()

	closed := make(chan bool, 1)
	tr := NewWebSocket(wsURL(server))
	require.NoError(t, tr.Open(context.Background(), Events{
		OnClose: func(_ string, clean bool) {
			closed <- clean
		},
	}))

	require.NoError(t, tr.Close())

	select {
	case clean := <-closed:
		assert.True(t, clean, "locally requested closure must report clean")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close event")
	}
}

func TestWebSocket_PeerNormalClosureIsClean(t *testing.T) {
	server := echoServer(t, func(conn *websocket.Conn, _ int, _ []byte) bool {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second))
		return true
	})
	defer server.Close()

	closed := make(chan bool, 1)
	tr := NewWebSocket(wsURL(server))
	require.NoError(t, tr.Open(context.Background(), Events{
		OnClose: func(_ string, clean bool) {
			closed <- clean
		},
	}))
	defer tr.Close()

	require.NoError(t, tr.Send([]byte("trigger")))

	select {
	case clean := <-closed:
		assert.True(t, clean)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close event")
	}
}

func TestWebSocket_AbnormalClosureIsNotClean(t *testing.T) {
	server := echoServer(t, func(conn *websocket.Conn, _ int, _ []byte) bool {
		// Drop the TCP connection without a close frame.
		_ = conn.UnderlyingConn().Close()
		return true
	})
	defer server.Close()

	closed := make(chan bool, 1)
	errored := make(chan error, 1)
	tr := NewWebSocket(wsURL(server))
	require.NoError(t, tr.Open(context.Background(), Events{
		OnClose: func(_ string, clean bool) {
			closed <- clean
		},
		OnError: func(err error) {
			errored <- err
		},
	}))
	defer tr.Close()

	require.NoError(t, tr.Send([]byte("trigger")))

	select {
	case clean := <-closed:
		assert.False(t, clean, "dropped connection must report abnormal closure")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close event")
	}

	select {
	case err := <-errored:
		assert.True(t, errors.Is(err, errors.ErrTransportFailure))
	case <-time.After(time.Second):
		t.Fatal("expected a transport error for abnormal closure")
	}
}

func TestWebSocket_SendWhenClosed(t *testing.T) {
	tr := NewWebSocket("ws://127.0.0.1:0/never")
	err := tr.Send([]byte("x"))
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
}

func TestWebSocket_DoubleOpenRejected(t *testing.T) {
	server := echoServer(t, func(_ *websocket.Conn, _ int, _ []byte) bool { return false })
	defer server.Close()

	tr := NewWebSocket(wsURL(server))
	require.NoError(t, tr.Open(context.Background(), Events{}))
	defer tr.Close()

	err := tr.Open(context.Background(), Events{})
	assert.True(t, errors.Is(err, errors.ErrAlreadyConnected))
}

func TestWebSocket_ReopenAfterClose(t *testing.T) {
	server := echoServer(t, func(_ *websocket.Conn, _ int, _ []byte) bool { return false })
	defer server.Close()

	tr := NewWebSocket(wsURL(server))
	closed := make(chan struct{}, 1)
	require.NoError(t, tr.Open(context.Background(), Events{
		OnClose: func(_ string, _ bool) { closed <- struct{}{} },
	}))
	require.NoError(t, tr.Close())
	<-closed

	require.NoError(t, tr.Open(context.Background(), Events{}))
	assert.NoError(t, tr.Close())
}

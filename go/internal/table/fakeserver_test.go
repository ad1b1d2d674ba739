package table

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// gameServer is a scripted stand-in for the game server's websocket endpoint.
type gameServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader
	conns    chan *serverConn

	// onConnect runs for every accepted connection before reads start
	onConnect func(sc *serverConn)
}

type serverConn struct {
	path     string
	conn     *websocket.Conn
	received chan map[string]interface{}
	closed   chan struct{}
	writeMu  sync.Mutex
}

func newGameServer(t *testing.T) *gameServer {
	t.Helper()
	gs := &gameServer{
		t:     t,
		conns: make(chan *serverConn, 8),
	}
	gs.srv = httptest.NewServer(http.HandlerFunc(gs.serveWS))
	t.Cleanup(gs.srv.Close)
	return gs
}

func (gs *gameServer) URL() string { return gs.srv.URL }

func (gs *gameServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sc := &serverConn{
		path:     r.URL.Path,
		conn:     conn,
		received: make(chan map[string]interface{}, 16),
		closed:   make(chan struct{}),
	}
	if gs.onConnect != nil {
		gs.onConnect(sc)
	}
	gs.conns <- sc
	go sc.readLoop()
}

func (sc *serverConn) readLoop() {
	defer close(sc.closed)
	for {
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		if m["type"] == "ping" {
			_ = sc.send(map[string]interface{}{"type": "pong"})
		}
		sc.received <- m
	}
}

func (sc *serverConn) send(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.conn.WriteJSON(v)
}

func (sc *serverConn) closeWith(code int) {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	_ = sc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
	sc.conn.Close()
}

func (gs *gameServer) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case sc := <-gs.conns:
		return sc
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func (gs *gameServer) noConnection(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case sc := <-gs.conns:
		t.Fatalf("unexpected connection on %s", sc.path)
	case <-time.After(wait):
	}
}

// expect returns the next client message of the given type, skipping pings.
func (sc *serverConn) expect(t *testing.T, msgType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sc.received:
			if m["type"] == "ping" && msgType != "ping" {
				continue
			}
			require.Equal(t, msgType, m["type"])
			return m
		case <-deadline:
			t.Fatalf("no %s message received", msgType)
			return nil
		}
	}
}

func (sc *serverConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-sc.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("server side connection still open")
	}
}

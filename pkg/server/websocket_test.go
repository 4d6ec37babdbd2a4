package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsClient wraps a dialed websocket connection with line helpers.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(line string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *wsClient) expect(want ...string) {
	c.t.Helper()
	for _, w := range want {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", w, err)
		}
		if got := string(data); got != w {
			c.t.Fatalf("got %q, want %q", got, w)
		}
	}
}

func TestWebSocketBridgeJoinAndChat(t *testing.T) {
	srv := startTestServer(t)
	ts := httptest.NewServer(srv.wsHandler())
	defer ts.Close()

	alice := dialWS(t, ts)
	alice.send("alice: #NEWUSER:alice")
	alice.expect(
		"#NEWLIST",
		"#REFRESH:alice",
		"#DONEREFRESHING",
		"alice has joined the chat.",
	)

	alice.send("alice: hello from a browser")
	alice.expect("alice: hello from a browser")
}

// TestWebSocketAndTCPShareTheRoster proves the bridge lands in the same
// session lifecycle: both transports hear each other's broadcasts.
func TestWebSocketAndTCPShareTheRoster(t *testing.T) {
	srv := startTestServer(t)
	ts := httptest.NewServer(srv.wsHandler())
	defer ts.Close()

	alice := dial(t, srv) // raw TCP
	alice.joinAs("alice", "#REFRESH:alice")

	bob := dialWS(t, ts) // websocket
	bob.send("bob: #NEWUSER:bob")
	bob.expect("#NEWLIST", "#REFRESH:alice", "#REFRESH:bob",
		"#DONEREFRESHING", "bob has joined the chat.")
	alice.expect("#NEWLIST", "#REFRESH:alice", "#REFRESH:bob",
		"#DONEREFRESHING", "bob has joined the chat.")

	bob.send("bob: @alice psst")
	alice.expect("bob (private): psst")
	bob.expect("bob (to @alice): psst")
}

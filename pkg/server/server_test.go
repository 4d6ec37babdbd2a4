package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.WebSocketAddr = "" // bridged separately in websocket_test.go
	cfg.MetricsAddr = ""
	srv := New(cfg)
	if err := srv.StartTCP(); err != nil {
		t.Fatalf("StartTCP: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

// testClient is a raw TCP client speaking the line protocol.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, srv *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testClient) expect(want ...string) {
	c.t.Helper()
	for _, w := range want {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, err := c.r.ReadString('\n')
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", w, err)
		}
		if got := strings.TrimRight(line, "\n"); got != w {
			c.t.Fatalf("got %q, want %q", got, w)
		}
	}
}

// joinAs completes the handshake and drains the join-time sequence, so
// later assertions start from a quiet transcript.
func (c *testClient) joinAs(name string, roster ...string) {
	c.t.Helper()
	c.send(name + ": #NEWUSER:" + name)
	c.expect("#NEWLIST")
	c.expect(roster...)
	c.expect("#DONEREFRESHING", name+" has joined the chat.")
}

func TestServerJoinAndBroadcast(t *testing.T) {
	srv := startTestServer(t)

	alice := dial(t, srv)
	alice.joinAs("alice", "#REFRESH:alice")

	bob := dial(t, srv)
	bob.joinAs("bob", "#REFRESH:alice", "#REFRESH:bob")

	// alice sees bob's arrival.
	alice.expect(
		"#NEWLIST",
		"#REFRESH:alice",
		"#REFRESH:bob",
		"#DONEREFRESHING",
		"bob has joined the chat.",
	)

	alice.send("alice: hello everyone")
	alice.expect("alice: hello everyone")
	bob.expect("alice: hello everyone")
}

func TestServerDuplicateJoinRejected(t *testing.T) {
	srv := startTestServer(t)

	alice := dial(t, srv)
	alice.joinAs("alice", "#REFRESH:alice")

	imposter := dial(t, srv)
	imposter.send("x: #NEWUSER:alice")
	imposter.expect("#REJECTED:username is already in use")

	// Retry on the same connection with a free name.
	imposter.send("x: #NEWUSER:xavier")
	imposter.expect("#NEWLIST", "#REFRESH:alice", "#REFRESH:xavier",
		"#DONEREFRESHING", "xavier has joined the chat.")
}

func TestServerAdminGameStart(t *testing.T) {
	srv := startTestServer(t)

	// First accepted connection holds the admin slot.
	alice := dial(t, srv)
	alice.joinAs("alice", "#REFRESH:alice")

	bob := dial(t, srv)
	bob.joinAs("bob", "#REFRESH:alice", "#REFRESH:bob")
	alice.expect("#NEWLIST", "#REFRESH:alice", "#REFRESH:bob",
		"#DONEREFRESHING", "bob has joined the chat.")

	// Non-admin trigger is silently dropped: the next line anyone sees
	// is alice's ping, proving no announcement slipped in between.
	bob.send("bob: #GAMESTART")
	alice.send("alice: ping")
	alice.expect("alice: ping")
	bob.expect("alice: ping")

	alice.send("alice: #GAMESTART")
	alice.expect("Game Started!")
	bob.expect("Game Started!")
}

func TestServerDisconnectCleanup(t *testing.T) {
	srv := startTestServer(t)

	alice := dial(t, srv)
	alice.joinAs("alice", "#REFRESH:alice")

	bob := dial(t, srv)
	bob.joinAs("bob", "#REFRESH:alice", "#REFRESH:bob")
	alice.expect("#NEWLIST", "#REFRESH:alice", "#REFRESH:bob",
		"#DONEREFRESHING", "bob has joined the chat.")

	_ = bob.conn.Close()

	alice.expect(
		"#NEWLIST",
		"#REFRESH:alice",
		"#DONEREFRESHING",
		"bob has left the chat.",
	)

	// bob's name is free again for a new connection.
	bob2 := dial(t, srv)
	bob2.joinAs("bob", "#REFRESH:alice", "#REFRESH:bob")
}

func TestServerMalformedLineClosesConnection(t *testing.T) {
	srv := startTestServer(t)

	alice := dial(t, srv)
	alice.joinAs("alice", "#REFRESH:alice")

	mallory := dial(t, srv)
	mallory.send("no envelope delimiter")

	// The server closes only mallory's connection; the read fails once
	// the close propagates.
	_ = mallory.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := mallory.r.ReadString('\n'); err == nil {
		t.Fatal("expected connection close after malformed line")
	}

	// alice is unaffected.
	alice.send("alice: still alive")
	alice.expect("alice: still alive")
}

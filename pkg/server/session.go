package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
)

// lineConn abstracts a transport carrying newline-delimited text lines.
// TCP sockets and WebSocket connections both satisfy it, so the session
// lifecycle and router are transport-agnostic.
type lineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() net.Addr
}

// tcpLineConn adapts a raw net.Conn to lineConn.
type tcpLineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func newTCPLineConn(conn net.Conn, maxLineBytes int) *tcpLineConn {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 256), maxLineBytes)
	return &tcpLineConn{conn: conn, scanner: sc}
}

func (c *tcpLineConn) ReadLine() (string, error) {
	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (c *tcpLineConn) WriteLine(line string) error {
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		return fmt.Errorf("server: write line: %w", err)
	}
	return nil
}

func (c *tcpLineConn) Close() error         { return c.conn.Close() }
func (c *tcpLineConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Session is the server-side state for one connected client. It is
// created at accept time, joins the roster via the #NEWUSER handshake,
// and is destroyed when its read loop terminates.
type Session struct {
	ID string

	conn lineConn

	// writeMu serializes writers on the outbound sink. Broadcasts from
	// many sessions' read loops write here concurrently; without this
	// two deliveries could interleave bytes within one line.
	writeMu sync.Mutex

	mu       sync.Mutex
	username string
	joined   bool
	admin    bool
}

func newSession(conn lineConn) *Session {
	return &Session{ID: uuid.NewString(), conn: conn}
}

// Username returns the assigned username, or "" before the join handshake.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Joined reports whether the session has completed the join handshake.
func (s *Session) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

// Admin reports whether the session holds the admin slot.
func (s *Session) Admin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

func (s *Session) setAdmin(admin bool) {
	s.mu.Lock()
	s.admin = admin
	s.mu.Unlock()
}

func (s *Session) markJoined(username string) {
	s.mu.Lock()
	s.username = username
	s.joined = true
	s.mu.Unlock()
}

// Send writes one line to the session's outbound sink. Safe for
// concurrent callers.
func (s *Session) Send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteLine(line)
}

// Close closes the underlying transport. The session's read loop
// observes the close and runs the disconnect cleanup path.
func (s *Session) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer address for logging.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

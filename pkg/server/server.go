// Package server implements the LobbyChat relay server: a TCP (and
// optional WebSocket) listener, one read-loop goroutine per connection,
// a shared roster, and a router dispatching the line protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
)

// Server is the LobbyChat relay server.
type Server struct {
	cfg     Config
	roster  *Roster
	router  *Router
	metrics *Metrics

	listener net.Listener
	wsServer *http.Server

	connMu sync.Mutex
	conns  map[*Session]struct{} // every accepted session, joined or not

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	roster := NewRoster()
	metrics := NewMetrics()
	return &Server{
		cfg:     cfg,
		roster:  roster,
		router:  newRouter(roster, metrics),
		metrics: metrics,
		conns:   make(map[*Session]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Roster returns the live roster.
func (s *Server) Roster() *Roster { return s.roster }

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Addr returns the bound TCP listener address, useful when the config
// asked for ":0".
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// StartTCP binds the TCP listener and starts the accept loop. Each
// accepted connection gets its own read-loop goroutine; the first
// connection while the admin slot is empty becomes admin.
func (s *Server) StartTCP() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	slog.Info("relay listening", "addr", ln.Addr())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.handleSession(newTCPLineConn(conn, s.cfg.MaxLineBytes))
		}
	}()
	return nil
}

// handleSession owns one connection's lifecycle: admin election at
// accept time, the blocking read loop, and the disconnect cleanup.
// Both the TCP accept loop and the WebSocket bridge land here.
func (s *Server) handleSession(conn lineConn) {
	sess := newSession(conn)
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	if s.roster.Register(sess) {
		slog.Info("admin connected", "remote", conn.RemoteAddr())
	}
	s.track(sess)
	slog.Debug("new connection", "session", sess.ID, "remote", conn.RemoteAddr())

	defer func() {
		s.router.Disconnect(sess)
		s.untrack(sess)
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.Disconnects.Add(1)
		slog.Debug("connection closed", "session", sess.ID, "user", sess.Username())
	}()

	for {
		raw, err := conn.ReadLine()
		if err != nil {
			if err != io.EOF && !isClosedErr(err) {
				slog.Error("read error", "user", sess.Username(), "err", err)
			}
			return
		}
		if err := s.router.HandleLine(sess, raw); err != nil {
			s.metrics.MalformedLines.Add(1)
			slog.Warn("protocol violation, closing connection",
				"remote", conn.RemoteAddr(), "err", err)
			return
		}
	}
}

func (s *Server) track(sess *Session) {
	s.connMu.Lock()
	s.conns[sess] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrack(sess *Session) {
	s.connMu.Lock()
	delete(s.conns, sess)
	s.connMu.Unlock()
}

// liveSessions snapshots every tracked session, joined or not.
func (s *Server) liveSessions() []*Session {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	out := make([]*Session, 0, len(s.conns))
	for sess := range s.conns {
		out = append(out, sess)
	}
	return out
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

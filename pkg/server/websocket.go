package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// wsLineConn adapts a WebSocket connection to lineConn: one text frame
// per protocol line, so browser clients speak the identical wire
// protocol as raw TCP ones.
type wsLineConn struct {
	conn *websocket.Conn
}

func (c *wsLineConn) ReadLine() (string, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure) {
				return "", net.ErrClosed
			}
			return "", err
		}
		if mt != websocket.TextMessage {
			continue // binary and control frames carry no protocol lines
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (c *wsLineConn) WriteLine(line string) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("server: write frame: %w", err)
	}
	return nil
}

func (c *wsLineConn) Close() error         { return c.conn.Close() }
func (c *wsLineConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// wsHandler builds the HTTP handler that upgrades /ws requests and
// hands the connection to the shared session lifecycle.
func (s *Server) wsHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The line protocol carries no credentials and the relay is
		// meant for LAN lobbies, so any origin may connect.
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		conn.SetReadLimit(int64(s.cfg.MaxLineBytes))
		s.handleSession(&wsLineConn{conn: conn})
	})
	return mux
}

// StartWebSocket starts the optional WebSocket bridge on /ws. Upgraded
// connections run through the same session lifecycle as TCP ones.
func (s *Server) StartWebSocket() error {
	addr := s.cfg.WebSocketAddr
	if addr == "" {
		return nil // bridge disabled
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.wsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.wsServer = srv

	go func() {
		slog.Info("websocket bridge listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("websocket bridge error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()

	return nil
}

package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts all listeners and blocks until a shutdown signal.
func (s *Server) Run() error {
	if err := s.StartTCP(); err != nil {
		return err
	}
	if err := s.StartWebSocket(); err != nil {
		return err
	}
	s.StartMetricsHTTP()

	// Periodic metrics summary (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	slog.Info("LobbyChat server running",
		"tcp", s.cfg.ListenAddr,
		"ws", s.cfg.WebSocketAddr,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown stops the listeners and closes every live connection.
// Closing a session's transport is its only cancellation mechanism:
// the blocked read returns and the read loop runs its cleanup path.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.wsServer != nil {
		_ = s.wsServer.Close()
	}
	for _, sess := range s.liveSessions() {
		_ = sess.Close()
	}
}

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"
)

// RosterYAML is the YAML shape served by /roster: the live usernames
// in join order, with the admin flagged.
type RosterYAML struct {
	Count int               `yaml:"count"`
	Users []RosterEntryYAML `yaml:"users"`
}

// RosterEntryYAML is one joined user in the /roster export.
type RosterEntryYAML struct {
	Username string `yaml:"username"`
	Admin    bool   `yaml:"admin,omitempty"`
}

// StartMetricsHTTP starts a lightweight HTTP server exposing /metrics
// in Prometheus text exposition format, /healthz, and /roster (the
// live roster as YAML). It runs in the background and shuts down when
// the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/roster", s.handleRoster)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleRoster exports the current roster snapshot as YAML, the same
// shape an operator would feed to other tooling.
func (s *Server) handleRoster(w http.ResponseWriter, _ *http.Request) {
	admin := s.roster.Admin()
	adminName := ""
	if admin != nil {
		adminName = admin.Username()
	}

	export := RosterYAML{}
	for _, name := range s.roster.Snapshot() {
		export.Users = append(export.Users, RosterEntryYAML{
			Username: name,
			Admin:    name != "" && name == adminName,
		})
	}
	export.Count = len(export.Users)

	data, err := yaml.Marshal(&export)
	if err != nil {
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("lobbychat_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("lobbychat_connections_active", "Current open connections.", "gauge",
		m.ActiveConnections.Load())
	write("lobbychat_connections_total", "Lifetime connections accepted.", "counter",
		m.TotalConnections.Load())
	write("lobbychat_disconnects_total", "Total client disconnects.", "counter",
		m.Disconnects.Load())

	write("lobbychat_joined_sessions", "Currently joined sessions.", "gauge",
		int64(s.roster.Len()))
	write("lobbychat_joins_total", "Successful join handshakes.", "counter",
		m.Joins.Load())
	write("lobbychat_joins_rejected_total", "Rejected join attempts.", "counter",
		m.RejectedJoins.Load())

	write("lobbychat_broadcasts_total", "Public lines relayed.", "counter",
		m.BroadcastMessages.Load())
	write("lobbychat_private_messages_total", "Private messages delivered.", "counter",
		m.PrivateMessages.Load())
	write("lobbychat_game_starts_total", "Admin game-start broadcasts.", "counter",
		m.GameStarts.Load())
	write("lobbychat_delivery_failures_total", "Failed writes to recipient sinks.", "counter",
		m.DeliveryFailures.Load())
	write("lobbychat_malformed_lines_total", "Connections dropped for protocol violations.", "counter",
		m.MalformedLines.Load())
}

package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime connections accepted (TCP + WebSocket)
	ActiveConnections atomic.Int64 // current open connections
	Disconnects       atomic.Int64 // total client disconnects (clean + unclean)

	// Handshake counters
	Joins         atomic.Int64 // successful #NEWUSER handshakes
	RejectedJoins atomic.Int64 // rejected join attempts (blank, reserved, duplicate)

	// Relay counters
	BroadcastMessages atomic.Int64 // public lines relayed (incl. private fallbacks)
	PrivateMessages   atomic.Int64 // private messages delivered
	GameStarts        atomic.Int64 // admin game-start broadcasts
	DeliveryFailures  atomic.Int64 // failed writes to one recipient's sink
	MalformedLines    atomic.Int64 // connections dropped for protocol violations
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all metrics as a
// serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	Disconnects       int64 `json:"disconnects"`

	Joins         int64 `json:"joins"`
	RejectedJoins int64 `json:"rejected_joins"`

	BroadcastMessages int64 `json:"broadcast_messages"`
	PrivateMessages   int64 `json:"private_messages"`
	GameStarts        int64 `json:"game_starts"`
	DeliveryFailures  int64 `json:"delivery_failures"`
	MalformedLines    int64 `json:"malformed_lines"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		Disconnects:       m.Disconnects.Load(),
		Joins:             m.Joins.Load(),
		RejectedJoins:     m.RejectedJoins.Load(),
		BroadcastMessages: m.BroadcastMessages.Load(),
		PrivateMessages:   m.PrivateMessages.Load(),
		GameStarts:        m.GameStarts.Load(),
		DeliveryFailures:  m.DeliveryFailures.Load(),
		MalformedLines:    m.MalformedLines.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"joins", s.Joins,
		"rejected_joins", s.RejectedJoins,
		"broadcasts", s.BroadcastMessages,
		"private_msgs", s.PrivateMessages,
		"delivery_failures", s.DeliveryFailures,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}

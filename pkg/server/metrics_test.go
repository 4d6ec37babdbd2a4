package server

import (
	"encoding/json"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.TotalConnections.Add(3)
	m.ActiveConnections.Add(2)
	m.Joins.Add(2)
	m.RejectedJoins.Add(1)
	m.BroadcastMessages.Add(5)
	m.DeliveryFailures.Add(1)

	s := m.Snapshot()
	if s.TotalConnections != 3 || s.ActiveConnections != 2 {
		t.Errorf("connection counters = %d/%d, want 3/2", s.TotalConnections, s.ActiveConnections)
	}
	if s.Joins != 2 || s.RejectedJoins != 1 {
		t.Errorf("join counters = %d/%d, want 2/1", s.Joins, s.RejectedJoins)
	}
	if s.BroadcastMessages != 5 || s.DeliveryFailures != 1 {
		t.Errorf("relay counters = %d/%d, want 5/1", s.BroadcastMessages, s.DeliveryFailures)
	}
}

func TestMetricsJSON(t *testing.T) {
	m := NewMetrics()
	m.Joins.Add(1)

	var decoded MetricsSnapshot
	if err := json.Unmarshal([]byte(m.JSON()), &decoded); err != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", err)
	}
	if decoded.Joins != 1 {
		t.Errorf("decoded Joins = %d, want 1", decoded.Joins)
	}
}

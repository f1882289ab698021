package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSONShape(t *testing.T) {
	// /health/db consumers (deploy checks, the admin dashboard) rely on
	// these exact field names.
	stats := PoolStats{
		TotalConns:      4,
		IdleConns:       3,
		AcquiredConns:   1,
		MaxConns:        25,
		AcquireCount:    812,
		AcquireDuration: "250ms",
		Healthy:         true,
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration", "healthy"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if m["healthy"] != true {
		t.Error("expected healthy true")
	}
	if m["acquire_duration"] != "250ms" {
		t.Errorf("acquire_duration = %v", m["acquire_duration"])
	}
}

func TestPoolStats_UnhealthyState(t *testing.T) {
	stats := &PoolStats{MaxConns: 25, AcquireDuration: "0s"}
	if stats.Healthy {
		t.Error("expected Healthy to be false when TotalConns is 0")
	}
}

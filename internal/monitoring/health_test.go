package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHandleHealth(t *testing.T) {
	hm := NewHealthMonitor()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	hm.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy status, got %q", body["status"])
	}
}

func TestRecordGenerationPerformance(t *testing.T) {
	hm := NewHealthMonitor()

	// 10 tokens in 100ms -> 100 tok/s
	hm.RecordGeneration(10, 100*time.Millisecond)
	hm.RecordGeneration(20, 200*time.Millisecond)

	perf := hm.getHealthStatus().Performance
	if perf.TokensPerSecond < 99 || perf.TokensPerSecond > 101 {
		t.Errorf("expected ~100 tokens/sec, got %f", perf.TokensPerSecond)
	}
	if perf.AvgLatencyMs < 149 || perf.AvgLatencyMs > 151 {
		t.Errorf("expected ~150ms average latency, got %f", perf.AvgLatencyMs)
	}
	if perf.LastGeneration.IsZero() {
		t.Error("expected last generation timestamp to be set")
	}
}

func TestStatusEndpoint(t *testing.T) {
	hm := NewHealthMonitor()
	hm.RecordGeneration(5, 50*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	hm.handleStatus(rec, req)

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if status.System.NumCPU <= 0 {
		t.Error("expected system info to be populated")
	}
}

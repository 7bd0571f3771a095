package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parakeet-ml/parakeet/internal/logger"
	"github.com/parakeet-ml/parakeet/internal/metrics"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      time.Duration   `json:"uptime"`
	System      SystemInfo      `json:"system"`
	Performance PerformanceInfo `json:"performance"`
}

// SystemInfo contains process-level information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryMB     int    `json:"memory_mb"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// PerformanceInfo contains rolling generation metrics
type PerformanceInfo struct {
	TokensPerSecond float64   `json:"tokens_per_second"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"`
	P95LatencyMs    float64   `json:"p95_latency_ms"`
	TotalTokens     int64     `json:"total_tokens"`
	LastGeneration  time.Time `json:"last_generation"`
}

// PerfPoint is one completed generation run
type PerfPoint struct {
	Timestamp time.Time
	Tokens    int
	Duration  time.Duration
}

// HealthMonitor serves health and metrics endpoints and keeps a rolling
// window of generation performance.
type HealthMonitor struct {
	startTime      time.Time
	server         *http.Server
	mu             sync.RWMutex
	lastGeneration time.Time
	perfHistory    []PerfPoint
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		startTime:   time.Now(),
		perfHistory: make([]PerfPoint, 0),
	}
}

// Start serves the health and metrics endpoints until Stop is called.
func (hm *HealthMonitor) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", hm.handleHealth)
	mux.HandleFunc("/healthz", hm.handleHealth) // Kubernetes compatibility
	mux.HandleFunc("/status", hm.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	hm.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Log.Info("health monitor starting", "addr", addr)
	return hm.server.ListenAndServe()
}

// Stop shuts the endpoint server down
func (hm *HealthMonitor) Stop(ctx context.Context) error {
	if hm.server != nil {
		return hm.server.Shutdown(ctx)
	}
	return nil
}

// RecordGeneration records one completed generation run.
func (hm *HealthMonitor) RecordGeneration(tokens int, duration time.Duration) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	now := time.Now()
	hm.lastGeneration = now

	hm.perfHistory = append(hm.perfHistory, PerfPoint{
		Timestamp: now,
		Tokens:    tokens,
		Duration:  duration,
	})

	// Keep only the last 1000 points
	if len(hm.perfHistory) > 1000 {
		hm.perfHistory = hm.perfHistory[1:]
	}

	if duration > 0 {
		tps := float64(tokens) / duration.Seconds()
		if tps < 1.0 {
			logger.Log.Warn("low generation throughput", "tokens_per_sec", tps)
		}
	}
}

func (hm *HealthMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := hm.getHealthStatus()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    status.Status,
		"timestamp": status.Timestamp.Format(time.RFC3339),
	})
}

func (hm *HealthMonitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := hm.getHealthStatus()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (hm *HealthMonitor) getHealthStatus() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	return HealthStatus{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Uptime:      time.Since(hm.startTime),
		System:      hm.getSystemInfo(),
		Performance: hm.calculatePerformanceInfo(),
	}
}

func (hm *HealthMonitor) getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		MemoryMB:     int(m.Sys / 1024 / 1024),
		MemoryUsedMB: int(m.Alloc / 1024 / 1024),
	}
}

func (hm *HealthMonitor) calculatePerformanceInfo() PerformanceInfo {
	info := PerformanceInfo{
		TotalTokens:    metrics.TotalTokens(),
		LastGeneration: hm.lastGeneration,
	}
	if len(hm.perfHistory) == 0 {
		return info
	}

	var totalTokens int
	var totalDuration time.Duration
	latencies := make([]float64, 0, len(hm.perfHistory))

	for _, point := range hm.perfHistory {
		totalTokens += point.Tokens
		totalDuration += point.Duration
		latencies = append(latencies, float64(point.Duration.Nanoseconds())/1e6)
	}

	sort.Float64s(latencies)
	p95Index := int(float64(len(latencies)) * 0.95)
	if p95Index >= len(latencies) {
		p95Index = len(latencies) - 1
	}

	info.AvgLatencyMs = float64(totalDuration.Nanoseconds()) / float64(len(hm.perfHistory)) / 1e6
	info.P95LatencyMs = latencies[p95Index]
	if totalDuration > 0 {
		info.TokensPerSecond = float64(totalTokens) / totalDuration.Seconds()
	}
	return info
}

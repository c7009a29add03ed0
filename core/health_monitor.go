package core

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthCheck is the result of one component probe.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms"`
}

type SystemInfo struct {
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	HeapAllocMB  uint64 `json:"heap_alloc_mb"`
}

// ProcessingStats aggregates operation outcomes since start.
type ProcessingStats struct {
	TotalProcessed int            `json:"total_processed"`
	SuccessRate    float64        `json:"success_rate"`
	AverageTime    float64        `json:"average_time_seconds"`
	LastProcessed  string         `json:"last_processed_time,omitempty"`
	Operations     map[string]int `json:"operations"`
	CommonErrors   []ErrorStat    `json:"common_errors"`
}

type ErrorStat struct {
	Error string `json:"error"`
	Count int    `json:"count"`
}

// CheckFunc probes one dependency; a nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthMonitor tracks component checks and operation statistics.
type HealthMonitor struct {
	started time.Time

	mu       sync.Mutex
	checks   map[string]CheckFunc
	total    int
	failed   int
	elapsed  time.Duration
	last     time.Time
	ops      map[string]int
	errCount map[string]int
}

func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		started:  time.Now(),
		checks:   make(map[string]CheckFunc),
		ops:      make(map[string]int),
		errCount: make(map[string]int),
	}
}

// Register adds a named component probe.
func (m *HealthMonitor) Register(name string, check CheckFunc) {
	m.mu.Lock()
	m.checks[name] = check
	m.mu.Unlock()
}

// RecordOperation counts one finished operation.
func (m *HealthMonitor) RecordOperation(name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.elapsed += d
	m.last = time.Now()
	m.ops[name]++
	if err != nil {
		m.failed++
		m.errCount[err.Error()]++
	}
}

// Check runs every registered probe with the given timeout.
func (m *HealthMonitor) Check(ctx context.Context, timeout time.Duration) (string, map[string]HealthCheck) {
	m.mu.Lock()
	checks := make(map[string]CheckFunc, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.Unlock()

	results := make(map[string]HealthCheck, len(checks))
	status := "healthy"
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := check(cctx)
		cancel()
		hc := HealthCheck{Status: "ok", Latency: time.Since(start).Milliseconds()}
		if err != nil {
			hc.Status = "error"
			hc.Message = err.Error()
			status = "degraded"
		}
		results[name] = hc
	}
	return status, results
}

func (m *HealthMonitor) Uptime() time.Duration {
	return time.Since(m.started)
}

func (m *HealthMonitor) Stats() ProcessingStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ProcessingStats{
		TotalProcessed: m.total,
		Operations:     make(map[string]int, len(m.ops)),
		CommonErrors:   []ErrorStat{},
	}
	for k, v := range m.ops {
		stats.Operations[k] = v
	}
	if m.total > 0 {
		stats.SuccessRate = float64(m.total-m.failed) / float64(m.total) * 100
		stats.AverageTime = m.elapsed.Seconds() / float64(m.total)
		stats.LastProcessed = m.last.Format(time.RFC3339)
	}
	for e, c := range m.errCount {
		stats.CommonErrors = append(stats.CommonErrors, ErrorStat{Error: e, Count: c})
	}
	sort.Slice(stats.CommonErrors, func(i, j int) bool {
		return stats.CommonErrors[i].Count > stats.CommonErrors[j].Count
	})
	if len(stats.CommonErrors) > 5 {
		stats.CommonErrors = stats.CommonErrors[:5]
	}
	return stats
}

func CollectSystemInfo() SystemInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return SystemInfo{
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		HeapAllocMB:  ms.HeapAlloc / 1024 / 1024,
	}
}

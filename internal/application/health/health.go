// Package health collects the process, dependency and traffic snapshot served
// on /health/json.
package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"promptmarket/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

type Report struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapMB        int    `json:"heapMb"`
	Goroutines    int    `json:"goroutines"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

func ping(ctx context.Context, fn func(context.Context) error) DepStatus {
	start := time.Now()
	if err := fn(ctx); err != nil {
		return DepStatus{Status: "error"}
	}
	ms := time.Since(start).Milliseconds()
	return DepStatus{Status: "connected", PingMs: &ms}
}

// Collect pings the database and Redis and reads the traffic counters kept
// by middleware.HealthMarker. Status is "ok" only when both are reachable.
func Collect(ctx context.Context, rdb *redis.Client, db DBPinger) Report {
	r := Report{
		Dependencies: map[string]DepStatus{
			"database": {Status: "disconnected"},
			"redis":    {Status: "disconnected"},
		},
		Traffic: TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"},
	}
	if db != nil {
		r.Dependencies["database"] = ping(ctx, db.PingContext)
	}

	startMs := time.Now().UnixMilli()
	if rdb != nil {
		dep := ping(ctx, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		r.Dependencies["redis"] = dep
		if dep.Status == "connected" {
			startMs = readTraffic(ctx, rdb, &r.Traffic, startMs)
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := (time.Now().UnixMilli() - startMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	r.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		HeapMB:        int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	r.Status = "issue"
	if r.Dependencies["database"].Status == "connected" && r.Dependencies["redis"].Status == "connected" {
		r.Status = "ok"
	}
	return r
}

func readTraffic(ctx context.Context, rdb *redis.Client, t *TrafficInfo, startMs int64) int64 {
	vals, _ := rdb.MGet(ctx,
		middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq).Result()
	get := func(i int) string {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				return s
			}
		}
		return ""
	}

	if s := get(4); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			startMs = v
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startMs, 0)
	}

	t.TotalRequests, _ = strconv.Atoi(get(0))
	t.FailedCount, _ = strconv.Atoi(get(1))
	t.SuccessCount = t.TotalRequests - t.FailedCount
	if t.TotalRequests > 0 {
		t.SuccessRate = strconv.FormatFloat(float64(t.SuccessCount)/float64(t.TotalRequests)*100, 'f', 1, 64)
	}
	sum, _ := strconv.ParseFloat(get(2), 64)
	if n, _ := strconv.Atoi(get(3)); n > 0 {
		t.AvgResponseTime = strconv.FormatFloat(sum/float64(n), 'f', 2, 64)
	}
	if s := get(5); s != "" {
		var last map[string]interface{}
		_ = json.Unmarshal([]byte(s), &last)
		t.LastRequest = last
	}
	return startMs
}

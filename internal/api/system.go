package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemInfo is the /api/v1/system response.
type SystemInfo struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Bridge        BridgeMetrics  `json:"bridge"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// BridgeMetrics summarises the device inventory and poll state.
type BridgeMetrics struct {
	Devices       int    `json:"devices"`
	Online        int    `json:"online"`
	Polled        int    `json:"polled"`
	Governors     int    `json:"governors"`
	LastPoll      string `json:"last_poll,omitempty"`
	SinceLastPoll int64  `json:"seconds_since_last_poll,omitempty"`
	HistoryStored bool   `json:"history_stored"`
}

// handleSystem returns runtime and bridge statistics.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	info := SystemInfo{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Bridge: BridgeMetrics{
			Governors:     len(s.bridge.Governance()),
			HistoryStored: s.history != nil,
		},
	}

	for _, d := range s.bridge.Devices() {
		info.Bridge.Devices++
		if d.Online {
			info.Bridge.Online++
		}
		if _, ok := s.bridge.LastSnapshot(d.ID); ok {
			info.Bridge.Polled++
		}
	}
	if last := s.bridge.LastPoll(); !last.IsZero() {
		info.Bridge.LastPoll = last.UTC().Format(time.RFC3339)
		info.Bridge.SinceLastPoll = int64(time.Since(last).Seconds())
	}

	writeJSON(w, http.StatusOK, info)
}

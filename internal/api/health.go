package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"codescope/internal/version"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	Storage   *StorageHealthInfo `json:"storage,omitempty"`
	Memory    *MemoryHealthInfo  `json:"memory"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// StorageHealthInfo contains cache database information
type StorageHealthInfo struct {
	DatabasePath  string `json:"databasePath"`
	CachedASTs    int64  `json:"cachedAsts"`
	SnapshotCount int    `json:"snapshotCount"`
}

// MemoryHealthInfo contains memory usage information
type MemoryHealthInfo struct {
	AllocMB      float64 `json:"allocMb"`
	SysMB        float64 `json:"sysMb"`
	NumGC        uint32  `json:"numGc"`
	NumGoroutine int     `json:"numGoroutine"`
}

// handleHealth reports liveness plus the state of the cache database. A
// database that cannot be read degrades the status to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Info(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Memory:    memoryInfo(),
	}

	stats, err := s.engine.CacheStats(ctx)
	if err != nil {
		response.Status = "degraded"
		response.Warnings = append(response.Warnings, "Could not read cache database: "+err.Error())
	} else {
		info := &StorageHealthInfo{
			DatabasePath:  stats.Database,
			SnapshotCount: stats.Snapshots,
		}
		if stats.Persistent != nil {
			info.CachedASTs = stats.Persistent.Entries
		}
		response.Storage = info
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	WriteJSON(w, response, statusCode)
}

func memoryInfo() *MemoryHealthInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return &MemoryHealthInfo{
		AllocMB:      float64(memStats.Alloc) / 1024 / 1024,
		SysMB:        float64(memStats.Sys) / 1024 / 1024,
		NumGC:        memStats.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
	}
}

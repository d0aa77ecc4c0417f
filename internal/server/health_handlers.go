package server

import (
	"net/http"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Uptime      string                 `json:"uptime"`
	Database    string                 `json:"database"`
	Storage     string                 `json:"storage"`
	Songs       int                    `json:"songCount"`
	StoredSongs int                    `json:"storedSongCount"`
	QueueLength int                    `json:"queueLength"`
	Listeners   int                    `json:"playerListeners"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (ms *MusicServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &HealthStatus{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Uptime:      time.Since(ms.startedAt).Round(time.Second).String(),
		Database:    "ok",
		Storage:     "ok",
		Songs:       ms.library.Len(),
		QueueLength: ms.queue.Len(),
		Listeners:   ms.playerState.Subscribers(),
		Details:     make(map[string]interface{}),
	}

	if err := ms.checkDatabaseHealth(); err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details["database_error"] = err.Error()
	} else if ms.db != nil {
		if count, err := ms.db.CountSongs(); err != nil {
			health.Details["song_count_error"] = err.Error()
		} else {
			health.StoredSongs = count
		}
	}

	if err := ms.payloads.Check(); err != nil {
		health.Status = "unhealthy"
		health.Storage = "error"
		health.Details["storage_error"] = err.Error()
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	ms.respondJSON(w, status, health)
}

// checkDatabaseHealth pings the database when one is attached
func (ms *MusicServer) checkDatabaseHealth() error {
	if ms.db == nil {
		return nil
	}
	return ms.db.Ping()
}

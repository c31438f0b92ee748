package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tuya-bridge/internal/bridge"
)

// History limits for GET /api/v1/devices/{id}.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// deviceSummary is one entry of the device list.
type deviceSummary struct {
	bridge.Device
	LastPolled *time.Time `json:"last_polled,omitempty"`
}

// historyEntry is one persisted record.
type historyEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Status    json.RawMessage `json:"status"`
	Source    string          `json:"source"`
}

// handleListDevices returns the device inventory loaded at startup.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.bridge.Devices()
	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		sum := deviceSummary{Device: d}
		if snap, ok := s.bridge.LastSnapshot(d.ID); ok {
			ts := snap.PollTimestamp
			sum.LastPolled = &ts
		}
		out = append(out, sum)
	}

	resp := map[string]any{"devices": out, "count": len(out)}
	if last := s.bridge.LastPoll(); !last.IsZero() {
		resp["last_poll"] = last
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetDevice returns one device with its last snapshot and, when a
// database is configured, its most recent persisted records and the total
// number stored.
//
// Query parameters:
//   - limit: number of history records (default 20, max 500)
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, ok := s.bridge.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	resp := map[string]any{"device": dev}
	if snap, ok := s.bridge.LastSnapshot(id); ok {
		resp["snapshot"] = snap
	}

	if s.history != nil {
		records, err := s.history.RecentDeviceRecords(r.Context(), id, limit)
		if err != nil {
			s.logger.Error("reading device history", "device_id", id, "error", err)
			writeInternalError(w, "failed to read device history")
			return
		}
		history := make([]historyEntry, 0, len(records))
		for _, rec := range records {
			history = append(history, historyEntry{
				ID:        rec.ID,
				Timestamp: rec.Timestamp,
				Status:    rec.Status,
				Source:    rec.Source,
			})
		}
		total, err := s.history.CountDeviceRecords(r.Context(), id)
		if err != nil {
			s.logger.Error("counting device history", "device_id", id, "error", err)
			writeInternalError(w, "failed to read device history")
			return
		}
		resp["history"] = history
		resp["history_total"] = total
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGovernance returns each governing device, its last reported switch
// state and the devices whose logging it controls.
func (s *Server) handleGovernance(w http.ResponseWriter, _ *http.Request) {
	governors := s.bridge.Governance()
	if governors == nil {
		governors = []bridge.GovernorStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"governors": governors})
}

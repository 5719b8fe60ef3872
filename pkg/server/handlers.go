package server

import (
	"net/http"
	"strings"
	"time"
)

// healthResponse reports the gateway's health. Only the database
// connection can make it degraded; the live session count and the
// batch scheduler state are reported for information.
type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database"`
	LiveSessions  int    `json:"live_sessions"`
	BatchState    string `json:"batch_state"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"

	dbHealth, err := s.db.Health(r.Context())
	if err != nil || !dbHealth.Healthy {
		dbStatus = "degraded"
		status = "degraded"
	}

	resp := healthResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Database:      dbStatus,
		LiveSessions:  s.manager.Count(),
		BatchState:    string(s.scheduler.State()),
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleDevice serves GET /api/devices/{id} and GET /api/devices/{id}/pet.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "only GET is supported")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	deviceID, sub, _ := strings.Cut(rest, "/")
	if deviceID == "" {
		writeJSONError(w, http.StatusBadRequest, "device id is required")
		return
	}

	switch sub {
	case "":
		device, err := s.repos.Devices.Get(r.Context(), deviceID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "device not found")
			return
		}
		writeJSON(w, http.StatusOK, device)

	case "pet":
		p, err := s.repos.Pets.Get(r.Context(), deviceID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "pet not found")
			return
		}
		writeJSON(w, http.StatusOK, p)

	default:
		writeJSONError(w, http.StatusNotFound, "unknown device sub-resource")
	}
}

func (s *Server) handlePendingSubmissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "only GET is supported")
		return
	}
	deviceID := r.URL.Query().Get("deviceId")
	pending, err := s.repos.Submissions.ListPending(r.Context(), deviceID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list pending submissions")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// handleBatchTrigger invokes the batch submitter synchronously and
// returns its summary.
func (s *Server) handleBatchTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}
	batchRunsTotal.WithLabelValues("manual").Inc()

	summary, err := s.scheduler.TriggerManual(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

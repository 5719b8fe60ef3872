// Package server implements the gateway's HTTP surface: a health
// endpoint, Prometheus metrics, read-only device and pet projections,
// a manual batch-submit trigger, and the WebSocket upgrade entry point
// for incoming device sessions.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/walmagochi/gateway/pkg/batch"
	"github.com/walmagochi/gateway/pkg/database"
	"github.com/walmagochi/gateway/pkg/pet"
	"github.com/walmagochi/gateway/pkg/session"
)

var (
	sessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sessions_opened_total",
		Help: "Total WebSocket sessions accepted.",
	})
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_batch_runs_total",
		Help: "Batch submitter runs started through the HTTP trigger, labeled by trigger source; cron-scheduled runs are not counted.",
	}, []string{"trigger"})
)

// Server wires the REST, health, and WebSocket surfaces together over
// one HTTP listener (Mux); metrics are served by MetricsMux on a
// separate listener.
type Server struct {
	db        *database.Client
	repos     *database.Repositories
	pets      *pet.Orchestrator
	scheduler *batch.Scheduler
	manager   *session.Manager
	handlers  *session.Handlers
	sessCfg   session.Config
	upgrader  websocket.Upgrader
	logger    *log.Logger
	startedAt time.Time
}

// New builds a Server. sessCfg bounds every accepted WebSocket
// session's frame size and keep-alive cadence.
func New(db *database.Client, repos *database.Repositories, pets *pet.Orchestrator, scheduler *batch.Scheduler, handlers *session.Handlers, sessCfg session.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags)
	}
	return &Server{
		db:        db,
		repos:     repos,
		pets:      pets,
		scheduler: scheduler,
		manager:   handlers.Manager,
		handlers:  handlers,
		sessCfg:   sessCfg,
		upgrader:  websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Mux builds the HTTP handler tree.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/devices/", s.handleDevice)
	mux.HandleFunc("/api/submissions/pending", s.handlePendingSubmissions)
	mux.HandleFunc("/api/batch/trigger", s.handleBatchTrigger)

	return mux
}

// MetricsMux serves Prometheus metrics on their own handler tree, so
// the scrape port can be bound separately from the device-facing
// listener (cfg.MetricsAddr).
func (s *Server) MetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	sessionsOpened.Inc()

	sess := session.New(conn, s.sessCfg, s.logger)
	go sess.WriteLoop()

	session.Welcome(sess)
	sess.ReadLoop(s.handlers.Dispatch)
	s.manager.Unbind(sess.DeviceID(), sess)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

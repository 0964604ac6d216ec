// Package statusapi is the orchestrator's read-only HTTP surface:
// fleet status, per-node detail, and Prometheus metrics, grounded on
// the chi-router status/health pattern used across the pack.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbouey/chimera/internal/analytics"
	"github.com/jbouey/chimera/internal/metrics"
	"github.com/jbouey/chimera/internal/registry"
)

// Server is the orchestrator's status HTTP server.
type Server struct {
	Router    *chi.Mux
	registry  *registry.Registry
	analytics *analytics.Store
	startedAt time.Time
}

// NewServer builds the router, mounting health, metrics, and fleet
// status endpoints.
func NewServer(reg *registry.Registry, store *analytics.Store) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		registry:  reg,
		analytics: store,
		startedAt: time.Now(),
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.Recoverer)

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/status", s.handleStatus)
	s.Router.Get("/fleet", s.handleFleet)
	s.Router.Get("/fleet/{nodeID}", s.handleNode)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	ConnectedAgents int    `json:"connected_agents"`
	DriftedAgents   int    `json:"drifted_agents"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.startedAt)
	metrics.ConnectedAgents.Set(float64(s.registry.ConnectedCount()))
	resp := statusResponse{
		Status:          "ok",
		Uptime:          humanize.RelTime(s.startedAt, time.Now(), "ago", "from now"),
		ConnectedAgents: s.registry.ConnectedCount(),
		DriftedAgents:   len(s.registry.GetDrifted()),
	}
	respond(w, http.StatusOK, resp)
}

type fleetNodeResponse struct {
	NodeID       string  `json:"node_id"`
	Status       string  `json:"status"`
	LastSeen     string  `json:"last_seen"`
	RiskScore    float64 `json:"risk_score"`
	RiskLevel    string  `json:"risk_level"`
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	agents := s.registry.AllAgents()
	out := make([]fleetNodeResponse, 0, len(agents))
	for _, rec := range agents {
		risk := s.analytics.AssessRisk(rec.NodeID, now)
		if rec.DriftReport != nil {
			metrics.DriftSeverity.WithLabelValues(rec.NodeID).Set(metrics.SeverityValue(rec.DriftReport.Severity))
		}
		metrics.RiskScore.WithLabelValues(rec.NodeID).Set(risk.Score)
		out = append(out, fleetNodeResponse{
			NodeID:    rec.NodeID,
			Status:    rec.Status.String(),
			LastSeen:  humanize.Time(rec.LastSeen),
			RiskScore: risk.Score,
			RiskLevel: risk.Level.String(),
		})
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	rec, ok := s.registry.GetAgent(nodeID)
	if !ok {
		respondError(w, http.StatusNotFound, "node not found")
		return
	}
	risk := s.analytics.AssessRisk(nodeID, time.Now())
	respond(w, http.StatusOK, map[string]interface{}{
		"node_id":     rec.NodeID,
		"status":      rec.Status.String(),
		"last_seen":   humanize.Time(rec.LastSeen),
		"drift":       rec.DriftReport,
		"health":      rec.Health,
		"risk_score":  risk.Score,
		"risk_level":  risk.Level.String(),
	})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

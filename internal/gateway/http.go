package gateway

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/SkynetNext/flow-gateway/internal/flow"
	"github.com/SkynetNext/flow-gateway/internal/logger"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// flowsResponse is the body of GET /flows
type flowsResponse struct {
	Capacity  int          `json:"capacity"`
	Available int          `json:"available"`
	Count     int          `json:"count"`
	Flows     []flow.Entry `json:"flows"`
}

// statsResponse is the body of GET /flows/stats
type statsResponse struct {
	Capacity  int    `json:"capacity"`
	InUse     int    `json:"in_use"`
	Available int    `json:"available"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Releases  uint64 `json:"releases"`
}

func (g *Gateway) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", g.healthHandler)
	mux.HandleFunc("/readyz", g.readyHandler)
	mux.Handle("/metrics", promhttp.Handler()) // Prometheus metrics endpoint
	mux.HandleFunc("GET /flows", g.flowsHandler)
	mux.HandleFunc("DELETE /flows", g.resetFlowsHandler)
	mux.HandleFunc("GET /flows/stats", g.statsHandler)
	mux.HandleFunc("GET /events/recent", g.recentEventsHandler)
	return mux
}

// healthHandler handles liveness probes
func (g *Gateway) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler handles readiness probe requests
func (g *Gateway) readyHandler(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&g.draining) == 1 {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// flowsHandler lists flows, least recently active first within each shard.
// ?limit=N caps the number returned.
func (g *Gateway) flowsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	snapshot := g.table.Snapshot(limit)
	writeJSON(w, http.StatusOK, flowsResponse{
		Capacity:  g.table.Capacity(),
		Available: g.table.Available(),
		Count:     len(snapshot),
		Flows:     snapshot,
	})
}

// resetFlowsHandler drops every flow without emitting events
func (g *Gateway) resetFlowsHandler(w http.ResponseWriter, r *http.Request) {
	n := g.table.Len()
	g.table.Reset()
	g.refreshTableMetrics()
	logger.L.Info("flow table reset", zap.Int("dropped", n))
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) statsHandler(w http.ResponseWriter, r *http.Request) {
	st := g.table.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Capacity:  g.table.Capacity(),
		InUse:     g.table.Len(),
		Available: g.table.Available(),
		Hits:      st.Hits,
		Misses:    st.Misses,
		Evictions: st.Evictions,
		Releases:  st.Releases,
	})
}

// recentEventsHandler returns the newest flow events kept in Redis
func (g *Gateway) recentEventsHandler(w http.ResponseWriter, r *http.Request) {
	if g.redisClient == nil {
		http.Error(w, "flow events are not stored", http.StatusNotFound)
		return
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	recent, err := g.redisClient.Recent(r.Context(), limit)
	if err != nil {
		logger.WarnWithTrace(r.Context(), "failed to load recent flow events", zap.Error(err))
		http.Error(w, "event store unavailable", http.StatusBadGateway)
		return
	}
	if recent == nil {
		recent = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, recent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Debug("failed to write response", zap.Error(err))
	}
}

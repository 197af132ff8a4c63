// Package api exposes the gateway over HTTP: the generation endpoints
// callers use and the read-only operator endpoints behind /admin.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/skathuria/modelgw/pkg/backend"
	"github.com/skathuria/modelgw/pkg/breaker"
	"github.com/skathuria/modelgw/pkg/config"
	"github.com/skathuria/modelgw/pkg/gateway"
	"github.com/skathuria/modelgw/pkg/ledger"
	"github.com/skathuria/modelgw/pkg/storage"
)

// Server wires the facade and the operator views together.
type Server struct {
	gw       *gateway.Gateway
	ledger   *ledger.Ledger
	breakers *breaker.Registry
	store    storage.Store // nil disables log/stat endpoints
	cfg      *config.Store
}

// NewServer creates the HTTP surface.
func NewServer(gw *gateway.Gateway, l *ledger.Ledger, b *breaker.Registry, store storage.Store, cfg *config.Store) *Server {
	return &Server{gw: gw, ledger: l, breakers: b, store: store, cfg: cfg}
}

// RegisterRoutes registers all endpoints on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/generate", s.handleGenerate)
	mux.HandleFunc("/v1/generate/batch", s.handleBatchGenerate)

	mux.HandleFunc("/admin/budget", s.handleBudget)
	mux.HandleFunc("/admin/breakers", s.handleBreakers)
	mux.HandleFunc("/admin/logs", s.handleLogs)
	mux.HandleFunc("/admin/usage", s.handleUsageStats)
	mux.HandleFunc("/admin/costs", s.handleCostStats)
	mux.HandleFunc("/admin/health", s.handleHealth)
}

// generateRequest is the JSON shape of a generation call. Callers address
// backends either by logical intent (resolved against the configured
// chains) or by an explicit backend + fallback list.
type generateRequest struct {
	Prompt    string          `json:"prompt"`
	Intent    string          `json:"intent,omitempty"`
	Backend   string          `json:"backend,omitempty"`
	Fallbacks []string        `json:"fallbacks,omitempty"`
	Options   backend.Options `json:"options"`
	CallerID  string          `json:"caller_id,omitempty"`
	Moderate  bool            `json:"moderate,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	genReq, err := s.toGenerationRequest(req)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := s.gw.Generate(r.Context(), genReq)
	if err != nil {
		status, msg := errorStatus(err)
		respondJSON(w, status, map[string]string{"error": msg})
		return
	}

	respondJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Requests []generateRequest `json:"requests"`
}

func (s *Server) handleBatchGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	genReqs := make([]gateway.GenerationRequest, 0, len(req.Requests))
	for i, item := range req.Requests {
		genReq, err := s.toGenerationRequest(item)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("item %d: %v", i, err),
			})
			return
		}
		genReqs = append(genReqs, genReq)
	}

	// detailed=true returns one slot per input with its error; the default
	// view drops failed items.
	if r.URL.Query().Get("detailed") == "true" {
		outcomes := s.gw.BatchGenerateDetailed(r.Context(), genReqs)
		type slot struct {
			Result *gateway.GenerationResult `json:"result,omitempty"`
			Error  string                    `json:"error,omitempty"`
		}
		slots := make([]slot, len(outcomes))
		for i, o := range outcomes {
			slots[i].Result = o.Result
			if o.Err != nil {
				slots[i].Error = o.Err.Error()
			}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"results": slots, "count": len(slots)})
		return
	}

	results := s.gw.BatchGenerate(r.Context(), genReqs)
	respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

// toGenerationRequest resolves intent chains and builds the core request.
func (s *Server) toGenerationRequest(req generateRequest) (gateway.GenerationRequest, error) {
	primary := req.Backend
	fallbacks := req.Fallbacks

	if req.Intent != "" {
		cfg := s.cfg.Get()
		if cfg == nil {
			return gateway.GenerationRequest{}, fmt.Errorf("configuration unavailable")
		}
		chain, ok := cfg.Chains[req.Intent]
		if !ok || len(chain) == 0 {
			return gateway.GenerationRequest{}, fmt.Errorf("unknown intent %q", req.Intent)
		}
		primary = chain[0]
		fallbacks = chain[1:]
	}
	if primary == "" {
		return gateway.GenerationRequest{}, fmt.Errorf("intent or backend is required")
	}

	return gateway.GenerationRequest{
		Prompt:    req.Prompt,
		Primary:   primary,
		Fallbacks: fallbacks,
		Options:   req.Options,
		CallerID:  req.CallerID,
		Moderate:  req.Moderate,
	}, nil
}

// errorStatus maps the gateway's error taxonomy to HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, gateway.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case gateway.IsCostLimit(err):
		return http.StatusTooManyRequests, err.Error()
	case gateway.IsPolicyViolation(err):
		return http.StatusUnprocessableEntity, err.Error()
	case gateway.IsAggregateFailure(err):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "request abandoned"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.ledger.RemainingBudget())
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"breakers": s.breakers.States()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Logging not enabled"})
		return
	}

	filters := storage.LogFilters{
		CallerID: r.URL.Query().Get("caller_id"),
		Backend:  r.URL.Query().Get("backend"),
		Limit:    100,
	}
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		filters.From, _ = time.Parse(time.RFC3339, fromStr)
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		filters.To, _ = time.Parse(time.RFC3339, toStr)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logs, err := s.store.ListGenerationLogs(ctx, filters)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("Failed to get logs: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "count": len(logs)})
}

func (s *Server) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	s.handleStats(w, r, func(ctx context.Context, callerID string, from, to time.Time) (interface{}, error) {
		return s.store.GetUsageStats(ctx, callerID, from, to)
	})
}

func (s *Server) handleCostStats(w http.ResponseWriter, r *http.Request) {
	s.handleStats(w, r, func(ctx context.Context, callerID string, from, to time.Time) (interface{}, error) {
		return s.store.GetCostStats(ctx, callerID, from, to)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string, time.Time, time.Time) (interface{}, error)) {
	if s.store == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Logging not enabled"})
		return
	}

	callerID := r.URL.Query().Get("caller_id")
	from, _ := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	to, _ := time.Parse(time.RFC3339, r.URL.Query().Get("to"))

	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := fetch(ctx, callerID, from, to)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("Failed to get stats: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			health["storage"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["storage"] = "healthy"
		}
	}

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

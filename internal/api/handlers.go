package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/scenario"
	"fleetroute/internal/store"
)

// ScenariosHandler handles POST/GET /v1/scenarios
func (s *Server) ScenariosHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanSolve() {
			writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path)
			return
		}
		var in model.ScenarioIn
		if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
			sc, err := scenario.FromCSV(r.Body)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
				return
			}
			payload := model.ScenarioPayload(sc)
			in = model.ScenarioIn{Goods: payload.Goods, Warehouses: payload.Warehouses, Points: payload.Points, Capacities: payload.Capacities}
		} else if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateScenarioIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
			return
		}
		created, err := s.Store.CreateScenario(r.Context(), p.Tenant, in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create scenario failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListScenarios(r.Context(), tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List scenarios failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// GenerateScenarioHandler handles POST /v1/scenarios/generate
func (s *Server) GenerateScenarioHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanSolve() {
		writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path)
		return
	}
	var req model.GenerateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	sc := scenario.Generate(scenarioParams(req))
	payload := model.ScenarioPayload(sc)
	in := model.ScenarioIn{
		Name:       req.Name,
		Goods:      payload.Goods,
		Warehouses: payload.Warehouses,
		Points:     payload.Points,
		Capacities: payload.Capacities,
	}
	created, err := s.Store.CreateScenario(r.Context(), p.Tenant, in)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create scenario failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func scenarioParams(req model.GenerateRequest) scenario.Params {
	p := scenario.Params{
		DeliveryPoints: req.DeliveryPoints,
		PickupPoints:   req.PickupPoints,
		Capacities:     req.Capacities,
		Seed:           req.Seed,
	}
	for _, g := range req.Goods {
		p.Goods = append(p.Goods, opt.Good(g))
	}
	return p
}

// ScenarioByIDHandler handles GET/DELETE /v1/scenarios/{id}
func (s *Server) ScenarioByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/scenarios/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	_, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodGet:
		sc, err := s.Store.GetScenario(r.Context(), tenant, id)
		if err != nil {
			writeStoreProblem(w, r, err, "Scenario")
			return
		}
		writeJSON(w, http.StatusOK, sc)
	case http.MethodDelete:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
			return
		}
		if err := s.Store.DeleteScenario(r.Context(), tenant, id); err != nil {
			writeStoreProblem(w, r, err, "Scenario")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SolverConfigHandler returns the effective solver defaults for the tenant.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	cfg := s.effectiveConfig(r.Context(), p.Tenant)
	writeJSON(w, 200, map[string]any{"defaults": cfg})
}

func (s *Server) effectiveConfig(ctx context.Context, tenant string) model.SolverConfig {
	cfg := model.SolverConfig{PopulationSize: 50, Generations: 100, MutationRate: 0.2, TournamentSize: 3}
	saved, ok, err := s.Store.GetSolverConfig(ctx, tenant)
	if err != nil || !ok {
		return cfg
	}
	if saved.PopulationSize != 0 {
		cfg.PopulationSize = saved.PopulationSize
	}
	if saved.Generations != 0 {
		cfg.Generations = saved.Generations
	}
	if saved.MutationRate != 0 {
		cfg.MutationRate = saved.MutationRate
	}
	if saved.TournamentSize != 0 {
		cfg.TournamentSize = saved.TournamentSize
	}
	return cfg
}

// AdminSolverConfigHandler gets/sets the tenant solver config.
func (s *Server) AdminSolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/solver/config" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, _, err := s.Store.GetSolverConfig(r.Context(), p.Tenant)
		if err != nil {
			writeProblem(w, 500, "Load failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config model.SolverConfig `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSolverConfig(&body.Config); err != nil {
			writeProblem(w, 400, "Invalid config", err.Error(), r.URL.Path)
			return
		}
		if err := s.Store.SaveSolverConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), p.Tenant, req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// WebhookDeliveriesHandler lists webhook deliveries (admin).
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(405)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler re-queues one delivery (admin).
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil {
		writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}

func writeStoreProblem(w http.ResponseWriter, r *http.Request, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, what+" not found", "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, what+" lookup failed", err.Error(), r.URL.Path)
}

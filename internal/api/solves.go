package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/report"
)

// SolvesHandler handles POST/GET /v1/solves
func (s *Server) SolvesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanSolve() {
			writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path)
			return
		}
		if !s.solveLimiter.Allow() {
			metrics.RateLimited.Inc()
			writeProblem(w, http.StatusTooManyRequests, "Rate limited", "too many solve submissions", r.URL.Path)
			return
		}
		var req model.SolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSolveRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
			return
		}
		stored, err := s.Store.GetScenario(r.Context(), p.Tenant, req.ScenarioID)
		if err != nil {
			writeStoreProblem(w, r, err, "Scenario")
			return
		}
		sc, err := model.BuildScenario(&stored)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
			return
		}
		cfg := model.EngineConfig(s.effectiveConfig(r.Context(), p.Tenant), req)
		if _, err := opt.NewEngine(sc, cfg); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid solver config", err.Error(), r.URL.Path)
			return
		}
		solve := model.Solve{
			ScenarioID: req.ScenarioID,
			Status:     model.SolveQueued,
			Seed:       req.Seed,
			Config:     req.Config,
		}
		created, err := s.Store.CreateSolve(r.Context(), p.Tenant, solve)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create solve failed", err.Error(), r.URL.Path)
			return
		}
		go s.runSolve(p.Tenant, created, sc, cfg)
		writeJSON(w, http.StatusAccepted, created)
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSolves(r.Context(), tenant, status, cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List solves failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// runSolve executes the genetic search in the background, streaming progress
// through the broker and recording the terminal state.
func (s *Server) runSolve(tenant string, solve model.Solve, sc *opt.Scenario, cfg opt.Config) {
	ctx := context.Background()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("solve %s panicked: %v", solve.ID, rec)
			s.finishFailed(ctx, tenant, solve, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	solve.Status = model.SolveRunning
	if err := s.Store.UpdateSolve(ctx, tenant, solve); err != nil {
		log.Printf("solve %s: mark running: %v", solve.ID, err)
	}

	cfg.OnGeneration = func(gen int, best float64) {
		s.Broker.Publish(solve.ID, SSEEvent{Type: "progress", Data: map[string]any{
			"solveId":      solve.ID,
			"generation":   gen,
			"bestDistance": best,
		}})
	}
	eng, err := opt.NewEngine(sc, cfg)
	if err != nil {
		s.finishFailed(ctx, tenant, solve, err.Error())
		return
	}
	sol := eng.Run()

	solve.Status = model.SolveCompleted
	solve.Distance = sol.Distance
	solve.Routes = model.RoutesFrom(sol.Vehicles)
	solve.Unmet = model.UnmetFrom(sol.Unmet)
	solve.Metrics = model.MetricsFrom(sol.Metrics)
	solve.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	opt.RecordMetrics(tenant, solve.ID, sol.Metrics)
	if err := s.Store.UpdateSolve(ctx, tenant, solve); err != nil {
		log.Printf("solve %s: persist result: %v", solve.ID, err)
	}

	metrics.Solves.WithLabelValues(model.SolveCompleted).Inc()
	metrics.SolveDuration.Observe(time.Since(start).Seconds())
	metrics.SolveDistance.Observe(sol.Distance)

	s.Broker.Publish(solve.ID, SSEEvent{Type: "completed", Data: map[string]any{
		"solveId":  solve.ID,
		"distance": sol.Distance,
	}})
	s.Pub.Emit(ctx, tenant, "solve.completed", map[string]any{
		"solveId":    solve.ID,
		"scenarioId": solve.ScenarioID,
		"distance":   sol.Distance,
		"unmet":      solve.Unmet,
	})
}

func (s *Server) finishFailed(ctx context.Context, tenant string, solve model.Solve, msg string) {
	solve.Status = model.SolveFailed
	solve.Error = msg
	solve.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	if err := s.Store.UpdateSolve(ctx, tenant, solve); err != nil {
		log.Printf("solve %s: persist failure: %v", solve.ID, err)
	}
	metrics.Solves.WithLabelValues(model.SolveFailed).Inc()
	s.Broker.Publish(solve.ID, SSEEvent{Type: "failed", Data: map[string]any{
		"solveId": solve.ID,
		"error":   msg,
	}})
	s.Pub.Emit(ctx, tenant, "solve.failed", map[string]any{
		"solveId":    solve.ID,
		"scenarioId": solve.ScenarioID,
		"error":      msg,
	})
}

// SolveByIDHandler routes GET /v1/solves/{id} and its subresources:
// /report, /plot, /metrics, /events/stream, /ws.
func (s *Server) SolveByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/solves/")
	if rest == "" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	_, tenant := s.withTenant(r)

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		solve, err := s.Store.GetSolve(r.Context(), tenant, id)
		if err != nil {
			writeStoreProblem(w, r, err, "Solve")
			return
		}
		writeJSON(w, 200, solve)
	case "report":
		s.solveReport(w, r, tenant, id)
	case "plot":
		s.solvePlot(w, r, tenant, id)
	case "metrics":
		s.solveMetrics(w, r, tenant, id)
	case "events/stream":
		s.solveEvents(w, r, tenant, id)
	case "ws":
		s.SolveWSHandler(w, r, tenant, id)
	default:
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) solveReport(w http.ResponseWriter, r *http.Request, tenant, id string) {
	solve, ok := s.completedSolve(w, r, tenant, id)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.WriteText(w, &solve); err != nil {
		log.Printf("solve %s: write report: %v", id, err)
	}
}

func (s *Server) solvePlot(w http.ResponseWriter, r *http.Request, tenant, id string) {
	solve, ok := s.completedSolve(w, r, tenant, id)
	if !ok {
		return
	}
	sc, err := s.Store.GetScenario(r.Context(), tenant, solve.ScenarioID)
	if err != nil {
		writeStoreProblem(w, r, err, "Scenario")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := report.WriteSVG(w, &solve, &sc); err != nil {
		log.Printf("solve %s: write plot: %v", id, err)
	}
}

func (s *Server) solveMetrics(w http.ResponseWriter, r *http.Request, tenant, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.Store.GetSolve(r.Context(), tenant, id); err != nil {
		writeStoreProblem(w, r, err, "Solve")
		return
	}
	m, ok := opt.GetMetrics(tenant, id)
	if !ok {
		writeProblem(w, 404, "Metrics not found", "solve has not completed on this instance", r.URL.Path)
		return
	}
	writeJSON(w, 200, m)
}

func (s *Server) completedSolve(w http.ResponseWriter, r *http.Request, tenant, id string) (model.Solve, bool) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return model.Solve{}, false
	}
	solve, err := s.Store.GetSolve(r.Context(), tenant, id)
	if err != nil {
		writeStoreProblem(w, r, err, "Solve")
		return model.Solve{}, false
	}
	if solve.Status != model.SolveCompleted {
		writeProblem(w, http.StatusConflict, "Solve not completed", "status is "+solve.Status, r.URL.Path)
		return model.Solve{}, false
	}
	return solve, true
}

// solveEvents streams solve progress as Server-Sent Events.
func (s *Server) solveEvents(w http.ResponseWriter, r *http.Request, tenant, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	solve, err := s.Store.GetSolve(r.Context(), tenant, id)
	if err != nil {
		writeStoreProblem(w, r, err, "Solve")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	// A terminal solve emits nothing further; send the final state once so
	// late subscribers are not left hanging.
	if solve.Status == model.SolveCompleted || solve.Status == model.SolveFailed {
		writeSSE(w, SSEEvent{Type: solve.Status, Data: map[string]any{
			"solveId":  id,
			"distance": solve.Distance,
			"error":    solve.Error,
		}})
		flusher.Flush()
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case evt, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, evt)
			flusher.Flush()
			if evt.Type == "completed" || evt.Type == "failed" {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, evt SSEEvent) {
	data, _ := json.Marshal(evt.Data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"fleetroute/internal/model"
	"fleetroute/internal/store"
	"fleetroute/internal/webhooks"
)

func doJSON(t *testing.T, h http.HandlerFunc, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t1")
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func validScenario() model.ScenarioIn {
	return model.ScenarioIn{
		Goods:      []string{"oranges"},
		Warehouses: []model.PointIn{{X: 0, Y: 0, Label: "Depot"}},
		Points: []model.PointIn{
			{X: 10, Y: 0, Label: "Store A", Demands: map[string]int{"oranges": 120}},
			{X: 5, Y: 8, Label: "Farm B", Demands: map[string]int{"oranges": -40}},
		},
		Capacities: []int{1000},
	}
}

func createScenario(t *testing.T, s *Server) model.Scenario {
	t.Helper()
	rr := doJSON(t, s.ScenariosHandler, http.MethodPost, "/v1/scenarios", "admin", validScenario())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create scenario: %d %s", rr.Code, rr.Body.String())
	}
	var sc model.Scenario
	if err := json.Unmarshal(rr.Body.Bytes(), &sc); err != nil {
		t.Fatal(err)
	}
	return sc
}

func TestScenarioCreateAndGet(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)
	if sc.ID == "" || sc.TenantID != "t1" {
		t.Fatalf("bad scenario: %+v", sc)
	}

	rr := doJSON(t, s.ScenarioByIDHandler, http.MethodGet, "/v1/scenarios/"+sc.ID, "viewer", nil)
	if rr.Code != 200 {
		t.Fatalf("get: %d %s", rr.Code, rr.Body.String())
	}
}

func TestScenarioCreateValidation(t *testing.T) {
	s := NewTestServer()
	bad := validScenario()
	bad.Capacities = nil
	rr := doJSON(t, s.ScenariosHandler, http.MethodPost, "/v1/scenarios", "admin", bad)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var prob Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &prob); err != nil || prob.Status != 400 {
		t.Fatalf("expected problem body, got %s", rr.Body.String())
	}
}

func TestScenarioCreateFromCSV(t *testing.T) {
	s := NewTestServer()
	csv := "kind,x,y,label,data\n" +
		"warehouse,10,10,Depot,\n" +
		"delivery,30,40,Store,oranges=100\n" +
		"vehicle,,,Truck,500\n"
	req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Tenant-Id", "t1")
	rr := httptest.NewRecorder()
	s.ScenariosHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("csv create: %d %s", rr.Code, rr.Body.String())
	}
	var sc model.Scenario
	_ = json.Unmarshal(rr.Body.Bytes(), &sc)
	if len(sc.Warehouses) != 1 || len(sc.Points) != 1 || len(sc.Capacities) != 1 {
		t.Fatalf("csv scenario shape wrong: %+v", sc)
	}
}

func TestScenarioRBAC(t *testing.T) {
	s := NewTestServer()
	if rr := doJSON(t, s.ScenariosHandler, http.MethodPost, "/v1/scenarios", "viewer", validScenario()); rr.Code != 403 {
		t.Fatalf("viewer create should be forbidden, got %d", rr.Code)
	}
	sc := createScenario(t, s)
	if rr := doJSON(t, s.ScenarioByIDHandler, http.MethodDelete, "/v1/scenarios/"+sc.ID, "planner", nil); rr.Code != 403 {
		t.Fatalf("planner delete should be forbidden, got %d", rr.Code)
	}
	if rr := doJSON(t, s.ScenarioByIDHandler, http.MethodDelete, "/v1/scenarios/"+sc.ID, "admin", nil); rr.Code != 204 {
		t.Fatalf("admin delete: %d", rr.Code)
	}
}

func TestGenerateScenario(t *testing.T) {
	s := NewTestServer()
	rr := doJSON(t, s.GenerateScenarioHandler, http.MethodPost, "/v1/scenarios/generate",
		"planner", model.GenerateRequest{DeliveryPoints: 5, PickupPoints: 3, Seed: 9})
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
	var sc model.Scenario
	_ = json.Unmarshal(rr.Body.Bytes(), &sc)
	if len(sc.Points) != 8 || len(sc.Warehouses) != 5 {
		t.Fatalf("generated shape wrong: %d points, %d warehouses", len(sc.Points), len(sc.Warehouses))
	}
}

func waitForStatus(t *testing.T, s *Server, id, want string) model.Solve {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rr := doJSON(t, s.SolveByIDHandler, http.MethodGet, "/v1/solves/"+id, "admin", nil)
		if rr.Code != 200 {
			t.Fatalf("get solve: %d %s", rr.Code, rr.Body.String())
		}
		var solve model.Solve
		if err := json.Unmarshal(rr.Body.Bytes(), &solve); err != nil {
			t.Fatal(err)
		}
		if solve.Status == want {
			return solve
		}
		if solve.Status == model.SolveFailed && want != model.SolveFailed {
			t.Fatalf("solve failed: %s", solve.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("solve %s never reached status %q", id, want)
	return model.Solve{}
}

func submitSolve(t *testing.T, s *Server, req model.SolveRequest) model.Solve {
	t.Helper()
	rr := doJSON(t, s.SolvesHandler, http.MethodPost, "/v1/solves", "planner", req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit solve: %d %s", rr.Code, rr.Body.String())
	}
	var solve model.Solve
	if err := json.Unmarshal(rr.Body.Bytes(), &solve); err != nil {
		t.Fatal(err)
	}
	return solve
}

func TestSolveLifecycle(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)

	created := submitSolve(t, s, model.SolveRequest{
		ScenarioID: sc.ID,
		Seed:       7,
		Config:     model.SolverConfig{PopulationSize: 10, Generations: 10},
	})
	if created.Status != model.SolveQueued {
		t.Fatalf("fresh solve should be queued, got %q", created.Status)
	}

	done := waitForStatus(t, s, created.ID, model.SolveCompleted)
	if done.Distance <= 0 || len(done.Routes) != 1 {
		t.Fatalf("completed solve looks wrong: %+v", done)
	}
	if done.Metrics == nil || done.Metrics.Generations != 10 {
		t.Fatalf("metrics missing: %+v", done.Metrics)
	}
	if done.CompletedAt == "" {
		t.Fatal("completedAt not set")
	}
}

func TestSolveUnknownScenario(t *testing.T) {
	s := NewTestServer()
	rr := doJSON(t, s.SolvesHandler, http.MethodPost, "/v1/solves", "planner",
		model.SolveRequest{ScenarioID: "nope"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestSolveInvalidConfigRejected(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)
	rr := doJSON(t, s.SolvesHandler, http.MethodPost, "/v1/solves", "planner",
		model.SolveRequest{ScenarioID: sc.ID, Config: model.SolverConfig{MutationRate: 2}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestSolveRateLimit(t *testing.T) {
	mem := store.NewMemory()
	s := &Server{
		Store:        mem,
		Pub:          webhooks.NewPublisher(mem),
		Broker:       NewBroker(),
		solveLimiter: rate.NewLimiter(rate.Limit(0.001), 1),
	}
	sc := createScenario(t, s)

	req := model.SolveRequest{ScenarioID: sc.ID, Config: model.SolverConfig{PopulationSize: 10, Generations: 2}}
	if rr := doJSON(t, s.SolvesHandler, http.MethodPost, "/v1/solves", "planner", req); rr.Code != http.StatusAccepted {
		t.Fatalf("first solve: %d %s", rr.Code, rr.Body.String())
	}
	if rr := doJSON(t, s.SolvesHandler, http.MethodPost, "/v1/solves", "planner", req); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second solve should be rate limited, got %d", rr.Code)
	}
}

func TestSolveReportAndPlot(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)
	created := submitSolve(t, s, model.SolveRequest{
		ScenarioID: sc.ID, Seed: 3,
		Config: model.SolverConfig{PopulationSize: 10, Generations: 5},
	})
	waitForStatus(t, s, created.ID, model.SolveCompleted)

	rr := doJSON(t, s.SolveByIDHandler, http.MethodGet, "/v1/solves/"+created.ID+"/report", "viewer", nil)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "VEHICLE ROUTING PROBLEM") {
		t.Fatalf("report: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, s.SolveByIDHandler, http.MethodGet, "/v1/solves/"+created.ID+"/plot", "viewer", nil)
	if rr.Code != 200 || rr.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("plot: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), "<svg") {
		t.Fatal("plot body is not SVG")
	}
}

func TestSolveReportBeforeCompletion(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)
	solve, _ := s.Store.CreateSolve(httptest.NewRequest("GET", "/", nil).Context(), "t1",
		model.Solve{ScenarioID: sc.ID, Status: model.SolveQueued})
	rr := doJSON(t, s.SolveByIDHandler, http.MethodGet, "/v1/solves/"+solve.ID+"/report", "viewer", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for queued solve, got %d", rr.Code)
	}
}

func TestSolverConfigDefaultsAndOverride(t *testing.T) {
	s := NewTestServer()

	rr := doJSON(t, s.SolverConfigHandler, http.MethodGet, "/v1/solver/config", "viewer", nil)
	if rr.Code != 200 {
		t.Fatalf("defaults: %d", rr.Code)
	}
	var resp struct {
		Defaults model.SolverConfig `json:"defaults"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Defaults.PopulationSize != 50 || resp.Defaults.Generations != 100 {
		t.Fatalf("built-in defaults wrong: %+v", resp.Defaults)
	}

	put := map[string]any{"config": model.SolverConfig{PopulationSize: 80}}
	if rr := doJSON(t, s.AdminSolverConfigHandler, http.MethodPut, "/v1/admin/solver/config", "admin", put); rr.Code != 200 {
		t.Fatalf("admin put: %d %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, s.SolverConfigHandler, http.MethodGet, "/v1/solver/config", "viewer", nil)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Defaults.PopulationSize != 80 || resp.Defaults.Generations != 100 {
		t.Fatalf("tenant override not applied: %+v", resp.Defaults)
	}
}

func TestAdminSolverConfigRBACAndValidation(t *testing.T) {
	s := NewTestServer()
	put := map[string]any{"config": model.SolverConfig{PopulationSize: 80}}
	if rr := doJSON(t, s.AdminSolverConfigHandler, http.MethodPut, "/v1/admin/solver/config", "planner", put); rr.Code != 403 {
		t.Fatalf("planner put should be forbidden, got %d", rr.Code)
	}
	bad := map[string]any{"config": model.SolverConfig{PopulationSize: 1}}
	if rr := doJSON(t, s.AdminSolverConfigHandler, http.MethodPut, "/v1/admin/solver/config", "admin", bad); rr.Code != 400 {
		t.Fatalf("invalid config should be rejected, got %d", rr.Code)
	}
}

func TestSubscriptions(t *testing.T) {
	s := NewTestServer()
	req := model.SubscriptionRequest{URL: "https://example.com/hook", Events: []string{"solve.completed"}, Secret: "sec"}

	if rr := doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", "planner", req); rr.Code != 403 {
		t.Fatalf("non-admin create should be forbidden, got %d", rr.Code)
	}
	rr := doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", "admin", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)

	if rr := doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", "admin", model.SubscriptionRequest{URL: "x"}); rr.Code != 400 {
		t.Fatalf("missing events should be rejected, got %d", rr.Code)
	}

	if rr := doJSON(t, s.SubscriptionByIDHandler, http.MethodDelete, "/v1/subscriptions/"+sub.ID, "admin", nil); rr.Code != 204 {
		t.Fatalf("delete: %d", rr.Code)
	}
}

func TestSolveCompletionEnqueuesWebhook(t *testing.T) {
	s := NewTestServer()
	rr := doJSON(t, s.SubscriptionsHandler, http.MethodPost, "/v1/subscriptions", "admin",
		model.SubscriptionRequest{URL: "https://example.com/hook", Events: []string{"solve.completed"}})
	if rr.Code != http.StatusCreated {
		t.Fatal(rr.Body.String())
	}

	sc := createScenario(t, s)
	created := submitSolve(t, s, model.SolveRequest{
		ScenarioID: sc.ID, Config: model.SolverConfig{PopulationSize: 10, Generations: 3},
	})
	waitForStatus(t, s, created.ID, model.SolveCompleted)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rr := doJSON(t, s.WebhookDeliveriesHandler, http.MethodGet, "/v1/admin/webhook-deliveries", "admin", nil)
		var resp struct {
			Items []map[string]any `json:"items"`
		}
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Items) == 1 {
			if et, _ := resp.Items[0]["eventType"].(string); et != "solve.completed" {
				t.Fatalf("wrong event type: %v", resp.Items[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no webhook delivery enqueued")
}

func TestHealthAndReady(t *testing.T) {
	s := NewTestServer()
	if rr := doJSON(t, s.HealthHandler, http.MethodGet, "/healthz", "", nil); rr.Code != 200 {
		t.Fatalf("healthz: %d", rr.Code)
	}
	if rr := doJSON(t, s.ReadyHandler, http.MethodGet, "/readyz", "", nil); rr.Code != 200 {
		t.Fatalf("readyz: %d", rr.Code)
	}
}

// sseRecorder implements http.Flusher so the SSE handler accepts it.
type sseRecorder struct {
	*httptest.ResponseRecorder
}

func (s *sseRecorder) Flush() {}

func TestSolveEventsTerminalState(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)
	created := submitSolve(t, s, model.SolveRequest{
		ScenarioID: sc.ID, Config: model.SolverConfig{PopulationSize: 10, Generations: 3},
	})
	waitForStatus(t, s, created.ID, model.SolveCompleted)

	req := httptest.NewRequest(http.MethodGet, "/v1/solves/"+created.ID+"/events/stream", nil)
	req.Header.Set("X-Tenant-Id", "t1")
	rec := &sseRecorder{httptest.NewRecorder()}
	s.SolveByIDHandler(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: completed") {
		t.Fatalf("expected terminal completed event, got: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestSolveEventsStreamsProgress(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)
	solve, _ := s.Store.CreateSolve(httptest.NewRequest("GET", "/", nil).Context(), "t1",
		model.Solve{ScenarioID: sc.ID, Status: model.SolveRunning})

	done := make(chan string, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/solves/"+solve.ID+"/events/stream", nil)
		req.Header.Set("X-Tenant-Id", "t1")
		rec := &sseRecorder{httptest.NewRecorder()}
		s.SolveByIDHandler(rec, req)
		done <- rec.Body.String()
	}()

	// Give the subscriber a moment to register, then publish.
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish(solve.ID, SSEEvent{Type: "progress", Data: map[string]any{"generation": 1, "bestDistance": 10.5}})
	s.Broker.Publish(solve.ID, SSEEvent{Type: "completed", Data: map[string]any{"distance": 10.5}})

	select {
	case body := <-done:
		if !strings.Contains(body, "event: progress") || !strings.Contains(body, "event: completed") {
			t.Fatalf("stream missing events: %s", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate after completed event")
	}
}

func TestListSolvesFilter(t *testing.T) {
	s := NewTestServer()
	sc := createScenario(t, s)
	created := submitSolve(t, s, model.SolveRequest{
		ScenarioID: sc.ID, Config: model.SolverConfig{PopulationSize: 10, Generations: 3},
	})
	waitForStatus(t, s, created.ID, model.SolveCompleted)

	rr := doJSON(t, s.SolvesHandler, http.MethodGet, fmt.Sprintf("/v1/solves?status=%s", model.SolveCompleted), "viewer", nil)
	if rr.Code != 200 {
		t.Fatalf("list: %d", rr.Code)
	}
	var resp struct {
		Items []model.Solve `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 completed solve, got %d", len(resp.Items))
	}
}

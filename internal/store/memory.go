package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"fleetroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	scenarios map[string]model.Scenario // id -> scenario
	scenByTen map[string][]string       // tenant -> scenario ids
	solves    map[string]model.Solve    // id -> solve
	solvByTen map[string][]string       // tenant -> solve ids
	subs      map[string][]model.Subscription
	// Webhooks queue state
	deliveries         map[string]*memDelivery
	deliveriesByTenant map[string][]string
	solverCfg          map[string]model.SolverConfig
}

func NewMemory() *Memory {
	return &Memory{
		scenarios:          map[string]model.Scenario{},
		scenByTen:          map[string][]string{},
		solves:             map[string]model.Solve{},
		solvByTen:          map[string][]string{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
		solverCfg:          map[string]model.SolverConfig{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateScenario(ctx context.Context, tenantID string, in model.ScenarioIn) (model.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := model.Scenario{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Name:       in.Name,
		Goods:      in.Goods,
		Warehouses: in.Warehouses,
		Points:     in.Points,
		Capacities: in.Capacities,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	m.scenarios[sc.ID] = sc
	m.scenByTen[tenantID] = append(m.scenByTen[tenantID], sc.ID)
	return sc, nil
}

func (m *Memory) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenarios[id]
	if !ok || sc.TenantID != tenantID {
		return model.Scenario{}, ErrNotFound
	}
	return sc, nil
}

func (m *Memory) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.scenByTen[tenantID]
	start := cursorIndex(ids, cursor)
	if limit <= 0 {
		limit = 100
	}
	out := []model.Scenario{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.scenarios[ids[i]])
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) DeleteScenario(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenarios[id]
	if !ok || sc.TenantID != tenantID {
		return ErrNotFound
	}
	delete(m.scenarios, id)
	m.scenByTen[tenantID] = removeID(m.scenByTen[tenantID], id)
	return nil
}

func (m *Memory) CreateSolve(ctx context.Context, tenantID string, solve model.Solve) (model.Solve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if solve.ID == "" {
		solve.ID = uuid.New().String()
	}
	solve.TenantID = tenantID
	if solve.CreatedAt == "" {
		solve.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.solves[solve.ID] = solve
	m.solvByTen[tenantID] = append(m.solvByTen[tenantID], solve.ID)
	return solve, nil
}

func (m *Memory) UpdateSolve(ctx context.Context, tenantID string, solve model.Solve) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.solves[solve.ID]
	if !ok || cur.TenantID != tenantID {
		return ErrNotFound
	}
	solve.TenantID = tenantID
	m.solves[solve.ID] = solve
	return nil
}

func (m *Memory) GetSolve(ctx context.Context, tenantID, id string) (model.Solve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.solves[id]
	if !ok || s.TenantID != tenantID {
		return model.Solve{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListSolves(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Solve, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.solvByTen[tenantID]
	start := cursorIndex(ids, cursor)
	if limit <= 0 {
		limit = 100
	}
	out := []model.Solve{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		s := m.solves[ids[i]]
		if status == "" || s.Status == status {
			out = append(out, s)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: tenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[tenantID] = append(m.subs[tenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs[tenantID] = out
	return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, lst := range m.deliveriesByTenant {
		for _, id := range lst {
			d := m.deliveries[id]
			if d == nil {
				continue
			}
			if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
				out = append(out, d.WebhookDelivery)
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.deliveries[id]; d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.deliveriesByTenant[tenantID] {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
			if !d.NextAttemptAt.IsZero() {
				item["nextAttemptAt"] = d.NextAttemptAt
			}
			if d.LastError != "" {
				item["lastError"] = d.LastError
			}
			out = append(out, item)
		}
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil && d.TenantID == tenantID {
		d.Status = "pending"
		d.NextAttemptAt = time.Now()
	}
	return nil
}

func (m *Memory) GetSolverConfig(ctx context.Context, tenantID string) (model.SolverConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.solverCfg[tenantID]
	return cfg, ok, nil
}

func (m *Memory) SaveSolverConfig(ctx context.Context, tenantID string, cfg model.SolverConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solverCfg[tenantID] = cfg
	return nil
}

func cursorIndex(ids []string, cursor string) int {
	if cursor == "" {
		return 0
	}
	for i, id := range ids {
		if id == cursor {
			return i + 1
		}
	}
	return 0
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

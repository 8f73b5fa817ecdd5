package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetroute/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in lexical order. Statements must
// be idempotent (CREATE TABLE IF NOT EXISTS etc); no version table is kept.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

// Scenarios are stored as whole JSONB documents; the solver only ever needs
// the complete payload.
func (p *Postgres) CreateScenario(ctx context.Context, tenantID string, in model.ScenarioIn) (model.Scenario, error) {
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
	payload, err := json.Marshal(sc)
	if err != nil {
		return model.Scenario{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO scenarios (id, tenant_id, name, payload) VALUES ($1,$2,$3,$4)`,
		sc.ID, tenantID, nullIfEmpty(sc.Name), payload)
	if err != nil {
		return model.Scenario{}, err
	}
	return sc, nil
}

func (p *Postgres) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Scenario{}, ErrNotFound
		}
		return model.Scenario{}, err
	}
	var sc model.Scenario
	if err := json.Unmarshal(payload, &sc); err != nil {
		return model.Scenario{}, err
	}
	return sc, nil
}

func (p *Postgres) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT payload FROM scenarios WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT payload FROM scenarios WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Scenario{}
	var last string
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, "", err
		}
		var sc model.Scenario
		if err := json.Unmarshal(payload, &sc); err != nil {
			return nil, "", err
		}
		out = append(out, sc)
		last = sc.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) DeleteScenario(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateSolve(ctx context.Context, tenantID string, solve model.Solve) (model.Solve, error) {
	if solve.ID == "" {
		solve.ID = uuid.New().String()
	}
	solve.TenantID = tenantID
	if solve.CreatedAt == "" {
		solve.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(solve)
	if err != nil {
		return model.Solve{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO solves (id, tenant_id, scenario_id, status, payload) VALUES ($1,$2,$3,$4,$5)`,
		solve.ID, tenantID, solve.ScenarioID, solve.Status, payload)
	if err != nil {
		return model.Solve{}, err
	}
	return solve, nil
}

func (p *Postgres) UpdateSolve(ctx context.Context, tenantID string, solve model.Solve) error {
	solve.TenantID = tenantID
	payload, err := json.Marshal(solve)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE solves SET status=$1, payload=$2, updated_at=now() WHERE tenant_id=$3 AND id=$4`,
		solve.Status, payload, tenantID, solve.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetSolve(ctx context.Context, tenantID, id string) (model.Solve, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM solves WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Solve{}, ErrNotFound
		}
		return model.Solve{}, err
	}
	var s model.Solve
	if err := json.Unmarshal(payload, &s); err != nil {
		return model.Solve{}, err
	}
	return s, nil
}

func (p *Postgres) ListSolves(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Solve, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		if cursor != "" {
			rows, err = p.db.QueryContext(ctx, `SELECT payload FROM solves WHERE tenant_id=$1 AND status=$2 AND id::text > $3 ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
		} else {
			rows, err = p.db.QueryContext(ctx, `SELECT payload FROM solves WHERE tenant_id=$1 AND status=$2 ORDER BY id LIMIT $3`, tenantID, status, limit)
		}
	} else {
		if cursor != "" {
			rows, err = p.db.QueryContext(ctx, `SELECT payload FROM solves WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
		} else {
			rows, err = p.db.QueryContext(ctx, `SELECT payload FROM solves WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
		}
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Solve{}
	var last string
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, "", err
		}
		var s model.Solve
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, "", err
		}
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, tenantID, req.URL, ev, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: tenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	key, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, string(key))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`,
			nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
	var rows *sql.Rows
	var err error
	if status != "" {
		q += ` AND status=$2 ORDER BY id LIMIT $3`
		rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
	} else {
		q += ` ORDER BY id LIMIT $2`
		rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil {
			return nil, "", err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		out = append(out, m)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

func (p *Postgres) GetSolverConfig(ctx context.Context, tenantID string) (model.SolverConfig, bool, error) {
	var js []byte
	err := p.db.QueryRowContext(ctx, `SELECT config FROM solver_config WHERE tenant_id=$1`, tenantID).Scan(&js)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SolverConfig{}, false, nil
		}
		return model.SolverConfig{}, false, err
	}
	var cfg model.SolverConfig
	if err := json.Unmarshal(js, &cfg); err != nil {
		return model.SolverConfig{}, false, err
	}
	return cfg, true, nil
}

func (p *Postgres) SaveSolverConfig(ctx context.Context, tenantID string, cfg model.SolverConfig) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO solver_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
	return err
}

// Helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

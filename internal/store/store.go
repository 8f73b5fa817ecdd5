package store

import (
	"context"
	"errors"
	"time"

	"fleetroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Scenarios
	CreateScenario(ctx context.Context, tenantID string, in model.ScenarioIn) (model.Scenario, error)
	GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error)
	ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error)
	DeleteScenario(ctx context.Context, tenantID, id string) error

	// Solves
	CreateSolve(ctx context.Context, tenantID string, solve model.Solve) (model.Solve, error)
	UpdateSolve(ctx context.Context, tenantID string, solve model.Solve) error
	GetSolve(ctx context.Context, tenantID, id string) (model.Solve, error)
	ListSolves(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Solve, string, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, tenantID string, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Solver config per tenant
	GetSolverConfig(ctx context.Context, tenantID string) (model.SolverConfig, bool, error)
	SaveSolverConfig(ctx context.Context, tenantID string, cfg model.SolverConfig) error

	Ping(ctx context.Context) error
}

// WebhookDelivery is one queued outbound event notification.
type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

var ErrNotFound = errors.New("not found")

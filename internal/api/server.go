package api

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"fleetroute/internal/config"
	"fleetroute/internal/store"
	"fleetroute/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Broker EventBroker

	// solveLimiter throttles solve submissions across the process.
	solveLimiter *rate.Limiter
}

// NewServer creates a Server. With no DatabaseURL the in-memory store is
// used; with no RedisURL progress events stay process-local.
func NewServer(cfg *config.Config) (*Server, error) {
	var s store.Store
	if cfg.DatabaseURL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				return nil, err
			}
		}
		s = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}

	return &Server{
		Store:        s,
		Pub:          webhooks.NewPublisher(s),
		Broker:       broker,
		solveLimiter: rate.NewLimiter(rate.Limit(cfg.SolveRatePerSec), cfg.SolveRateBurst),
	}, nil
}

// NewTestServer wires a Server around an in-memory store, for tests.
func NewTestServer() *Server {
	s := store.NewMemory()
	return &Server{
		Store:        s,
		Pub:          webhooks.NewPublisher(s),
		Broker:       NewBroker(),
		solveLimiter: rate.NewLimiter(rate.Limit(1000), 1000),
	}
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}

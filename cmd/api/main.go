package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetroute/internal/api"
	"fleetroute/internal/buildinfo"
	"fleetroute/internal/config"
	"fleetroute/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Scenarios
	mux.Handle("/v1/scenarios", api.Instrument("/v1/scenarios", http.HandlerFunc(srv.ScenariosHandler)))
	mux.Handle("/v1/scenarios/generate", api.Instrument("/v1/scenarios/generate", http.HandlerFunc(srv.GenerateScenarioHandler)))
	mux.Handle("/v1/scenarios/", api.Instrument("/v1/scenarios/{id}", http.HandlerFunc(srv.ScenarioByIDHandler)))

	// Solves; the by-id handler also serves /report, /plot, /metrics,
	// /events/stream and /ws subresources.
	mux.Handle("/v1/solves", api.Instrument("/v1/solves", http.HandlerFunc(srv.SolvesHandler)))
	mux.Handle("/v1/solves/", api.Instrument("/v1/solves/{id}", http.HandlerFunc(srv.SolveByIDHandler)))

	// Solver config
	mux.Handle("/v1/solver/config", api.Instrument("/v1/solver/config", http.HandlerFunc(srv.SolverConfigHandler)))
	mux.Handle("/v1/admin/solver/config", api.Instrument("/v1/admin/solver/config", http.HandlerFunc(srv.AdminSolverConfigHandler)))

	// Subscriptions and webhook admin
	mux.Handle("/v1/subscriptions", api.Instrument("/v1/subscriptions", http.HandlerFunc(srv.SubscriptionsHandler)))
	mux.Handle("/v1/subscriptions/", api.Instrument("/v1/subscriptions/{id}", http.HandlerFunc(srv.SubscriptionByIDHandler)))
	mux.Handle("/v1/admin/webhook-deliveries", api.Instrument("/v1/admin/webhook-deliveries", http.HandlerFunc(srv.WebhookDeliveriesHandler)))
	mux.Handle("/v1/admin/webhook-deliveries/", api.Instrument("/v1/admin/webhook-deliveries/{id}/retry", http.HandlerFunc(srv.WebhookDeliveryRetryHandler)))

	// Health and metrics
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("fleetroute %s listening on %s", buildinfo.Version, cfg.Addr())
	worker := srv.NewWebhookWorker()
	worker.Start()
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

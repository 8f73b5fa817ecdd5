package opt

import "sync"

type metricsKey struct {
	Tenant  string
	SolveID string
}

var (
	metricsMu    sync.Mutex
	metricsStore = map[metricsKey]Metrics{}
)

// RecordMetrics keeps the run metrics of a solve for later inspection.
func RecordMetrics(tenant, solveID string, m Metrics) {
	metricsMu.Lock()
	metricsStore[metricsKey{Tenant: tenant, SolveID: solveID}] = m
	metricsMu.Unlock()
}

// GetMetrics returns the recorded metrics for a solve, if any.
func GetMetrics(tenant, solveID string) (Metrics, bool) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	m, ok := metricsStore[metricsKey{Tenant: tenant, SolveID: solveID}]
	return m, ok
}

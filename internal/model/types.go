package model

// API-facing data model. Scenario payloads are stored verbatim; the solver
// works on the converted form (see convert.go).

type PointIn struct {
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	Label   string         `json:"label,omitempty"`
	Demands map[string]int `json:"demands,omitempty"`
}

type ScenarioIn struct {
	Name       string    `json:"name,omitempty"`
	Goods      []string  `json:"goods,omitempty"`
	Warehouses []PointIn `json:"warehouses"`
	Points     []PointIn `json:"points"`
	Capacities []int     `json:"capacities"`
}

type Scenario struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Name       string    `json:"name,omitempty"`
	Goods      []string  `json:"goods,omitempty"`
	Warehouses []PointIn `json:"warehouses"`
	Points     []PointIn `json:"points"`
	Capacities []int     `json:"capacities"`
	CreatedAt  string    `json:"createdAt,omitempty"`
}

type GenerateRequest struct {
	Name           string   `json:"name,omitempty"`
	Goods          []string `json:"goods,omitempty"`
	DeliveryPoints int      `json:"deliveryPoints,omitempty"`
	PickupPoints   int      `json:"pickupPoints,omitempty"`
	Capacities     []int    `json:"capacities,omitempty"`
	Seed           int64    `json:"seed,omitempty"`
}

// SolverConfig carries GA hyperparameters; zero values mean "use defaults".
type SolverConfig struct {
	PopulationSize int     `json:"populationSize,omitempty"`
	Generations    int     `json:"generations,omitempty"`
	MutationRate   float64 `json:"mutationRate,omitempty"`
	TournamentSize int     `json:"tournamentSize,omitempty"`
}

type SolveRequest struct {
	ScenarioID string       `json:"scenarioId"`
	Seed       int64        `json:"seed,omitempty"`
	Config     SolverConfig `json:"config,omitempty"`
}

// Solve statuses.
const (
	SolveQueued    = "queued"
	SolveRunning   = "running"
	SolveCompleted = "completed"
	SolveFailed    = "failed"
)

type Solve struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	ScenarioID  string         `json:"scenarioId"`
	Status      string         `json:"status"`
	Seed        int64          `json:"seed,omitempty"`
	Config      SolverConfig   `json:"config"`
	Error       string         `json:"error,omitempty"`
	Distance    float64        `json:"distance,omitempty"`
	Unmet       map[string]int `json:"unmet,omitempty"`
	Routes      []RouteOut     `json:"routes,omitempty"`
	Metrics     *SolveMetrics  `json:"metrics,omitempty"`
	CreatedAt   string         `json:"createdAt,omitempty"`
	CompletedAt string         `json:"completedAt,omitempty"`
}

type RouteOut struct {
	VehicleID int            `json:"vehicleId"`
	Capacity  int            `json:"capacity"`
	Warehouse string         `json:"warehouse"`
	Distance  float64        `json:"distance"`
	Stops     []StopOut      `json:"stops"`
	Delivered map[string]int `json:"delivered,omitempty"`
	PickedUp  map[string]int `json:"pickedUp,omitempty"`
}

// StopOut mirrors one route entry; Load and Remaining are post-operation
// snapshots, Remaining is omitted for warehouse stops.
type StopOut struct {
	Label     string         `json:"label"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	Warehouse bool           `json:"warehouse,omitempty"`
	Op        string         `json:"op"`
	Amounts   map[string]int `json:"amounts,omitempty"`
	Load      map[string]int `json:"load"`
	Remaining map[string]int `json:"remaining,omitempty"`
}

type SolveMetrics struct {
	Generations  int           `json:"generations"`
	Evaluations  int           `json:"evaluations"`
	Improvements int           `json:"improvements"`
	BestDistance float64       `json:"bestDistance"`
	Snapshots    []GenSnapshot `json:"snapshots,omitempty"`
}

type GenSnapshot struct {
	Generation   int     `json:"generation"`
	BestDistance float64 `json:"bestDistance"`
}

// ProgressEvent is streamed over SSE and WebSocket while a solve runs.
type ProgressEvent struct {
	Type         string  `json:"type"` // progress, completed, failed
	SolveID      string  `json:"solveId"`
	Generation   int     `json:"generation,omitempty"`
	BestDistance float64 `json:"bestDistance,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

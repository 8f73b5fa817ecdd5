package opt

import "math"

// Good identifies one commodity category tracked independently per point and
// per vehicle.
type Good string

// PointType discriminates how a point is handled during simulation.
type PointType int

const (
	Delivery PointType = iota
	Pickup
	Warehouse
)

func (t PointType) String() string {
	switch t {
	case Pickup:
		return "pickup"
	case Warehouse:
		return "warehouse"
	default:
		return "delivery"
	}
}

// StopOp tags the operation performed at a route stop.
type StopOp int

const (
	OpInitialLoad StopOp = iota
	OpReload
	OpTravelToReload
	OpDelivery
	OpPickup
	OpUnloadIfFull
)

func (op StopOp) String() string {
	switch op {
	case OpInitialLoad:
		return "initial_load"
	case OpReload:
		return "reload_specific_good"
	case OpTravelToReload:
		return "travel_to_reload"
	case OpPickup:
		return "pickup"
	case OpUnloadIfFull:
		return "unload_if_full"
	default:
		return "delivery"
	}
}

// Point is a warehouse or service point. Demands are signed per good:
// positive means delivery, negative means pickup. Points are immutable during
// search; per-simulation remaining demand lives in the simulation state, so
// concurrent evaluations never share mutable maps.
type Point struct {
	X, Y    float64
	Label   string
	Type    PointType
	Demands map[Good]int
}

// NewPoint builds a service point, inferring the type from the demand total
// when not forced by the caller via NewWarehouse.
func NewPoint(x, y float64, label string, demands map[Good]int) *Point {
	total := 0
	for _, d := range demands {
		total += d
	}
	t := Delivery
	if total < 0 {
		t = Pickup
	}
	return &Point{X: x, Y: y, Label: label, Type: t, Demands: demands}
}

func NewWarehouse(x, y float64, label string) *Point {
	return &Point{X: x, Y: y, Label: label, Type: Warehouse}
}

// DistanceTo returns the Euclidean distance between two points.
func (p *Point) DistanceTo(q *Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Stop is one entry of a vehicle route. Load and Remaining are snapshots
// taken immediately after the operation; Remaining is nil for warehouse
// stops.
type Stop struct {
	Point     *Point
	Op        StopOp
	Amounts   map[Good]int
	Load      map[Good]int
	Remaining map[Good]int
}

// Vehicle is instantiated fresh for every simulation. Route is append-only
// within one simulation.
type Vehicle struct {
	ID        int
	Capacity  int
	Loads     map[Good]int
	Route     []Stop
	Warehouse *Point
}

// TotalLoad sums the current load across all goods.
func (v *Vehicle) TotalLoad() int {
	total := 0
	for _, n := range v.Loads {
		total += n
	}
	return total
}

// Position is the point of the last stop, or the assigned warehouse for a
// vehicle that has not moved yet.
func (v *Vehicle) Position() *Point {
	if len(v.Route) > 0 {
		return v.Route[len(v.Route)-1].Point
	}
	return v.Warehouse
}

// NearestWarehouse returns the warehouse closest to the vehicle's current
// position, or nil when none exist.
func (v *Vehicle) NearestWarehouse(warehouses []*Point) *Point {
	pos := v.Position()
	if pos == nil {
		return nil
	}
	return nearestTo(pos, warehouses)
}

func nearestTo(p *Point, warehouses []*Point) *Point {
	var best *Point
	min := math.Inf(1)
	for _, w := range warehouses {
		if d := p.DistanceTo(w); d < min {
			min = d
			best = w
		}
	}
	return best
}

// Scenario is the immutable problem instance handed to the engine: service
// points, warehouses, the fleet's capacities and the good types in play.
type Scenario struct {
	Goods      []Good
	Warehouses []*Point
	Points     []*Point
	Capacities []int
}

func cloneDemands(src map[Good]int) map[Good]int {
	out := make(map[Good]int, len(src))
	for g, n := range src {
		out[g] = n
	}
	return out
}

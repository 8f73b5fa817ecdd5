package scenario

import (
	"fmt"
	"math/rand"

	"fleetroute/internal/opt"
)

// Params controls random scenario generation. Zero values fall back to the
// standard demo layout: a 100x100 grid with warehouses in the corners and the
// center, 20 deliveries, 10 pickups and a four-vehicle fleet.
type Params struct {
	Goods          []opt.Good
	DeliveryPoints int
	PickupPoints   int
	Capacities     []int
	Seed           int64
}

var (
	defaultGoods      = []opt.Good{"parcels"}
	defaultCapacities = []int{1000, 1500, 2000, 2000}
	warehouseLayout   = [][2]float64{{10, 10}, {90, 10}, {10, 90}, {90, 90}, {50, 50}}
)

func (p *Params) applyDefaults() {
	if len(p.Goods) == 0 {
		p.Goods = defaultGoods
	}
	if p.DeliveryPoints == 0 {
		p.DeliveryPoints = 20
	}
	if p.PickupPoints == 0 {
		p.PickupPoints = 10
	}
	if len(p.Capacities) == 0 {
		p.Capacities = defaultCapacities
	}
}

// Generate builds a random but reproducible scenario: coordinates are drawn
// from [10,90], per-good demand from [100,200].
func Generate(p Params) *opt.Scenario {
	p.applyDefaults()
	rng := rand.New(rand.NewSource(p.Seed))

	sc := &opt.Scenario{
		Goods:      append([]opt.Good(nil), p.Goods...),
		Capacities: append([]int(nil), p.Capacities...),
	}
	for i, pos := range warehouseLayout {
		label := fmt.Sprintf("Warehouse %d (%g,%g)", i+1, pos[0], pos[1])
		sc.Warehouses = append(sc.Warehouses, opt.NewWarehouse(pos[0], pos[1], label))
	}
	for i := 0; i < p.DeliveryPoints; i++ {
		x, y := gridCoord(rng), gridCoord(rng)
		demands := map[opt.Good]int{}
		for _, g := range p.Goods {
			demands[g] = 100 + rng.Intn(101)
		}
		label := fmt.Sprintf("Delivery (%g,%g)", x, y)
		sc.Points = append(sc.Points, opt.NewPoint(x, y, label, demands))
	}
	for i := 0; i < p.PickupPoints; i++ {
		x, y := gridCoord(rng), gridCoord(rng)
		demands := map[opt.Good]int{}
		for _, g := range p.Goods {
			demands[g] = -(100 + rng.Intn(101))
		}
		label := fmt.Sprintf("Pickup (%g,%g)", x, y)
		sc.Points = append(sc.Points, opt.NewPoint(x, y, label, demands))
	}
	return sc
}

func gridCoord(rng *rand.Rand) float64 {
	return float64(10 + rng.Intn(81))
}

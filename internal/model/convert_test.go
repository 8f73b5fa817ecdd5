package model

import (
	"math/rand"
	"testing"

	"fleetroute/internal/opt"
)

func TestBuildScenarioCollectsGoods(t *testing.T) {
	in := &Scenario{
		Warehouses: []PointIn{{X: 0, Y: 0}},
		Points: []PointIn{
			{X: 1, Y: 1, Demands: map[string]int{"oranges": 10, "apples": 5}},
			{X: 2, Y: 2, Demands: map[string]int{"apples": -3}},
		},
		Capacities: []int{100},
	}
	sc, err := BuildScenario(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Goods) != 2 || sc.Goods[0] != "apples" || sc.Goods[1] != "oranges" {
		t.Fatalf("goods = %v", sc.Goods)
	}
	if sc.Points[0].Type != opt.Delivery || sc.Points[1].Type != opt.Pickup {
		t.Fatalf("point types wrong: %v, %v", sc.Points[0].Type, sc.Points[1].Type)
	}
	if sc.Points[0].Label == "" || sc.Warehouses[0].Label == "" {
		t.Fatal("missing labels should be defaulted")
	}
}

func TestBuildScenarioErrors(t *testing.T) {
	cases := []struct {
		name string
		in   *Scenario
	}{
		{"no warehouses", &Scenario{Points: []PointIn{{Demands: map[string]int{"a": 1}}}, Capacities: []int{1}}},
		{"no points", &Scenario{Warehouses: []PointIn{{}}, Capacities: []int{1}}},
		{"no capacities", &Scenario{Warehouses: []PointIn{{}}, Points: []PointIn{{Demands: map[string]int{"a": 1}}}}},
		{"point without demands", &Scenario{Warehouses: []PointIn{{}}, Points: []PointIn{{}}, Capacities: []int{1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildScenario(tc.in); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRoutesFromAggregatesAmounts(t *testing.T) {
	sc := &opt.Scenario{
		Goods:      []opt.Good{"oranges"},
		Warehouses: []*opt.Point{opt.NewWarehouse(0, 0, "Depot")},
		Points: []*opt.Point{
			opt.NewPoint(10, 0, "Store", map[opt.Good]int{"oranges": 100}),
			opt.NewPoint(5, 5, "Farm", map[opt.Good]int{"oranges": -30}),
		},
		Capacities: []int{1000},
	}
	res := sc.Simulate([]int{0, 1}, rand.New(rand.NewSource(1)))

	routes := RoutesFrom(res.Vehicles)
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}
	r := routes[0]
	if r.VehicleID != 1 || r.Capacity != 1000 || r.Warehouse == "" {
		t.Fatalf("route header wrong: %+v", r)
	}
	if r.Delivered["oranges"] != 100 {
		t.Fatalf("delivered = %v", r.Delivered)
	}
	if r.PickedUp["oranges"] != 30 {
		t.Fatalf("pickedUp = %v", r.PickedUp)
	}
	if r.Distance <= 0 {
		t.Fatalf("distance = %v", r.Distance)
	}
	if len(r.Stops) != len(res.Vehicles[0].Route) {
		t.Fatalf("stop count mismatch: %d vs %d", len(r.Stops), len(res.Vehicles[0].Route))
	}
}

func TestEngineConfigMerge(t *testing.T) {
	defaults := SolverConfig{PopulationSize: 50, Generations: 100, MutationRate: 0.2, TournamentSize: 3}
	req := SolveRequest{Seed: 9, Config: SolverConfig{Generations: 40, MutationRate: 0.5}}

	cfg := EngineConfig(defaults, req)
	if cfg.PopulationSize != 50 || cfg.TournamentSize != 3 {
		t.Fatalf("defaults dropped: %+v", cfg)
	}
	if cfg.Generations != 40 || cfg.MutationRate != 0.5 || cfg.Seed != 9 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestUnmetFromSkipsZeros(t *testing.T) {
	out := UnmetFrom(map[opt.Good]int{"oranges": 0, "apples": 7})
	if len(out) != 1 || out["apples"] != 7 {
		t.Fatalf("unmet = %v", out)
	}
}

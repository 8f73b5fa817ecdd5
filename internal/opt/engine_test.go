package opt

import (
	"math"
	"testing"
)

func testScenario() *Scenario {
	return &Scenario{
		Goods:      []Good{"parcels"},
		Warehouses: []*Point{NewWarehouse(0, 0, "Depot")},
		Points: []*Point{
			NewPoint(10, 0, "A", map[Good]int{"parcels": 50}),
			NewPoint(20, 5, "B", map[Good]int{"parcels": 30}),
			NewPoint(5, 15, "C", map[Good]int{"parcels": -20}),
			NewPoint(30, 30, "D", map[Good]int{"parcels": 40}),
			NewPoint(12, 25, "E", map[Good]int{"parcels": 60}),
		},
		Capacities: []int{1000},
	}
}

func TestNewEngineValidation(t *testing.T) {
	base := testScenario()
	cases := []struct {
		name string
		sc   *Scenario
		cfg  Config
	}{
		{"nil scenario", nil, Config{}},
		{"no warehouses", &Scenario{Points: base.Points, Capacities: []int{100}}, Config{}},
		{"no vehicles", &Scenario{Points: base.Points, Warehouses: base.Warehouses}, Config{}},
		{"non-positive capacity", &Scenario{Points: base.Points, Warehouses: base.Warehouses, Capacities: []int{0}}, Config{}},
		{"warehouse as service point", &Scenario{
			Points:     []*Point{NewWarehouse(1, 1, "W")},
			Warehouses: base.Warehouses,
			Capacities: []int{100},
		}, Config{}},
		{"population too small", base, Config{PopulationSize: 1}},
		{"negative generations", base, Config{Generations: -1}},
		{"tournament exceeds population", base, Config{PopulationSize: 4, TournamentSize: 5}},
		{"mutation rate out of range", base, Config{MutationRate: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEngine(tc.sc, tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEngineDeterministicWithSeed(t *testing.T) {
	run := func() *Solution {
		eng, err := NewEngine(testScenario(), Config{PopulationSize: 20, Generations: 15, Seed: 99})
		if err != nil {
			t.Fatal(err)
		}
		return eng.Run()
	}
	a, b := run(), run()
	if a.Distance != b.Distance {
		t.Fatalf("same seed, different distances: %v vs %v", a.Distance, b.Distance)
	}
	if len(a.Order) != len(b.Order) {
		t.Fatalf("order lengths differ")
	}
	for i := range a.Order {
		if a.Order[i] != b.Order[i] {
			t.Fatalf("same seed, different orders: %v vs %v", a.Order, b.Order)
		}
	}
}

func TestEngineRunProducesValidSolution(t *testing.T) {
	sc := testScenario()
	eng, err := NewEngine(sc, Config{PopulationSize: 20, Generations: 20, Seed: 5})
	if err != nil {
		t.Fatal(err)
	}
	sol := eng.Run()

	if !validPermutation(sol.Order, len(sc.Points)) {
		t.Fatalf("best order is not a permutation: %v", sol.Order)
	}
	if math.IsInf(sol.Distance, 1) || sol.Distance <= 0 {
		t.Fatalf("suspicious distance: %v", sol.Distance)
	}
	if sol.Metrics.Generations != 20 {
		t.Fatalf("metrics generations = %d", sol.Metrics.Generations)
	}
	if sol.Metrics.Evaluations == 0 {
		t.Fatal("metrics should count evaluations")
	}
	if len(sol.Metrics.Snapshots) != 20 {
		t.Fatalf("expected 20 snapshots, got %d", len(sol.Metrics.Snapshots))
	}
	for g, n := range sol.Unmet {
		if n != 0 {
			t.Fatalf("unmet[%s] = %d with an oversized fleet", g, n)
		}
	}
}

func TestEngineOnGenerationCallback(t *testing.T) {
	var gens []int
	cfg := Config{PopulationSize: 10, Generations: 8, Seed: 3,
		OnGeneration: func(gen int, best float64) { gens = append(gens, gen) }}
	eng, err := NewEngine(testScenario(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	eng.Run()
	if len(gens) != 8 {
		t.Fatalf("callback fired %d times, want 8", len(gens))
	}
	for i, g := range gens {
		if g != i {
			t.Fatalf("callback generations out of order: %v", gens)
		}
	}
}

func TestEngineBestNeverWorsens(t *testing.T) {
	// With a single warehouse the per-evaluation warehouse draw is fixed, so
	// elite fitness is stable and the generation best must be non-increasing.
	eng, err := NewEngine(testScenario(), Config{PopulationSize: 20, Generations: 25, Seed: 17})
	if err != nil {
		t.Fatal(err)
	}
	sol := eng.Run()
	prev := sol.Metrics.Snapshots[0].BestDistance
	for _, snap := range sol.Metrics.Snapshots[1:] {
		if snap.BestDistance > prev {
			t.Fatalf("generation %d best %.4f worse than previous %.4f",
				snap.Generation, snap.BestDistance, prev)
		}
		prev = snap.BestDistance
	}
}

func TestFitnessInvalidPermutation(t *testing.T) {
	eng, err := NewEngine(testScenario(), Config{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, order := range [][]int{
		{0, 1, 2},          // too short
		{0, 1, 2, 3, 3},    // duplicate
		{0, 1, 2, 3, 9},    // out of range
		{0, 1, 2, 3, -1},   // negative
		{0, 1, 2, 3, 4, 0}, // too long
	} {
		if f := eng.Fitness(order); !math.IsInf(f, 1) {
			t.Fatalf("Fitness(%v) = %v, want +Inf", order, f)
		}
	}
}

func TestOrderedCrossoverYieldsPermutation(t *testing.T) {
	eng, err := NewEngine(testScenario(), Config{Seed: 11})
	if err != nil {
		t.Fatal(err)
	}
	p1 := []int{0, 1, 2, 3, 4}
	p2 := []int{4, 3, 2, 1, 0}
	for i := 0; i < 50; i++ {
		child := eng.orderedCrossover(p1, p2)
		if !validPermutation(child, 5) {
			t.Fatalf("ordered crossover produced %v", child)
		}
	}
}

func TestSpatialCrossoverYieldsPermutation(t *testing.T) {
	eng, err := NewEngine(testScenario(), Config{Seed: 12})
	if err != nil {
		t.Fatal(err)
	}
	p1 := []int{0, 1, 2, 3, 4}
	p2 := []int{2, 4, 0, 3, 1}
	for i := 0; i < 50; i++ {
		child := eng.spatialCrossover(p1, p2)
		if !validPermutation(child, 5) {
			t.Fatalf("spatial crossover produced %v", child)
		}
	}
}

func TestMutatePreservesPermutation(t *testing.T) {
	eng, err := NewEngine(testScenario(), Config{Seed: 13, MutationRate: 1})
	if err != nil {
		t.Fatal(err)
	}
	order := []int{0, 1, 2, 3, 4}
	eng.mutate(order)
	if !validPermutation(order, 5) {
		t.Fatalf("mutation broke the permutation: %v", order)
	}
}

func TestDeriveGoodsSortedAndUnique(t *testing.T) {
	points := []*Point{
		NewPoint(0, 0, "a", map[Good]int{"oranges": 10, "apples": 5}),
		NewPoint(1, 1, "b", map[Good]int{"apples": -3}),
	}
	goods := deriveGoods(points)
	if len(goods) != 2 || goods[0] != "apples" || goods[1] != "oranges" {
		t.Fatalf("deriveGoods = %v", goods)
	}
}

package opt

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Config holds the GA hyperparameters. Zero values fall back to the
// built-in defaults.
type Config struct {
	PopulationSize int
	Generations    int
	MutationRate   float64
	TournamentSize int
	Seed           int64

	// OnGeneration, when set, is invoked after each generation has been
	// scored with the best distance seen in the sorted population.
	OnGeneration func(gen int, best float64)
}

func (c *Config) applyDefaults() {
	if c.PopulationSize == 0 {
		c.PopulationSize = 50
	}
	if c.Generations == 0 {
		c.Generations = 100
	}
	if c.MutationRate == 0 {
		c.MutationRate = 0.2
	}
	if c.TournamentSize == 0 {
		c.TournamentSize = 3
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Metrics summarizes one engine run.
type Metrics struct {
	Generations  int           `json:"generations"`
	Evaluations  int           `json:"evaluations"`
	Improvements int           `json:"improvements"`
	BestDistance float64       `json:"bestDistance"`
	Snapshots    []GenSnapshot `json:"snapshots,omitempty"`
}

// GenSnapshot records the best fitness after one generation.
type GenSnapshot struct {
	Generation   int     `json:"generation"`
	BestDistance float64 `json:"bestDistance"`
}

// Solution is the engine's final answer: the best visitation order found,
// re-expanded into concrete vehicle routes.
type Solution struct {
	Order    []int
	Vehicles []*Vehicle
	Distance float64
	Unmet    map[Good]int
	Metrics  Metrics
}

// Engine runs a genetic search over service-point visitation orders.
// Chromosomes are permutations of indices into the scenario's service points;
// fitness is the total travelled distance of the simulated service plan.
type Engine struct {
	sc    *Scenario
	cfg   Config
	rng   *rand.Rand
	evals int
}

// NewEngine validates the scenario and hyperparameters. Configuration errors
// are the only hard failures of the solver; everything later is scored, not
// raised.
func NewEngine(sc *Scenario, cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if sc == nil || len(sc.Points) == 0 {
		return nil, fmt.Errorf("engine: scenario has no service points")
	}
	if len(sc.Warehouses) == 0 {
		return nil, fmt.Errorf("engine: scenario has no warehouses")
	}
	if len(sc.Capacities) == 0 {
		return nil, fmt.Errorf("engine: scenario has no vehicles")
	}
	for i, c := range sc.Capacities {
		if c <= 0 {
			return nil, fmt.Errorf("engine: vehicle %d capacity must be positive, got %d", i+1, c)
		}
	}
	for _, p := range sc.Points {
		if p.Type == Warehouse {
			return nil, fmt.Errorf("engine: warehouse %q listed as service point", p.Label)
		}
	}
	if len(sc.Goods) == 0 {
		sc.Goods = deriveGoods(sc.Points)
	}
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("engine: population size must be >= 2, got %d", cfg.PopulationSize)
	}
	if cfg.Generations < 1 {
		return nil, fmt.Errorf("engine: generations must be >= 1, got %d", cfg.Generations)
	}
	if cfg.TournamentSize < 1 || cfg.TournamentSize > cfg.PopulationSize {
		return nil, fmt.Errorf("engine: tournament size %d out of range [1,%d]", cfg.TournamentSize, cfg.PopulationSize)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("engine: mutation rate %v out of range [0,1]", cfg.MutationRate)
	}
	return &Engine{sc: sc, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

func deriveGoods(points []*Point) []Good {
	seen := map[Good]bool{}
	for _, p := range points {
		for g := range p.Demands {
			seen[g] = true
		}
	}
	goods := make([]Good, 0, len(seen))
	for g := range seen {
		goods = append(goods, g)
	}
	sort.Slice(goods, func(i, j int) bool { return goods[i] < goods[j] })
	return goods
}

// Run evolves the population for the configured generation count and returns
// the best individual expanded into vehicle routes.
func (e *Engine) Run() *Solution {
	pop := make([][]int, e.cfg.PopulationSize)
	for i := range pop {
		pop[i] = e.randomOrder()
	}

	// Diversity injection happens across all generation indices before the
	// scoring loop: every 5th index the last 10 individuals are replaced
	// with fresh permutations.
	for gen := 0; gen < e.cfg.Generations; gen++ {
		if gen%5 == 0 {
			keep := len(pop) - 10
			if keep < 0 {
				keep = 0
			}
			pop = pop[:keep]
			for i := 0; i < 10; i++ {
				pop = append(pop, e.randomOrder())
			}
		}
	}

	m := Metrics{Generations: e.cfg.Generations, BestDistance: math.Inf(1)}
	for gen := 0; gen < e.cfg.Generations; gen++ {
		fits := e.sortByFitness(pop)
		if fits[0] < m.BestDistance {
			m.BestDistance = fits[0]
			m.Improvements++
		}
		m.Snapshots = append(m.Snapshots, GenSnapshot{Generation: gen, BestDistance: fits[0]})
		if e.cfg.OnGeneration != nil {
			e.cfg.OnGeneration(gen, fits[0])
		}

		elites := [][]int{cloneOrder(pop[0]), cloneOrder(pop[1])}
		selected := e.tournament(pop)

		next := elites
		for len(next) < e.cfg.PopulationSize {
			p1 := selected[e.rng.Intn(len(selected))]
			p2 := selected[e.rng.Intn(len(selected))]
			var child []int
			if e.rng.Float64() < 0.7 {
				child = e.orderedCrossover(p1, p2)
			} else {
				child = e.spatialCrossover(p1, p2)
			}
			e.mutate(child)
			if e.rng.Float64() < 0.2 {
				child = e.twoOpt(child)
			}
			next = append(next, child)
		}
		pop = next[:e.cfg.PopulationSize]
	}

	best := pop[0]
	bestFit := e.Fitness(best)
	for _, ind := range pop[1:] {
		if f := e.Fitness(ind); f < bestFit {
			bestFit = f
			best = ind
		}
	}

	res := e.sc.Simulate(best, e.rng)
	dist := routeSetDistance(res.Vehicles, e.sc.Warehouses)
	if dist < m.BestDistance {
		m.BestDistance = dist
	}
	m.Evaluations = e.evals
	return &Solution{Order: best, Vehicles: res.Vehicles, Distance: dist, Unmet: res.Unmet, Metrics: m}
}

func (e *Engine) randomOrder() []int {
	return e.rng.Perm(len(e.sc.Points))
}

// Fitness scores a visitation order: total travelled distance of the
// simulated plan, or +Inf for anything malformed. Simulator panics are
// treated as maximally unfit rather than surfaced.
func (e *Engine) Fitness(order []int) (f float64) {
	if !validPermutation(order, len(e.sc.Points)) {
		return math.Inf(1)
	}
	defer func() {
		if recover() != nil {
			f = math.Inf(1)
		}
	}()
	e.evals++
	res := e.sc.Simulate(order, e.rng)
	return routeSetDistance(res.Vehicles, e.sc.Warehouses)
}

func validPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// routeSetDistance sums every vehicle's legs from its assigned warehouse
// through its stops, plus the closure leg to the nearest warehouse.
func routeSetDistance(vehicles []*Vehicle, warehouses []*Point) float64 {
	total := 0.0
	for _, v := range vehicles {
		if len(v.Route) == 0 {
			continue
		}
		last := v.Warehouse
		for _, stop := range v.Route {
			total += last.DistanceTo(stop.Point)
			last = stop.Point
		}
		if wh := v.NearestWarehouse(warehouses); wh != nil {
			total += last.DistanceTo(wh)
		}
	}
	return total
}

// sortByFitness orders the population ascending and returns the aligned
// fitness values. Fitness is computed once per individual per generation; no
// cache is kept because warehouse assignment re-randomizes per evaluation.
func (e *Engine) sortByFitness(pop [][]int) []float64 {
	type scored struct {
		order []int
		fit   float64
	}
	items := make([]scored, len(pop))
	for i, ind := range pop {
		items[i] = scored{order: ind, fit: e.Fitness(ind)}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].fit < items[j].fit })
	fits := make([]float64, len(items))
	for i, it := range items {
		pop[i] = it.order
		fits[i] = it.fit
	}
	return fits
}

// tournament builds the selection pool: population-size winners of
// tournament-size uniform samples.
func (e *Engine) tournament(pop [][]int) [][]int {
	selected := make([][]int, 0, e.cfg.PopulationSize)
	for n := 0; n < e.cfg.PopulationSize; n++ {
		perm := e.rng.Perm(len(pop))
		winner := pop[perm[0]]
		best := e.Fitness(winner)
		for _, pi := range perm[1:e.cfg.TournamentSize] {
			if f := e.Fitness(pop[pi]); f < best {
				best = f
				winner = pop[pi]
			}
		}
		selected = append(selected, cloneOrder(winner))
	}
	return selected
}

// orderedCrossover copies a random contiguous slice from p1 and fills the
// remaining slots in p2 order, skipping duplicates.
func (e *Engine) orderedCrossover(p1, p2 []int) []int {
	size := len(p1)
	if size < 2 {
		return cloneOrder(p1)
	}
	start, end := e.twoIndices(size)

	child := make([]int, size)
	for i := range child {
		child[i] = -1
	}
	inSegment := make([]bool, size)
	for i := start; i <= end; i++ {
		child[i] = p1[i]
		inSegment[p1[i]] = true
	}

	ptr := 0
	for i := 0; i < size; i++ {
		if child[i] != -1 {
			continue
		}
		for ptr < size && inSegment[p2[ptr]] {
			ptr++
		}
		if ptr < size {
			child[i] = p2[ptr]
			ptr++
		}
	}
	return child
}

// spatialCrossover sorts both parents by distance to a random reference point
// and interleaves takes from each order, skipping already-used points.
func (e *Engine) spatialCrossover(p1, p2 []int) []int {
	size := len(p1)
	if size < 2 {
		return cloneOrder(p1)
	}
	ref := e.sc.Points[e.rng.Intn(len(e.sc.Points))]
	s1 := e.sortByDistanceTo(p1, ref)
	s2 := e.sortByDistanceTo(p2, ref)

	child := make([]int, 0, size)
	used := make([]bool, size)
	i, j := 0, 0
	for len(child) < size {
		for i < size && used[s1[i]] {
			i++
		}
		if i < size {
			child = append(child, s1[i])
			used[s1[i]] = true
			i++
		}
		for j < size && used[s2[j]] {
			j++
		}
		if j < size && len(child) < size {
			child = append(child, s2[j])
			used[s2[j]] = true
			j++
		}
	}
	return child
}

func (e *Engine) sortByDistanceTo(order []int, ref *Point) []int {
	out := cloneOrder(order)
	sort.SliceStable(out, func(i, j int) bool {
		return e.sc.Points[out[i]].DistanceTo(ref) < e.sc.Points[out[j]].DistanceTo(ref)
	})
	return out
}

// mutate swaps two random positions with the configured probability.
func (e *Engine) mutate(order []int) {
	if len(order) < 2 || e.rng.Float64() >= e.cfg.MutationRate {
		return
	}
	i, j := e.twoIndices(len(order))
	order[i], order[j] = order[j], order[i]
}

// twoIndices draws two distinct indices in [0,n) and returns them ordered.
func (e *Engine) twoIndices(n int) (int, int) {
	i := e.rng.Intn(n)
	j := e.rng.Intn(n - 1)
	if j >= i {
		j++
	}
	if i > j {
		i, j = j, i
	}
	return i, j
}

func cloneOrder(order []int) []int {
	return append([]int(nil), order...)
}

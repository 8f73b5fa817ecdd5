package opt

import "math/rand"

// PlanResult is the outcome of expanding one visitation order into concrete
// vehicle routes. Unmet reports demand units (absolute) that no vehicle could
// serve; the simulator never fails hard on them.
type PlanResult struct {
	Vehicles []*Vehicle
	Unmet    map[Good]int
}

// simulation carries the mutable state of one service-plan expansion. Every
// Simulate call builds its own instance, so evaluations are isolated and a
// chromosome can be scored concurrently with others.
type simulation struct {
	sc        *Scenario
	vehicles  []*Vehicle
	remaining []map[Good]int // indexed like sc.Points
}

// Simulate expands a visitation order (indices into sc.Points) into one route
// per vehicle. Each vehicle launches from a warehouse drawn uniformly at
// random per call; reloads and unloads are inserted as needed. Order entries
// must be valid indices; the caller validates permutations.
func (sc *Scenario) Simulate(order []int, rng *rand.Rand) *PlanResult {
	s := &simulation{sc: sc, remaining: make([]map[Good]int, len(sc.Points))}
	for i, p := range sc.Points {
		s.remaining[i] = cloneDemands(p.Demands)
	}

	for i, capacity := range sc.Capacities {
		wh := sc.Warehouses[rng.Intn(len(sc.Warehouses))]
		v := &Vehicle{ID: i + 1, Capacity: capacity, Loads: map[Good]int{}, Warehouse: wh}
		for _, g := range sc.Goods {
			v.Loads[g] = 0
		}
		s.vehicles = append(s.vehicles, v)
	}

	for _, v := range s.vehicles {
		amounts := s.initialLoad(v)
		for g, n := range amounts {
			v.Loads[g] += n
		}
		s.addStop(v, v.Warehouse, OpInitialLoad, amounts, -1)
	}

	for _, idx := range order {
		switch sc.Points[idx].Type {
		case Delivery:
			s.handleDelivery(idx)
		case Pickup:
			s.handlePickup(idx)
		}
	}

	unmet := map[Good]int{}
	for _, rem := range s.remaining {
		for g, n := range rem {
			if n < 0 {
				n = -n
			}
			unmet[g] += n
		}
	}
	return &PlanResult{Vehicles: s.vehicles, Unmet: unmet}
}

// initialLoad splits a quarter of capacity evenly across good types. Not
// demand-aware; the search compensates through routing.
func (s *simulation) initialLoad(v *Vehicle) map[Good]int {
	amounts := make(map[Good]int, len(s.sc.Goods))
	per := 0
	if len(s.sc.Goods) > 0 {
		per = (v.Capacity / 4) / len(s.sc.Goods)
	}
	for _, g := range s.sc.Goods {
		amounts[g] = per
	}
	return amounts
}

func (s *simulation) handleDelivery(idx int) {
	pt := s.sc.Points[idx]
	for _, g := range s.sc.Goods {
		need := s.remaining[idx][g]
		if need <= 0 {
			continue
		}
		for need > 0 {
			v := s.selectForDelivery(pt, g, need)
			if v == nil {
				break // demand left unmet
			}
			if v.Loads[g] == 0 {
				wh := v.NearestWarehouse(s.sc.Warehouses)
				if v.Position() != wh {
					s.addStop(v, wh, OpTravelToReload, nil, -1)
				}
				reload := min(need, v.Capacity-v.TotalLoad()+v.Loads[g])
				v.Loads[g] += reload
				s.addStop(v, wh, OpReload, map[Good]int{g: reload}, -1)
			}
			amount := min(v.Loads[g], need)
			if amount <= 0 {
				break
			}
			v.Loads[g] -= amount
			s.remaining[idx][g] -= amount
			need -= amount
			s.addStop(v, pt, OpDelivery, map[Good]int{g: amount}, idx)
		}
	}
}

func (s *simulation) handlePickup(idx int) {
	pt := s.sc.Points[idx]
	for _, g := range s.sc.Goods {
		if s.remaining[idx][g] >= 0 {
			continue
		}
		need := -s.remaining[idx][g]
		for need > 0 {
			v := s.selectForPickup(pt, need)
			if v == nil {
				break
			}
			amount := min(v.Capacity-v.TotalLoad(), need)
			if amount <= 0 {
				break
			}
			v.Loads[g] += amount
			s.remaining[idx][g] += amount
			need -= amount
			s.addStop(v, pt, OpPickup, map[Good]int{g: amount}, idx)

			// Trip complete once the vehicle is ≥80% full: dump everything
			// at the nearest depot.
			if float64(v.TotalLoad()) >= 0.8*float64(v.Capacity) {
				wh := v.NearestWarehouse(s.sc.Warehouses)
				for g2 := range v.Loads {
					v.Loads[g2] = 0
				}
				s.addStop(v, wh, OpUnloadIfFull, nil, -1)
			}
		}
	}
}

// addStop appends a stop record with post-operation snapshots. pointIdx < 0
// marks a warehouse stop (no remaining-demand snapshot).
func (s *simulation) addStop(v *Vehicle, pt *Point, op StopOp, amounts map[Good]int, pointIdx int) {
	if amounts == nil {
		amounts = map[Good]int{}
	} else {
		amounts = cloneDemands(amounts)
	}
	stop := Stop{Point: pt, Op: op, Amounts: amounts, Load: cloneDemands(v.Loads)}
	if pointIdx >= 0 {
		stop.Remaining = cloneDemands(s.remaining[pointIdx])
	}
	v.Route = append(v.Route, stop)
}

package model

import (
	"fmt"
	"sort"

	"fleetroute/internal/opt"
)

// BuildScenario converts the stored payload into the solver's form. Point
// types are inferred from demand sign; goods not listed explicitly are
// collected from the points and sorted.
func BuildScenario(in *Scenario) (*opt.Scenario, error) {
	if len(in.Warehouses) == 0 {
		return nil, fmt.Errorf("scenario has no warehouses")
	}
	if len(in.Points) == 0 {
		return nil, fmt.Errorf("scenario has no service points")
	}
	if len(in.Capacities) == 0 {
		return nil, fmt.Errorf("scenario has no vehicle capacities")
	}

	sc := &opt.Scenario{Capacities: append([]int(nil), in.Capacities...)}
	for i, w := range in.Warehouses {
		label := w.Label
		if label == "" {
			label = fmt.Sprintf("Warehouse %d (%g,%g)", i+1, w.X, w.Y)
		}
		sc.Warehouses = append(sc.Warehouses, opt.NewWarehouse(w.X, w.Y, label))
	}
	seen := map[opt.Good]bool{}
	for i, p := range in.Points {
		if len(p.Demands) == 0 {
			return nil, fmt.Errorf("point %d has no demands", i)
		}
		demands := make(map[opt.Good]int, len(p.Demands))
		for g, n := range p.Demands {
			demands[opt.Good(g)] = n
			seen[opt.Good(g)] = true
		}
		label := p.Label
		if label == "" {
			label = fmt.Sprintf("Point (%g,%g)", p.X, p.Y)
		}
		sc.Points = append(sc.Points, opt.NewPoint(p.X, p.Y, label, demands))
	}

	if len(in.Goods) > 0 {
		for _, g := range in.Goods {
			sc.Goods = append(sc.Goods, opt.Good(g))
		}
	} else {
		for g := range seen {
			sc.Goods = append(sc.Goods, g)
		}
		sort.Slice(sc.Goods, func(i, j int) bool { return sc.Goods[i] < sc.Goods[j] })
	}
	return sc, nil
}

// ScenarioPayload converts a solver scenario back into the stored form, used
// by the generator endpoint and the CLI.
func ScenarioPayload(sc *opt.Scenario) *Scenario {
	out := &Scenario{Capacities: append([]int(nil), sc.Capacities...)}
	for _, g := range sc.Goods {
		out.Goods = append(out.Goods, string(g))
	}
	for _, w := range sc.Warehouses {
		out.Warehouses = append(out.Warehouses, PointIn{X: w.X, Y: w.Y, Label: w.Label})
	}
	for _, p := range sc.Points {
		out.Points = append(out.Points, PointIn{X: p.X, Y: p.Y, Label: p.Label, Demands: demandsOut(p.Demands)})
	}
	return out
}

// RoutesFrom flattens simulated vehicles into the API read model. Per-route
// distance covers the legs between recorded stops; the solve-level distance
// additionally includes each vehicle's closing leg.
func RoutesFrom(vehicles []*opt.Vehicle) []RouteOut {
	routes := make([]RouteOut, 0, len(vehicles))
	for _, v := range vehicles {
		r := RouteOut{
			VehicleID: v.ID,
			Capacity:  v.Capacity,
			Delivered: map[string]int{},
			PickedUp:  map[string]int{},
		}
		if v.Warehouse != nil {
			r.Warehouse = v.Warehouse.Label
		}
		for i, st := range v.Route {
			if i > 0 {
				r.Distance += v.Route[i-1].Point.DistanceTo(st.Point)
			}
			out := StopOut{
				Label:     st.Point.Label,
				X:         st.Point.X,
				Y:         st.Point.Y,
				Warehouse: st.Point.Type == opt.Warehouse,
				Op:        st.Op.String(),
				Amounts:   demandsOut(st.Amounts),
				Load:      demandsOut(st.Load),
			}
			if st.Remaining != nil {
				out.Remaining = demandsOut(st.Remaining)
			}
			r.Stops = append(r.Stops, out)
			switch st.Op {
			case opt.OpDelivery:
				for g, n := range st.Amounts {
					r.Delivered[string(g)] += n
				}
			case opt.OpPickup:
				for g, n := range st.Amounts {
					r.PickedUp[string(g)] += n
				}
			}
		}
		routes = append(routes, r)
	}
	return routes
}

func UnmetFrom(unmet map[opt.Good]int) map[string]int {
	out := make(map[string]int, len(unmet))
	for g, n := range unmet {
		if n != 0 {
			out[string(g)] = n
		}
	}
	return out
}

func MetricsFrom(m opt.Metrics) *SolveMetrics {
	out := &SolveMetrics{
		Generations:  m.Generations,
		Evaluations:  m.Evaluations,
		Improvements: m.Improvements,
		BestDistance: m.BestDistance,
	}
	for _, s := range m.Snapshots {
		out.Snapshots = append(out.Snapshots, GenSnapshot{Generation: s.Generation, BestDistance: s.BestDistance})
	}
	return out
}

// EngineConfig merges request overrides onto stored defaults.
func EngineConfig(defaults SolverConfig, req SolveRequest) opt.Config {
	cfg := opt.Config{
		PopulationSize: defaults.PopulationSize,
		Generations:    defaults.Generations,
		MutationRate:   defaults.MutationRate,
		TournamentSize: defaults.TournamentSize,
		Seed:           req.Seed,
	}
	if req.Config.PopulationSize != 0 {
		cfg.PopulationSize = req.Config.PopulationSize
	}
	if req.Config.Generations != 0 {
		cfg.Generations = req.Config.Generations
	}
	if req.Config.MutationRate != 0 {
		cfg.MutationRate = req.Config.MutationRate
	}
	if req.Config.TournamentSize != 0 {
		cfg.TournamentSize = req.Config.TournamentSize
	}
	return cfg
}

func demandsOut(src map[opt.Good]int) map[string]int {
	out := make(map[string]int, len(src))
	for g, n := range src {
		out[string(g)] = n
	}
	return out
}

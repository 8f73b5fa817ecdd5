package api

import (
	"fmt"

	"fleetroute/internal/model"
)

func validateScenarioIn(in *model.ScenarioIn) error {
	if len(in.Warehouses) == 0 {
		return fmt.Errorf("at least one warehouse required")
	}
	if len(in.Points) == 0 {
		return fmt.Errorf("at least one service point required")
	}
	if len(in.Capacities) == 0 {
		return fmt.Errorf("at least one vehicle capacity required")
	}
	for i, c := range in.Capacities {
		if c <= 0 {
			return fmt.Errorf("capacity %d must be positive, got %d", i+1, c)
		}
	}
	for i, p := range in.Points {
		if len(p.Demands) == 0 {
			return fmt.Errorf("point %d has no demands", i)
		}
	}
	return nil
}

func validateSolveRequest(req *model.SolveRequest) error {
	if req.ScenarioID == "" {
		return fmt.Errorf("scenarioId required")
	}
	return validateSolverConfig(&req.Config)
}

func validateSolverConfig(cfg *model.SolverConfig) error {
	if cfg.PopulationSize < 0 || (cfg.PopulationSize > 0 && cfg.PopulationSize < 2) {
		return fmt.Errorf("populationSize must be >= 2")
	}
	if cfg.Generations < 0 {
		return fmt.Errorf("generations must be >= 1")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return fmt.Errorf("mutationRate must be in [0,1]")
	}
	if cfg.TournamentSize < 0 {
		return fmt.Errorf("tournamentSize must be >= 1")
	}
	if cfg.TournamentSize > 0 && cfg.PopulationSize > 0 && cfg.TournamentSize > cfg.PopulationSize {
		return fmt.Errorf("tournamentSize must not exceed populationSize")
	}
	return nil
}

// Command solve runs the route optimizer once from the command line: load or
// generate a scenario, search, and write the plan report plus an optional SVG
// plot.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"fleetroute/internal/buildinfo"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/report"
	"fleetroute/internal/scenario"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "scenario file (.json or .csv); omit to generate one")
		seed         = flag.Int64("seed", 0, "random seed (0 = time-based)")
		popSize      = flag.Int("population", 50, "population size")
		generations  = flag.Int("generations", 100, "number of generations")
		mutationRate = flag.Float64("mutation", 0.2, "mutation rate [0,1]")
		tournament   = flag.Int("tournament", 3, "tournament size")
		deliveries   = flag.Int("deliveries", 20, "generated delivery points")
		pickups      = flag.Int("pickups", 10, "generated pickup points")
		goodsFlag    = flag.String("goods", "parcels", "generated goods, comma-separated")
		plotPath     = flag.String("plot", "", "write an SVG plot to this path")
		jsonOut      = flag.Bool("json", false, "print the solve result as JSON instead of a report")
		quiet        = flag.Bool("quiet", false, "suppress per-generation progress")
		version      = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.Version)
		return
	}

	sc, err := loadScenario(*scenarioPath, *goodsFlag, *deliveries, *pickups, *seed)
	if err != nil {
		log.Fatalf("solve: %v", err)
	}

	cfg := opt.Config{
		PopulationSize: *popSize,
		Generations:    *generations,
		MutationRate:   *mutationRate,
		TournamentSize: *tournament,
		Seed:           *seed,
	}
	if !*quiet {
		cfg.OnGeneration = func(gen int, best float64) {
			if gen%10 == 0 || gen == *generations-1 {
				log.Printf("generation %d: best distance %.2f", gen, best)
			}
		}
	}

	eng, err := opt.NewEngine(sc, cfg)
	if err != nil {
		log.Fatalf("solve: %v", err)
	}

	start := time.Now()
	sol := eng.Run()
	if !*quiet {
		log.Printf("search finished in %s after %d evaluations", time.Since(start).Round(time.Millisecond), sol.Metrics.Evaluations)
	}

	solve := model.Solve{
		Status:      model.SolveCompleted,
		Seed:        *seed,
		Distance:    sol.Distance,
		Routes:      model.RoutesFrom(sol.Vehicles),
		Unmet:       model.UnmetFrom(sol.Unmet),
		Metrics:     model.MetricsFrom(sol.Metrics),
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(solve); err != nil {
			log.Fatalf("solve: encode result: %v", err)
		}
	} else if err := report.WriteText(os.Stdout, &solve); err != nil {
		log.Fatalf("solve: write report: %v", err)
	}

	if *plotPath != "" {
		f, err := os.Create(*plotPath)
		if err != nil {
			log.Fatalf("solve: %v", err)
		}
		defer f.Close()
		if err := report.WriteSVG(f, &solve, model.ScenarioPayload(sc)); err != nil {
			log.Fatalf("solve: write plot: %v", err)
		}
		if !*quiet {
			log.Printf("plot written to %s", *plotPath)
		}
	}
}

func loadScenario(path, goods string, deliveries, pickups int, seed int64) (*opt.Scenario, error) {
	if path == "" {
		p := scenario.Params{
			DeliveryPoints: deliveries,
			PickupPoints:   pickups,
			Seed:           seed,
		}
		for _, g := range strings.Split(goods, ",") {
			if g = strings.TrimSpace(g); g != "" {
				p.Goods = append(p.Goods, opt.Good(g))
			}
		}
		return scenario.Generate(p), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".csv") {
		return scenario.FromCSV(f)
	}
	var stored model.Scenario
	if err := json.NewDecoder(f).Decode(&stored); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return model.BuildScenario(&stored)
}

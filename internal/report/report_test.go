package report

import (
	"strings"
	"testing"

	"fleetroute/internal/model"
)

func sampleSolve() *model.Solve {
	return &model.Solve{
		ID:       "sol_1",
		Status:   model.SolveCompleted,
		Distance: 123.456,
		Unmet:    map[string]int{"oranges": 30},
		Routes: []model.RouteOut{
			{
				VehicleID: 1,
				Capacity:  1000,
				Warehouse: "Depot North",
				Distance:  80.5,
				Stops: []model.StopOut{
					{Label: "Depot North", X: 10, Y: 10, Warehouse: true, Op: "initial_load", Load: map[string]int{"oranges": 250}},
					{Label: "Store A", X: 30, Y: 44, Op: "delivery", Amounts: map[string]int{"oranges": 120}, Load: map[string]int{"oranges": 130}, Remaining: map[string]int{"oranges": 0}},
					{Label: "Farm B", X: 60, Y: 20, Op: "pickup", Amounts: map[string]int{"oranges": 80}, Load: map[string]int{"oranges": 210}, Remaining: map[string]int{"oranges": 0}},
				},
			},
			{
				VehicleID: 2,
				Capacity:  1500,
				Warehouse: "Depot South",
				Distance:  42.9,
				Stops: []model.StopOut{
					{Label: "Depot South", X: 90, Y: 90, Warehouse: true, Op: "initial_load", Load: map[string]int{"oranges": 375}},
					{Label: "Depot South", X: 90, Y: 90, Warehouse: true, Op: "travel_to_reload", Load: map[string]int{"oranges": 0}},
					{Label: "Depot South", X: 90, Y: 90, Warehouse: true, Op: "reload_specific_good", Amounts: map[string]int{"oranges": 200}, Load: map[string]int{"oranges": 200}},
					{Label: "Depot South", X: 90, Y: 90, Warehouse: true, Op: "unload_if_full", Load: map[string]int{"oranges": 0}},
				},
			},
		},
	}
}

func TestWriteText(t *testing.T) {
	var sb strings.Builder
	if err := WriteText(&sb, sampleSolve()); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		"=== VEHICLE ROUTING PROBLEM ===",
		"Number of vehicles: 2",
		"Vehicle 1 (Capacity: 1000kg)",
		"Assigned Warehouse: Depot North",
		"[Delivery] Store A | Delivered: oranges:120kg",
		"[Pickup] Farm B | Picked up: oranges:80kg",
		"Travel to reload",
		"Reloaded: oranges:200kg",
		"Unloaded to: 0kg",
		"Vehicle 1 Total Distance: 80.50 km",
		"GRAND TOTAL DISTANCE: 123.40 km",
		"UNMET DEMAND: oranges:30kg",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q\n---\n%s", want, out)
		}
	}
}

func TestWriteTextNoUnmet(t *testing.T) {
	solve := sampleSolve()
	solve.Unmet = nil
	var sb strings.Builder
	if err := WriteText(&sb, solve); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sb.String(), "UNMET DEMAND") {
		t.Fatal("unmet section should be omitted when everything was served")
	}
}

func TestAmountsDeterministic(t *testing.T) {
	m := map[string]int{"oranges": 120, "apples": -50}
	want := "apples:50kg, oranges:120kg"
	for i := 0; i < 20; i++ {
		if got := amounts(m); got != want {
			t.Fatalf("amounts = %q, want %q", got, want)
		}
	}
	if got := amounts(nil); got != "0kg" {
		t.Fatalf("amounts(nil) = %q", got)
	}
}

func TestWriteSVG(t *testing.T) {
	scenario := &model.Scenario{
		Warehouses: []model.PointIn{{X: 10, Y: 10, Label: "Depot North"}, {X: 90, Y: 90, Label: "Depot South"}},
		Points: []model.PointIn{
			{X: 30, Y: 44, Label: "Store A", Demands: map[string]int{"oranges": 120}},
			{X: 60, Y: 20, Label: "Farm B", Demands: map[string]int{"oranges": -80}},
		},
		Capacities: []int{1000, 1500},
	}
	var sb strings.Builder
	if err := WriteSVG(&sb, sampleSolve(), scenario); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	if !strings.HasPrefix(out, "<svg") || !strings.HasSuffix(strings.TrimSpace(out), "</svg>") {
		t.Fatal("output is not a complete SVG document")
	}
	if strings.Count(out, "<polyline") != 2 {
		t.Fatalf("expected one polyline per route, got %d", strings.Count(out, "<polyline"))
	}
	if strings.Count(out, `fill="red"`) != 2 {
		t.Fatalf("expected one red square per warehouse, got %d", strings.Count(out, `fill="red"`))
	}
	for _, want := range []string{"Vehicle 1 (Cap: 1000kg)", "Vehicle 2 (Cap: 1500kg)", "Total: 123.46 km"} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %q", want)
		}
	}
}

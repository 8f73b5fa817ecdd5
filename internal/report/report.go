package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"fleetroute/internal/model"
)

const rule = "============================================================"

// WriteText renders the stop-by-stop route listing. Layout follows the
// classic solver output: one block per vehicle with operation, amounts,
// remaining demand and load after each stop, then per-vehicle and grand total
// distances and the unmet-demand summary.
func WriteText(w io.Writer, solve *model.Solve) error {
	bw := &errWriter{w: w}
	bw.printf("=== VEHICLE ROUTING PROBLEM ===\n")
	bw.printf("Number of vehicles: %d\n", len(solve.Routes))

	grand := 0.0
	for _, r := range solve.Routes {
		bw.printf("\n%s\n", rule)
		bw.printf("Vehicle %d (Capacity: %dkg)\n", r.VehicleID, r.Capacity)
		if r.Warehouse != "" {
			bw.printf("Assigned Warehouse: %s\n", r.Warehouse)
		}
		bw.printf("%s\n", rule)

		for i, st := range r.Stops {
			switch st.Op {
			case "initial_load":
				bw.printf("Stop %d: %s | Initial load: %s\n", i+1, st.Label, amounts(st.Load))
			case "reload_specific_good":
				bw.printf("Stop %d: %s | Reloaded: %s | Load: %s\n", i+1, st.Label, amounts(st.Amounts), amounts(st.Load))
			case "travel_to_reload":
				bw.printf("Stop %d: %s | Travel to reload\n", i+1, st.Label)
			case "unload_if_full":
				bw.printf("Stop %d: %s | Unloaded to: 0kg\n", i+1, st.Label)
			case "pickup":
				bw.printf("Stop %d: [Pickup] %s | Picked up: %s | Remaining pickup: %s | Vehicle load after pickup: %s\n",
					i+1, st.Label, amounts(st.Amounts), amounts(st.Remaining), amounts(st.Load))
			default:
				bw.printf("Stop %d: [Delivery] %s | Delivered: %s | Remaining demand: %s | Vehicle load after delivery: %s\n",
					i+1, st.Label, amounts(st.Amounts), amounts(st.Remaining), amounts(st.Load))
			}
		}

		bw.printf("\nVehicle %d Total Distance: %.2f km\n", r.VehicleID, r.Distance)
		grand += r.Distance
	}

	bw.printf("\n%s\n", rule)
	bw.printf("GRAND TOTAL DISTANCE: %.2f km\n", grand)
	if len(solve.Unmet) > 0 {
		bw.printf("UNMET DEMAND: %s\n", amounts(solve.Unmet))
	}
	bw.printf("%s\n", rule)
	return bw.err
}

// amounts formats a per-good map deterministically, e.g. "apples:50, oranges:120".
func amounts(m map[string]int) string {
	if len(m) == 0 {
		return "0kg"
	}
	goods := make([]string, 0, len(m))
	for g := range m {
		goods = append(goods, g)
	}
	sort.Strings(goods)
	parts := make([]string, 0, len(goods))
	for _, g := range goods {
		n := m[g]
		if n < 0 {
			n = -n
		}
		parts = append(parts, fmt.Sprintf("%s:%dkg", g, n))
	}
	return strings.Join(parts, ", ")
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

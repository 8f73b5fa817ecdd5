package scenario

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"fleetroute/internal/opt"
)

// FromCSV parses a scenario from CSV. The expected layout is one record per
// entity with the header "kind,x,y,label,data":
//
//	warehouse,10,10,Depot North,
//	delivery,30,44,Store A,oranges=120;apples=50
//	pickup,60,20,Farm B,oranges=80
//	vehicle,,,Truck 1,1000
//
// Delivery/pickup amounts are given positive; the kind column decides the
// sign. Goods are collected from the demand lists and sorted.
func FromCSV(r io.Reader) (*opt.Scenario, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true

	sc := &opt.Scenario{}
	goods := map[opt.Good]bool{}
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		line++
		kind := strings.ToLower(strings.TrimSpace(rec[0]))
		if line == 1 && kind == "kind" {
			continue
		}
		label := strings.TrimSpace(rec[3])
		switch kind {
		case "warehouse":
			x, y, err := parseCoords(rec[1], rec[2])
			if err != nil {
				return nil, fmt.Errorf("csv line %d: %w", line, err)
			}
			sc.Warehouses = append(sc.Warehouses, opt.NewWarehouse(x, y, label))
		case "delivery", "pickup":
			x, y, err := parseCoords(rec[1], rec[2])
			if err != nil {
				return nil, fmt.Errorf("csv line %d: %w", line, err)
			}
			demands, err := parseDemands(rec[4])
			if err != nil {
				return nil, fmt.Errorf("csv line %d: %w", line, err)
			}
			if kind == "pickup" {
				for g := range demands {
					demands[g] = -demands[g]
				}
			}
			for g := range demands {
				goods[g] = true
			}
			sc.Points = append(sc.Points, opt.NewPoint(x, y, label, demands))
		case "vehicle":
			capacity, err := strconv.Atoi(strings.TrimSpace(rec[4]))
			if err != nil {
				return nil, fmt.Errorf("csv line %d: bad vehicle capacity %q", line, rec[4])
			}
			sc.Capacities = append(sc.Capacities, capacity)
		default:
			return nil, fmt.Errorf("csv line %d: unknown kind %q", line, rec[0])
		}
	}

	for g := range goods {
		sc.Goods = append(sc.Goods, g)
	}
	sort.Slice(sc.Goods, func(i, j int) bool { return sc.Goods[i] < sc.Goods[j] })
	return sc, nil
}

func parseCoords(xs, ys string) (float64, float64, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad x coordinate %q", xs)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad y coordinate %q", ys)
	}
	return x, y, nil
}

// parseDemands reads "good=amount;good=amount".
func parseDemands(s string) (map[opt.Good]int, error) {
	out := map[opt.Good]int{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("bad demand entry %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("bad demand amount %q", val)
		}
		out[opt.Good(strings.TrimSpace(name))] = n
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("point has no demands")
	}
	return out, nil
}

package opt

import "math"

// selectForDelivery picks the cheapest vehicle able to serve `need` units of
// good g at pt. Vehicles already carrying the good compete on direct distance
// from their current position, with ties broken toward the vehicle whose load
// better covers the full need. Every vehicle with enough headroom after
// setting aside its other goods also competes with a reload detour, scored as
// distance(position→nearest warehouse) + distance(warehouse→point).
func (s *simulation) selectForDelivery(pt *Point, g Good, need int) *Vehicle {
	var best *Vehicle
	minCost := math.Inf(1)

	for _, v := range s.vehicles {
		pos := v.Position()
		load := v.Loads[g]

		if load > 0 {
			cost := pos.DistanceTo(pt)
			switch {
			case cost < minCost:
				minCost = cost
				best = v
			case cost == minCost && best != nil:
				if load >= need && best.Loads[g] < need {
					best = v
				} else if load > best.Loads[g] && best.Loads[g] < need {
					best = v
				}
			}
		}

		otherLoad := v.TotalLoad() - load
		if v.Capacity-otherLoad >= need {
			wh := v.NearestWarehouse(s.sc.Warehouses)
			if wh == nil {
				continue
			}
			trip := pos.DistanceTo(wh) + wh.DistanceTo(pt)
			if trip < minCost {
				minCost = trip
				best = v
			}
		}
	}
	return best
}

// selectForPickup picks the closest vehicle with spare capacity for the whole
// amount. When none can take it all, it falls back to the vehicle with the
// most spare capacity overall, as long as at least one unit fits.
func (s *simulation) selectForPickup(pt *Point, need int) *Vehicle {
	var best *Vehicle
	minCost := math.Inf(1)

	for _, v := range s.vehicles {
		if v.TotalLoad()+need > v.Capacity {
			continue
		}
		if cost := v.Position().DistanceTo(pt); cost < minCost {
			minCost = cost
			best = v
		}
	}
	if best != nil {
		return best
	}

	for _, v := range s.vehicles {
		spare := v.Capacity - v.TotalLoad()
		if spare < 1 {
			continue
		}
		if best == nil || spare > best.Capacity-best.TotalLoad() {
			best = v
		}
	}
	return best
}

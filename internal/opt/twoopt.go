package opt

// twoOpt applies a 2-opt local search to one visitation order. The route is
// evaluated with a virtual closing stop at the warehouse nearest the first
// point; reversals never move the first point or the closing stop.
func (e *Engine) twoOpt(order []int) []int {
	if len(order) < 3 {
		return order
	}
	route := make([]*Point, len(order)+1)
	for i, idx := range order {
		route[i] = e.sc.Points[idx]
	}
	route[len(order)] = nearestTo(route[0], e.sc.Warehouses)

	improved := true
	for improved {
		improved = false
		best := openRouteDistance(route)
		for i := 1; i < len(route)-2; i++ {
			for j := i + 1; j < len(route)-1; j++ {
				cand := reverseSegment(route, i, j)
				if d := openRouteDistance(cand); d < best {
					route = cand
					best = d
					improved = true
				}
			}
		}
	}

	index := make(map[*Point]int, len(e.sc.Points))
	for i, p := range e.sc.Points {
		index[p] = i
	}
	out := make([]int, 0, len(order))
	for _, p := range route[:len(route)-1] {
		out = append(out, index[p])
	}
	return out
}

func reverseSegment(route []*Point, i, j int) []*Point {
	out := make([]*Point, len(route))
	copy(out, route[:i])
	pos := i
	for k := j; k >= i; k-- {
		out[pos] = route[k]
		pos++
	}
	copy(out[pos:], route[j+1:])
	return out
}

// openRouteDistance sums consecutive legs; route already carries the closing
// warehouse as its last element.
func openRouteDistance(route []*Point) float64 {
	total := 0.0
	for i := 0; i < len(route)-1; i++ {
		total += route[i].DistanceTo(route[i+1])
	}
	return total
}

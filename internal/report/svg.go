package report

import (
	"fmt"
	"io"
	"math"

	"fleetroute/internal/model"
)

var routeColors = []string{
	"#1f77b4", "#2ca02c", "#d62728", "#ff7f0e",
	"#9467bd", "#8c564b", "#e377c2", "#7f7f7f",
}

// WriteSVG renders the routes as an SVG map: one polyline per vehicle,
// crosses for service points, squares for warehouses and a small legend.
func WriteSVG(w io.Writer, solve *model.Solve, scenario *model.Scenario) error {
	const (
		width   = 900.0
		height  = 600.0
		margin  = 50.0
		legendW = 220.0
	)

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	expand := func(x, y float64) {
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	for _, p := range scenario.Warehouses {
		expand(p.X, p.Y)
	}
	for _, p := range scenario.Points {
		expand(p.X, p.Y)
	}
	if minX > maxX {
		minX, minY, maxX, maxY = 0, 0, 100, 100
	}
	spanX, spanY := maxX-minX, maxY-minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	plotW := width - legendW - 2*margin
	plotH := height - 2*margin
	tx := func(x float64) float64 { return margin + (x-minX)/spanX*plotW }
	// SVG y axis grows downward.
	ty := func(y float64) float64 { return height - margin - (y-minY)/spanY*plotH }

	bw := &errWriter{w: w}
	bw.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n", width, height, width, height)
	bw.printf(`<rect width="%g" height="%g" fill="white"/>`+"\n", width, height)
	bw.printf(`<text x="%g" y="30" font-family="sans-serif" font-size="18">Vehicle Routing Problem</text>`+"\n", margin)

	for i, r := range solve.Routes {
		if len(r.Stops) == 0 {
			continue
		}
		color := routeColors[i%len(routeColors)]
		bw.printf(`<polyline fill="none" stroke="%s" stroke-width="1.5" points="`, color)
		for _, st := range r.Stops {
			bw.printf("%.1f,%.1f ", tx(st.X), ty(st.Y))
		}
		bw.printf(`"/>` + "\n")
		for _, st := range r.Stops {
			bw.printf(`<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`+"\n", tx(st.X), ty(st.Y), color)
		}
	}

	for _, p := range scenario.Points {
		x, y := tx(p.X), ty(p.Y)
		bw.printf(`<path d="M%.1f %.1f L%.1f %.1f M%.1f %.1f L%.1f %.1f" stroke="black" stroke-width="1.5"/>`+"\n",
			x-4, y-4, x+4, y+4, x-4, y+4, x+4, y-4)
	}
	for _, p := range scenario.Warehouses {
		x, y := tx(p.X), ty(p.Y)
		bw.printf(`<rect x="%.1f" y="%.1f" width="12" height="12" fill="red" opacity="0.8"/>`+"\n", x-6, y-6)
		bw.printf(`<circle cx="%.1f" cy="%.1f" r="14" fill="none" stroke="red" opacity="0.5"/>`+"\n", x, y)
	}

	lx := width - legendW + 10
	ly := margin
	for i, r := range solve.Routes {
		color := routeColors[i%len(routeColors)]
		bw.printf(`<line x1="%g" y1="%g" x2="%g" y2="%g" stroke="%s" stroke-width="2"/>`+"\n", lx, ly, lx+24, ly, color)
		bw.printf(`<text x="%g" y="%g" font-family="sans-serif" font-size="12">Vehicle %d (Cap: %dkg)</text>`+"\n", lx+30, ly+4, r.VehicleID, r.Capacity)
		ly += 20
	}
	bw.printf(`<text x="%g" y="%g" font-family="sans-serif" font-size="12">Total: %s km</text>`+"\n", lx, ly+8, fmt.Sprintf("%.2f", solve.Distance))

	bw.printf("</svg>\n")
	return bw.err
}

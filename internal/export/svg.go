package export

import (
	"fmt"
	"math"
	"strings"
)

// Path is one polyline drawn by TrajectoryToSVG.
type Path struct {
	Label  string
	Stroke string
	X, Y   []float64
}

// TrajectoryToSVG draws the paths on a shared, padded scale with equal
// units on both axes. Each path gets a start dot and a label in the
// legend. NaN samples break the line.
func TrajectoryToSVG(paths []Path, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid size %dx%d", width, height)
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	points := 0
	for _, p := range paths {
		if len(p.X) != len(p.Y) {
			return "", fmt.Errorf("path %q: %d x values for %d y values", p.Label, len(p.X), len(p.Y))
		}
		for i := range p.X {
			if math.IsNaN(p.X[i]) || math.IsNaN(p.Y[i]) {
				continue
			}
			minX, maxX = math.Min(minX, p.X[i]), math.Max(maxX, p.X[i])
			minY, maxY = math.Min(minY, p.Y[i]), math.Max(maxY, p.Y[i])
			points++
		}
	}
	if points < 2 {
		return "", fmt.Errorf("need at least 2 points, got %d", points)
	}

	// Add padding
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	span *= 1.2
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	scale := math.Min(float64(width), float64(height)) / span
	toPx := func(x, y float64) (float64, float64) {
		return float64(width)/2 + (x-cx)*scale, float64(height)/2 - (y-cy)*scale
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	ox, oy := toPx(0, 0)
	fmt.Fprintf(&sb, `<g stroke="#333333" stroke-width="1">
<line x1="0" y1="%.1f" x2="%d" y2="%.1f"/>
<line x1="%.1f" y1="0" x2="%.1f" y2="%d"/>
</g>
`, oy, width, oy, ox, ox, height)

	for n, p := range paths {
		stroke := p.Stroke
		if stroke == "" {
			stroke = "#00ff00"
		}

		var d strings.Builder
		pen := false
		first := true
		var sx, sy float64
		for i := range p.X {
			if math.IsNaN(p.X[i]) || math.IsNaN(p.Y[i]) {
				pen = false
				continue
			}
			x, y := toPx(p.X[i], p.Y[i])
			if first {
				sx, sy, first = x, y, false
			}
			if pen {
				fmt.Fprintf(&d, " L%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&d, " M%.1f,%.1f", x, y)
				pen = true
			}
		}
		if first {
			continue
		}

		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="%s"/>
`, stroke, strings.TrimSpace(d.String()))
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>
`, sx, sy, stroke)
		if p.Label != "" {
			fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*n, stroke, escape(p.Label))
		}
	}

	sb.WriteString("</svg>\n")
	return sb.String(), nil
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return escaper.Replace(s) }

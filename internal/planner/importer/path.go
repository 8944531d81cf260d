package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"safety-planner/internal/planner/geometry"
)

// ============================================================
// Path Parser
// ============================================================

var pathCommand = regexp.MustCompile(`([MmLlHhVvZz])([^MmLlHhVvZz]*)`)

// parsePath разбирает SVG path из прямых сегментов (M, L, H, V, Z и их
// относительные варианты) в ломаную. Несколько пар координат после M/L
// трактуются как продолжение линии. Z замыкает ломаную первой точкой
// текущего подпути.
func parsePath(d string) ([]geometry.Point, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, fmt.Errorf("empty path")
	}

	var points []geometry.Point
	var cur, start geometry.Point

	for _, match := range pathCommand.FindAllStringSubmatch(d, -1) {
		cmd := match[1]
		coords := parseCoords(match[2])
		relative := strings.ToLower(cmd) == cmd

		switch strings.ToUpper(cmd) {
		case "M", "L":
			for i := 0; i+1 < len(coords); i += 2 {
				next := geometry.Point{X: coords[i], Y: coords[i+1]}
				if relative {
					next = cur.Add(next)
				}
				cur = next
				if i == 0 && strings.ToUpper(cmd) == "M" {
					start = cur
				}
				points = append(points, cur)
			}

		case "H":
			for _, x := range coords {
				if relative {
					cur.X += x
				} else {
					cur.X = x
				}
				points = append(points, cur)
			}

		case "V":
			for _, y := range coords {
				if relative {
					cur.Y += y
				} else {
					cur.Y = y
				}
				points = append(points, cur)
			}

		case "Z":
			if len(points) > 0 {
				cur = start
				points = append(points, start)
			}
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("path %q has no drawable points", d)
	}
	return points, nil
}

func parseCoords(s string) []float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	s = strings.ReplaceAll(s, ",", " ")
	var coords []float64
	for _, part := range strings.Fields(s) {
		if val, err := strconv.ParseFloat(part, 64); err == nil {
			coords = append(coords, val)
		}
	}
	return coords
}

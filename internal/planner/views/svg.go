package views

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
)

// ============================================================
// SVG export
// ============================================================

// ExportSVG собирает SVG видимых слоев в координатах плана. Имена id
// совпадают с теми, что распознает импорт: Wall_*, Room_*, Door_*,
// Window_*, поэтому экспорт можно загрузить обратно.
func ExportSVG(plan *models.Plan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("plan is nil")
	}

	bounds := PlanBounds(plan)
	width, height := bounds.Width(), bounds.Height()
	if width <= 0 {
		width = DefaultCanvas
	}
	if height <= 0 {
		height = DefaultCanvas
	}

	view := Build2D(plan, Viewport{Transform: geometry.Identity(), Width: width, Height: height})

	var elements []string
	for _, lv := range view.Layers {
		elements = append(elements, renderZones(lv)...)
	}
	for _, lv := range view.Layers {
		elements = append(elements, renderWalls(plan, lv)...)
	}
	for _, lv := range view.Layers {
		elements = append(elements, renderMarkers(plan, lv)...)
	}

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="%s %s %s %s">`,
		formatFloat(width), formatFloat(height),
		formatFloat(bounds.Min.X), formatFloat(bounds.Min.Y), formatFloat(width), formatFloat(height)))
	builder.WriteString("\n")

	for _, elem := range elements {
		builder.WriteString("  ")
		builder.WriteString(elem)
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

// ============================================================
// Element renderers
// ============================================================

// renderWalls: стена выводится прямоугольником вдоль доминирующей оси.
func renderWalls(plan *models.Plan, lv LayerView) []string {
	var out []string

	for _, wv := range lv.Walls {
		e, _ := plan.Element(wv.ID)
		w, ok := e.Wall()
		if !ok {
			continue
		}
		v1, v2 := w.Start, w.End
		thickness := w.Thickness

		dx := v2.X - v1.X
		dy := v2.Y - v1.Y

		if math.Abs(dx) >= math.Abs(dy) {
			width := math.Abs(dx)
			if width == 0 {
				width = thickness
			}
			x := math.Min(v1.X, v2.X)
			y := ((v1.Y + v2.Y) / 2) - thickness/2
			out = append(out, fmt.Sprintf(`<rect id="Wall_%s" x="%s" y="%s" width="%s" height="%s" fill="none" stroke="#000" />`,
				wv.ID, formatFloat(x), formatFloat(y), formatFloat(width), formatFloat(thickness)))
			continue
		}

		height := math.Abs(dy)
		x := ((v1.X + v2.X) / 2) - thickness/2
		y := math.Min(v1.Y, v2.Y)
		out = append(out, fmt.Sprintf(`<rect id="Wall_%s" x="%s" y="%s" width="%s" height="%s" fill="none" stroke="#000" />`,
			wv.ID, formatFloat(x), formatFloat(y), formatFloat(thickness), formatFloat(height)))
	}

	return out
}

func renderZones(lv LayerView) []string {
	var out []string

	for _, z := range lv.Zones {
		points := z.Polygon.Open()
		if len(points) < 3 {
			continue
		}

		var path strings.Builder
		path.WriteString(`<path id="Room_`)
		path.WriteString(z.ID)
		path.WriteString(`" d="M `)
		path.WriteString(formatPoint(points[0]))
		for _, p := range points[1:] {
			path.WriteString(" L ")
			path.WriteString(formatPoint(p))
		}
		path.WriteString(` Z" fill="`)
		path.WriteString(z.Color)
		path.WriteString(`" fill-opacity="0.4" stroke="#888" />`)

		out = append(out, path.String())
	}

	return out
}

// renderMarkers: проемы выводятся квадратами Door_/Window_, прочие
// точки рисуются кругами.
func renderMarkers(plan *models.Plan, lv LayerView) []string {
	var out []string
	const size = 10.0

	for _, mv := range lv.Markers {
		e, _ := plan.Element(mv.ID)
		m, ok := e.Marker()
		if !ok {
			continue
		}

		prefix := ""
		stroke := "#1f77b4"
		switch m.Metadata["opening"] {
		case "door":
			prefix, stroke = "Door_", "#d62728"
		case "window":
			prefix = "Window_"
		}

		if prefix != "" {
			out = append(out, fmt.Sprintf(`<rect id="%s%s" x="%s" y="%s" width="%s" height="%s" fill="none" stroke="%s" />`,
				prefix, mv.ID, formatFloat(mv.Position.X-size/2), formatFloat(mv.Position.Y-size/2),
				formatFloat(size), formatFloat(size), stroke))
			continue
		}
		out = append(out, fmt.Sprintf(`<circle id="Point_%s" cx="%s" cy="%s" r="%s" fill="%s" />`,
			mv.ID, formatFloat(mv.Position.X), formatFloat(mv.Position.Y), formatFloat(size/2), stroke))
	}

	return out
}

// ============================================================
// Formatting helpers
// ============================================================

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatPoint(p geometry.Point) string {
	return formatFloat(p.X) + " " + formatFloat(p.Y)
}

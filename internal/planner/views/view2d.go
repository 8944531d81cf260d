package views

import (
	"math"
	"sort"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
)

// ============================================================
// Viewport
// ============================================================

const (
	// DefaultCanvas: размер холста для пустого плана.
	DefaultCanvas = 1000.0
	// MarkerRadius: радиус попадания по точке в экранных единицах.
	MarkerRadius = 8.0
)

// Viewport переводит координаты плана в экранные.
type Viewport struct {
	Transform geometry.Transform `json:"transform"`
	Width     float64            `json:"width"`
	Height    float64            `json:"height"`
}

// Fit вписывает bounds в холст width×height с отступом margin, сохраняя
// пропорции и центрируя.
func Fit(bounds geometry.Bounds, width, height, margin float64) Viewport {
	if width <= 0 {
		width = DefaultCanvas
	}
	if height <= 0 {
		height = DefaultCanvas
	}
	vp := Viewport{Transform: geometry.Identity(), Width: width, Height: height}

	bw, bh := bounds.Width(), bounds.Height()
	availW := math.Max(width-2*margin, 1)
	availH := math.Max(height-2*margin, 1)
	switch {
	case bw <= 0 && bh <= 0:
		return vp
	case bw <= 0:
		vp.Transform.Scale = availH / bh
	case bh <= 0:
		vp.Transform.Scale = availW / bw
	default:
		vp.Transform.Scale = math.Min(availW/bw, availH/bh)
	}

	s := vp.Transform.Scale
	vp.Transform.Offset = geometry.Point{
		X: (width-bw*s)/2 - bounds.Min.X*s,
		Y: (height-bh*s)/2 - bounds.Min.Y*s,
	}
	return vp
}

// PlanBounds: габариты всех элементов плана.
func PlanBounds(plan *models.Plan) geometry.Bounds {
	var out geometry.Bounds
	first := true
	for _, e := range plan.Elements {
		b, err := e.Bounds()
		if err != nil {
			continue
		}
		if first {
			out, first = b, false
			continue
		}
		out = out.Union(b)
	}
	return out
}

// ============================================================
// 2D view
// ============================================================

type WallView struct {
	ID      string           `json:"id"`
	Outline geometry.Polygon `json:"outline"`
}

type ZoneView struct {
	ID      string           `json:"id"`
	Polygon geometry.Polygon `json:"polygon"`
	Usage   string           `json:"usage"`
	Index   float64          `json:"index"`
	Level   models.RiskLevel `json:"level,omitempty"`
	Color   string           `json:"color"`
}

type MarkerView struct {
	ID       string               `json:"id"`
	Position geometry.Point       `json:"position"`
	Category models.PointCategory `json:"category"`
}

type LayerView struct {
	Layer   models.Layer `json:"layer"`
	Walls   []WallView   `json:"walls"`
	Zones   []ZoneView   `json:"zones"`
	Markers []MarkerView `json:"markers"`
}

// View2D: экранное представление видимых слоев, снизу вверх.
type View2D struct {
	Viewport Viewport    `json:"viewport"`
	Layers   []LayerView `json:"layers"`
}

// Build2D собирает видимые слои плана в экранных координатах. Нулевой
// масштаб вьюпорта означает «вписать план в холст».
func Build2D(plan *models.Plan, vp Viewport) *View2D {
	if vp.Transform.Scale == 0 {
		vp = Fit(PlanBounds(plan), vp.Width, vp.Height, 0)
	}
	t := vp.Transform

	layers := append([]models.Layer(nil), plan.Layers...)
	sort.SliceStable(layers, func(i, j int) bool {
		if layers[i].Order != layers[j].Order {
			return layers[i].Order < layers[j].Order
		}
		return layers[i].ID < layers[j].ID
	})

	view := &View2D{Viewport: vp}
	index := make(map[string]int)
	for _, l := range layers {
		if !l.Visible {
			continue
		}
		index[l.ID] = len(view.Layers)
		view.Layers = append(view.Layers, LayerView{Layer: l})
	}

	for _, e := range plan.Elements {
		i, ok := index[e.LayerID]
		if !ok {
			continue
		}
		lv := &view.Layers[i]
		switch s := e.Shape.(type) {
		case *models.Wall:
			lv.Walls = append(lv.Walls, WallView{ID: e.ID, Outline: transformPolygon(t, s.Segment().Outline(s.Thickness))})
		case *models.Zone:
			zv := ZoneView{ID: e.ID, Polygon: transformPolygon(t, s.Polygon), Usage: s.Usage, Color: LevelColor("")}
			if s.Risk != nil {
				zv.Index = s.Risk.Index
				zv.Level = s.Risk.Level
				zv.Color = LevelColor(s.Risk.Level)
			}
			lv.Zones = append(lv.Zones, zv)
		case *models.Marker:
			lv.Markers = append(lv.Markers, MarkerView{ID: e.ID, Position: t.Apply(s.Position), Category: s.Category})
		}
	}
	return view
}

func transformPolygon(t geometry.Transform, pg geometry.Polygon) geometry.Polygon {
	out := make(geometry.Polygon, len(pg))
	for i, p := range pg {
		out[i] = t.Apply(p)
	}
	return out
}

// Select возвращает id элемента под экранной точкой. Приоритет: точки,
// затем стены, затем зоны; внутри вида сначала верхний слой.
// Заблокированные слои не выбираются.
func (v *View2D) Select(p geometry.Point) (string, bool) {
	for i := len(v.Layers) - 1; i >= 0; i-- {
		lv := v.Layers[i]
		if lv.Layer.Locked {
			continue
		}
		for _, m := range lv.Markers {
			if geometry.Distance(m.Position, p) <= MarkerRadius {
				return m.ID, true
			}
		}
	}
	for i := len(v.Layers) - 1; i >= 0; i-- {
		lv := v.Layers[i]
		if lv.Layer.Locked {
			continue
		}
		for _, w := range lv.Walls {
			if w.Outline.Contains(p) {
				return w.ID, true
			}
		}
	}
	for i := len(v.Layers) - 1; i >= 0; i-- {
		lv := v.Layers[i]
		if lv.Layer.Locked {
			continue
		}
		// Меньшая зона лежит «поверх» большей.
		var hit string
		hitArea := math.MaxFloat64
		for _, z := range lv.Zones {
			if z.Polygon.Contains(p) {
				if a := z.Polygon.Area(); a < hitArea {
					hit, hitArea = z.ID, a
				}
			}
		}
		if hit != "" {
			return hit, true
		}
	}
	return "", false
}

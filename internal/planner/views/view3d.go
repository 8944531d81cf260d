package views

import (
	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
)

// ============================================================
// 3D scene
// ============================================================

// ZoneThickness: высота призмы зоны в метрах.
const ZoneThickness = 0.05

var levelColors = map[models.RiskLevel]string{
	models.RiskLow:      "#2ca02c",
	models.RiskMedium:   "#ffbf00",
	models.RiskHigh:     "#ff7f0e",
	models.RiskCritical: "#d62728",
}

const (
	unscoredColor = "#888888"
	wallColor     = "#bdbdbd"
)

// LevelColor: цвет заливки зоны по уровню риска; без оценки серый.
func LevelColor(level models.RiskLevel) string {
	if c, ok := levelColors[level]; ok {
		return c
	}
	return unscoredColor
}

// Prism: вертикальная экструзия основания Base (метры) от Bottom до Top.
type Prism struct {
	ID          string             `json:"id"`
	Kind        models.ElementKind `json:"kind"`
	Base        geometry.Polygon   `json:"base"`
	Bottom      float64            `json:"bottom"`
	Top         float64            `json:"top"`
	Color       string             `json:"color"`
	Level       models.RiskLevel   `json:"level,omitempty"`
	Highlighted bool               `json:"highlighted"`
}

type Scene3D struct {
	PlanID string          `json:"planId"`
	Bounds geometry.Bounds `json:"bounds"`
	Prisms []Prism         `json:"prisms"`
}

// Build3D строит сцену в метрах: стены становятся прямоугольниками толщиной
// Thickness вокруг осевой линии высотой Height, зоны становятся тонкими призмами
// цвета уровня риска. Скрытые слои и точки пропускаются.
func Build3D(plan *models.Plan) *Scene3D {
	scale := plan.Scale
	if scale <= 0 {
		scale = 1
	}
	toMeters := geometry.Transform{Scale: scale}

	visible := make(map[string]bool, len(plan.Layers))
	for _, l := range plan.Layers {
		visible[l.ID] = l.Visible
	}

	scene := &Scene3D{PlanID: plan.ID}
	first := true
	for _, e := range plan.Elements {
		if !visible[e.LayerID] {
			continue
		}
		var p Prism
		switch s := e.Shape.(type) {
		case *models.Wall:
			p = Prism{
				ID:    e.ID,
				Kind:  models.KindWall,
				Base:  transformPolygon(toMeters, s.Segment().Outline(s.Thickness)),
				Top:   s.Height * scale,
				Color: wallColor,
			}
		case *models.Zone:
			p = Prism{
				ID:    e.ID,
				Kind:  models.KindZone,
				Base:  transformPolygon(toMeters, s.Polygon),
				Top:   ZoneThickness,
				Color: unscoredColor,
			}
			if s.Risk != nil {
				p.Level = s.Risk.Level
				p.Color = LevelColor(s.Risk.Level)
			}
		default:
			continue
		}

		b := p.Base.Bounds()
		if first {
			scene.Bounds, first = b, false
		} else {
			scene.Bounds = scene.Bounds.Union(b)
		}
		scene.Prisms = append(scene.Prisms, p)
	}
	return scene
}

// Highlight помечает призмы с указанными id и снимает отметку с
// остальных. Возвращает число найденных.
func (s *Scene3D) Highlight(ids ...string) int {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	n := 0
	for i := range s.Prisms {
		s.Prisms[i].Highlighted = want[s.Prisms[i].ID]
		if s.Prisms[i].Highlighted {
			n++
		}
	}
	return n
}

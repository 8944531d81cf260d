package importer

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
)

// ============================================================
// Importer
// ============================================================

const (
	// DefaultWallHeight: высота стен в метрах, если SVG ее не задает.
	DefaultWallHeight = 3.0
	// DefaultWallThickness: толщина стены из path в единицах плана.
	DefaultWallThickness = 10.0
)

type Options struct {
	Scale         float64 // единицы плана → метры; 0 означает 1
	WallHeight    float64 // метры
	WallThickness float64 // единицы плана, для стен-path
	JoinTolerance float64 // 0 значит DefaultJoinTolerance, отрицательное отключает сведение
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.WallHeight <= 0 {
		o.WallHeight = DefaultWallHeight
	}
	if o.WallThickness <= 0 {
		o.WallThickness = DefaultWallThickness
	}
	if o.JoinTolerance == 0 {
		o.JoinTolerance = DefaultJoinTolerance
	}
	return o
}

// Result: импортированное состояние плана и id SVG-элементов, которые
// не удалось распознать.
type Result struct {
	State   models.PlanState
	Skipped []string
	Walls   int
	Zones   int
	Markers int
}

// Import переводит SVG-план в слои и элементы. Стены и зоны попадают в
// архитектурный слой, двери и окна опорными точками в слой аннотаций,
// слой безопасности создается пустым.
func Import(r io.Reader, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	shapes, skipped, err := parseSVG(r)
	if err != nil {
		return nil, err
	}

	arch, err := models.NewLayer("Architecture", models.LayerArchitectural, 0)
	if err != nil {
		return nil, err
	}
	safety, err := models.NewLayer("Safety", models.LayerSafety, 1)
	if err != nil {
		return nil, err
	}
	notes, err := models.NewLayer("Openings", models.LayerAnnotation, 2)
	if err != nil {
		return nil, err
	}

	res := &Result{Skipped: skipped}
	res.State.Layers = []models.Layer{arch, safety, notes}

	var openings []shape
	var walls []models.Element
	for _, s := range shapes {
		switch s.kind {
		case kindWall:
			created, err := wallsFrom(s, arch.ID, opts)
			if err != nil {
				res.Skipped = append(res.Skipped, s.id)
				continue
			}
			walls = append(walls, created...)

		case kindRoom, kindBalcony:
			z, err := zoneFrom(s, arch.ID)
			if err != nil {
				res.Skipped = append(res.Skipped, s.id)
				continue
			}
			res.State.Elements = append(res.State.Elements, z)
			res.Zones++

		case kindDoor, kindWindow:
			openings = append(openings, s)
		}
	}
	walls = joinWalls(walls, opts.JoinTolerance)
	res.State.Elements = append(res.State.Elements, walls...)
	res.Walls = len(walls)

	// Проемы привязываются к ближайшей стене, поэтому разбираются после стен.
	for _, s := range openings {
		m, err := openingFrom(s, notes.ID, walls)
		if err != nil {
			res.Skipped = append(res.Skipped, s.id)
			continue
		}
		res.State.Elements = append(res.State.Elements, m)
		res.Markers++
	}

	res.State.Normalize()
	if err := models.ValidateState("import", res.State); err != nil {
		return nil, fmt.Errorf("imported plan is invalid: %w", err)
	}
	return res, nil
}

// ============================================================
// Element builders
// ============================================================

// wallsFrom: rect превращается в осевую линию вдоль длинной стороны с
// толщиной короткой, path в цепочку стен по сегментам.
func wallsFrom(s shape, layerID string, opts Options) ([]models.Element, error) {
	height := opts.WallHeight / opts.Scale

	if s.rect != nil {
		r := s.rect
		var a, b geometry.Point
		thickness := math.Min(r.Width, r.Height)
		if r.Width > r.Height {
			a = geometry.Point{X: r.X, Y: r.Y + r.Height/2}
			b = geometry.Point{X: r.X + r.Width, Y: r.Y + r.Height/2}
		} else {
			a = geometry.Point{X: r.X + r.Width/2, Y: r.Y}
			b = geometry.Point{X: r.X + r.Width/2, Y: r.Y + r.Height}
		}
		w, err := models.NewWall(layerID, a, b, thickness, height)
		if err != nil {
			return nil, err
		}
		return []models.Element{w}, nil
	}

	points, err := parsePath(s.d)
	if err != nil {
		return nil, err
	}
	var out []models.Element
	for i := 1; i < len(points); i++ {
		if geometry.Distance(points[i-1], points[i]) == 0 {
			continue
		}
		w, err := models.NewWall(layerID, points[i-1], points[i], opts.WallThickness, height)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("wall %s has no segments", s.id)
	}
	return out, nil
}

func zoneFrom(s shape, layerID string) (models.Element, error) {
	points, err := shapePoints(s)
	if err != nil {
		return models.Element{}, err
	}
	return models.NewZone(layerID, points, usageFor(s))
}

func shapePoints(s shape) (geometry.Polygon, error) {
	if s.rect != nil {
		r := s.rect
		return geometry.Polygon{
			{X: r.X, Y: r.Y},
			{X: r.X + r.Width, Y: r.Y},
			{X: r.X + r.Width, Y: r.Y + r.Height},
			{X: r.X, Y: r.Y + r.Height},
		}, nil
	}
	points, err := parsePath(s.d)
	if err != nil {
		return nil, err
	}
	return geometry.Polygon(points).Open(), nil
}

// openingFrom ставит опорную точку в центр проема и запоминает ближайшую
// стену и положение на ней.
func openingFrom(s shape, layerID string, walls []models.Element) (models.Element, error) {
	points, err := shapePoints(s)
	if err != nil {
		return models.Element{}, err
	}
	center := geometry.BoundsOf(points...)
	pos := geometry.Point{X: (center.Min.X + center.Max.X) / 2, Y: (center.Min.Y + center.Max.Y) / 2}

	meta := map[string]string{
		"opening": string(s.kind),
		"svgId":   s.id,
	}
	if wallID, offset, ok := nearestWall(pos, walls); ok {
		meta["wallId"] = wallID
		meta["offset"] = strconv.FormatFloat(offset, 'f', 4, 64)
	}
	return models.NewMarker(layerID, pos, models.PointReference, meta)
}

func nearestWall(p geometry.Point, walls []models.Element) (string, float64, bool) {
	var nearestID string
	var nearestOffset float64
	minDist := math.MaxFloat64

	for _, e := range walls {
		w, ok := e.Wall()
		if !ok {
			continue
		}
		dist, offset := w.Segment().Project(p)
		if dist < minDist {
			minDist = dist
			nearestID = e.ID
			nearestOffset = offset
		}
	}
	return nearestID, nearestOffset, nearestID != ""
}

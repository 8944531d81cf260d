package models

import (
	"fmt"

	"safety-planner/internal/planner/geometry"
)

// ============================================================
// Element
// ============================================================

type ElementKind string

const (
	KindWall  ElementKind = "wall"
	KindZone  ElementKind = "zone"
	KindPoint ElementKind = "point"
)

// Shape: закрытое множество геометрий элемента: *Wall, *Zone, *Marker.
// Неэкспортируемый метод не дает объявить новую реализацию вне пакета.
type Shape interface {
	Kind() ElementKind
	cloneShape() Shape
}

type Element struct {
	ID      string `json:"id" validate:"required"`
	LayerID string `json:"layerId" validate:"required"`
	Shape   Shape  `json:"-" validate:"-"`
}

func (e Element) Kind() ElementKind {
	if e.Shape == nil {
		return ""
	}
	return e.Shape.Kind()
}

func (e Element) Wall() (*Wall, bool) {
	w, ok := e.Shape.(*Wall)
	return w, ok
}

func (e Element) Zone() (*Zone, bool) {
	z, ok := e.Shape.(*Zone)
	return z, ok
}

func (e Element) Marker() (*Marker, bool) {
	m, ok := e.Shape.(*Marker)
	return m, ok
}

// Clone копирует элемент вместе с геометрией.
func (e Element) Clone() Element {
	if e.Shape != nil {
		e.Shape = e.Shape.cloneShape()
	}
	return e
}

// WithoutRisk возвращает копию, у зоны которой сброшен кэш RiskSummary.
// Кэш является производным состоянием и не участвует в версионировании.
func (e Element) WithoutRisk() Element {
	e = e.Clone()
	if z, ok := e.Zone(); ok {
		z.Risk = nil
	}
	return e
}

// Bounds возвращает ограничивающий прямоугольник геометрии элемента.
func (e Element) Bounds() (geometry.Bounds, error) {
	switch s := e.Shape.(type) {
	case *Wall:
		return s.Segment().Outline(s.Thickness).Bounds(), nil
	case *Zone:
		return s.Polygon.Bounds(), nil
	case *Marker:
		return geometry.BoundsOf(s.Position), nil
	default:
		return geometry.Bounds{}, fmt.Errorf("element %s: unknown shape %T", e.ID, e.Shape)
	}
}

// ============================================================
// Wall
// ============================================================

type Wall struct {
	Start     geometry.Point `json:"start"`
	End       geometry.Point `json:"end"`
	Thickness float64        `json:"thickness" validate:"gt=0"`
	Height    float64        `json:"height" validate:"gt=0"`
	Material  string         `json:"material,omitempty"`
}

func (w *Wall) Kind() ElementKind { return KindWall }

func (w *Wall) cloneShape() Shape {
	cp := *w
	return &cp
}

func (w *Wall) Segment() geometry.Segment {
	return geometry.Segment{A: w.Start, B: w.End}
}

func NewWall(layerID string, start, end geometry.Point, thickness, height float64) (Element, error) {
	e := Element{
		ID:      NewID(),
		LayerID: layerID,
		Shape:   &Wall{Start: start, End: end, Thickness: thickness, Height: height},
	}
	return e, validateElement(e)
}

// ============================================================
// Zone
// ============================================================

type Zone struct {
	Polygon        geometry.Polygon `json:"polygon" validate:"min=3"`
	Usage          string           `json:"usage" validate:"required"`
	RelatedZoneIDs []string         `json:"relatedZoneIds,omitempty"`
	Risk           *RiskSummary     `json:"risk,omitempty"`
}

func (z *Zone) Kind() ElementKind { return KindZone }

func (z *Zone) cloneShape() Shape {
	cp := *z
	cp.Polygon = cloneSlice(z.Polygon, func(p geometry.Point) geometry.Point { return p })
	cp.RelatedZoneIDs = cloneStrings(z.RelatedZoneIDs)
	if z.Risk != nil {
		r := z.Risk.Clone()
		cp.Risk = &r
	}
	return &cp
}

// RelatesTo сообщает, перечислен ли id среди связанных зон.
func (z *Zone) RelatesTo(id string) bool {
	for _, rel := range z.RelatedZoneIDs {
		if rel == id {
			return true
		}
	}
	return false
}

func NewZone(layerID string, polygon geometry.Polygon, usage string) (Element, error) {
	e := Element{
		ID:      NewID(),
		LayerID: layerID,
		Shape:   &Zone{Polygon: polygon, Usage: usage},
	}
	return e, validateElement(e)
}

// ============================================================
// Marker
// ============================================================

type PointCategory string

const (
	PointEquipment PointCategory = "equipment"
	PointFinding   PointCategory = "finding"
	PointReference PointCategory = "reference"
	PointSensor    PointCategory = "sensor"
)

// Marker: точечный элемент (оборудование, датчик, отметка).
type Marker struct {
	Position geometry.Point    `json:"position"`
	Category PointCategory     `json:"category" validate:"oneof=equipment finding reference sensor"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (m *Marker) Kind() ElementKind { return KindPoint }

func (m *Marker) cloneShape() Shape {
	cp := *m
	if m.Metadata != nil {
		cp.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func NewMarker(layerID string, position geometry.Point, category PointCategory, metadata map[string]string) (Element, error) {
	e := Element{
		ID:      NewID(),
		LayerID: layerID,
		Shape:   &Marker{Position: position, Category: category, Metadata: metadata},
	}
	return e, validateElement(e)
}

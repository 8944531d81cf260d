package importer

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"safety-planner/internal/planner/models"
)

// ============================================================
// XML Structures
// ============================================================

type svgDoc struct {
	XMLName xml.Name `xml:"svg"`
	svgGroup
}

// svgGroup: содержимое <svg> или вложенной <g>.
type svgGroup struct {
	ID       string       `xml:"id,attr"`
	Rects    []svgRect    `xml:"rect"`
	Paths    []svgPath    `xml:"path"`
	Polygons []svgPolygon `xml:"polygon"`
	Groups   []svgGroup   `xml:"g"`
}

type svgRect struct {
	ID     string  `xml:"id,attr"`
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
}

type svgPath struct {
	ID string `xml:"id,attr"`
	D  string `xml:"d,attr"`
}

type svgPolygon struct {
	ID     string `xml:"id,attr"`
	Points string `xml:"points,attr"`
}

// ============================================================
// Classification
// ============================================================

type kind string

const (
	kindWall    kind = "wall"
	kindDoor    kind = "door"
	kindWindow  kind = "window"
	kindRoom    kind = "room"
	kindBalcony kind = "balcony"
)

// shape: распознанный элемент SVG до перевода в модель плана.
type shape struct {
	id   string
	kind kind
	rect *svgRect
	d    string // path d или polygon points в виде path
}

func parseSVG(r io.Reader) ([]shape, []string, error) {
	var doc svgDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: parse svg: %w", models.ErrValidation, err)
	}

	var shapes []shape
	var skipped []string
	var walk func(g svgGroup)
	walk = func(g svgGroup) {
		for i := range g.Rects {
			rect := g.Rects[i]
			if k := classify(rect.ID); k != "" {
				shapes = append(shapes, shape{id: rect.ID, kind: k, rect: &rect})
			} else if rect.ID != "" {
				skipped = append(skipped, rect.ID)
			}
		}
		for _, p := range g.Paths {
			if k := classify(p.ID); k != "" {
				shapes = append(shapes, shape{id: p.ID, kind: k, d: p.D})
			} else if p.ID != "" {
				skipped = append(skipped, p.ID)
			}
		}
		for _, p := range g.Polygons {
			if k := classify(p.ID); k != "" {
				shapes = append(shapes, shape{id: p.ID, kind: k, d: "M " + p.Points + " Z"})
			} else if p.ID != "" {
				skipped = append(skipped, p.ID)
			}
		}
		for _, child := range g.Groups {
			walk(child)
		}
	}
	walk(doc.svgGroup)
	return shapes, skipped, nil
}

func classify(id string) kind {
	switch {
	case strings.HasPrefix(id, "Wall_"), strings.HasPrefix(id, "Hui_Wall_"):
		return kindWall
	case strings.HasPrefix(id, "Door_"):
		return kindDoor
	case strings.HasPrefix(id, "Window_"):
		return kindWindow
	case strings.HasPrefix(id, "Room_"), strings.HasSuffix(id, "_room"), strings.HasSuffix(id, "_Room"):
		return kindRoom
	case strings.HasPrefix(id, "Balcony"):
		return kindBalcony
	}
	return ""
}

// usageFor выводит назначение зоны из id: Hall_room → hall.
func usageFor(s shape) string {
	if s.kind == kindBalcony {
		return "balcony"
	}
	for _, suffix := range []string{"_room", "_Room"} {
		if name, ok := strings.CutSuffix(s.id, suffix); ok && name != "" {
			return strings.ToLower(name)
		}
	}
	return "room"
}

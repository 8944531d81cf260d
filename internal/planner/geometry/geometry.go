package geometry

import (
	"math"
)

// ============================================================
// Geometry primitives
// ============================================================

const epsilon = 1e-9

type Point struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
}

// Distance возвращает евклидово расстояние между точками.
func Distance(p1, p2 Point) float64 {
	dx := p1.X - p2.X
	dy := p1.Y - p2.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// ============================================================
// Segment
// ============================================================

type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

func (s Segment) Length() float64 {
	return Distance(s.A, s.B)
}

// Project возвращает расстояние от точки до отрезка и параметр t ∈ [0,1]
// ближайшей точки на отрезке.
func (s Segment) Project(p Point) (float64, float64) {
	dx := s.B.X - s.A.X
	dy := s.B.Y - s.A.Y
	lenSq := dx*dx + dy*dy

	if lenSq == 0 {
		return Distance(p, s.A), 0
	}

	t := ((p.X-s.A.X)*dx + (p.Y-s.A.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	proj := Point{X: s.A.X + t*dx, Y: s.A.Y + t*dy}
	return Distance(p, proj), t
}

// Normal возвращает единичную нормаль к отрезку (левую, по ходу A→B).
// Для вырожденного отрезка возвращает нулевой вектор.
func (s Segment) Normal() Point {
	l := s.Length()
	if l < epsilon {
		return Point{}
	}
	return Point{X: -(s.B.Y - s.A.Y) / l, Y: (s.B.X - s.A.X) / l}
}

// Outline строит прямоугольник толщиной thickness вокруг осевой линии.
func (s Segment) Outline(thickness float64) Polygon {
	n := s.Normal().Scale(thickness / 2)
	return Polygon{
		s.A.Add(n),
		s.B.Add(n),
		s.B.Sub(n),
		s.A.Sub(n),
	}
}

// ============================================================
// Polygon
// ============================================================

// Polygon: упорядоченный список вершин. Замыкание не требуется:
// последняя вершина неявно соединяется с первой.
type Polygon []Point

// Valid сообщает, что у полигона хотя бы три вершины.
func (pg Polygon) Valid() bool {
	return len(pg) >= 3
}

// Open убирает дубль замыкающей точки, если он есть.
func (pg Polygon) Open() Polygon {
	if len(pg) > 1 {
		first, last := pg[0], pg[len(pg)-1]
		if first.X == last.X && first.Y == last.Y {
			return pg[:len(pg)-1]
		}
	}
	return pg
}

// Area: площадь по формуле шнурования (всегда неотрицательная).
func (pg Polygon) Area() float64 {
	return math.Abs(pg.signedArea())
}

func (pg Polygon) signedArea() float64 {
	pts := pg.Open()
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

// Centroid возвращает центр масс полигона; для вырожденного полигона
// среднее арифметическое вершин.
func (pg Polygon) Centroid() Point {
	pts := pg.Open()
	if len(pts) == 0 {
		return Point{}
	}

	a := pg.signedArea()
	if math.Abs(a) < epsilon {
		var sumX, sumY float64
		for _, p := range pts {
			sumX += p.X
			sumY += p.Y
		}
		return Point{X: sumX / float64(len(pts)), Y: sumY / float64(len(pts))}
	}

	var cx, cy float64
	for i := range pts {
		j := (i + 1) % len(pts)
		cross := pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
		cx += (pts[i].X + pts[j].X) * cross
		cy += (pts[i].Y + pts[j].Y) * cross
	}
	return Point{X: cx / (6 * a), Y: cy / (6 * a)}
}

// Contains проверяет попадание точки внутрь (ray casting). Точки на
// границе считаются внутренними.
func (pg Polygon) Contains(p Point) bool {
	pts := pg.Open()
	if len(pts) < 3 {
		return false
	}

	for i := range pts {
		j := (i + 1) % len(pts)
		if d, _ := (Segment{A: pts[i], B: pts[j]}).Project(p); d < epsilon {
			return true
		}
	}

	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		pi, pj := pts[i], pts[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

func (pg Polygon) Bounds() Bounds {
	return BoundsOf(pg...)
}

// ============================================================
// Bounds
// ============================================================

type Bounds struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// BoundsOf возвращает ограничивающий прямоугольник; для пустого набора
// точек получается нулевой Bounds.
func BoundsOf(points ...Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}

	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b = b.Extend(p)
	}
	return b
}

func (b Bounds) Extend(p Point) Bounds {
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	return b
}

func (b Bounds) Union(o Bounds) Bounds {
	return b.Extend(o.Min).Extend(o.Max)
}

func (b Bounds) Width() float64 {
	return b.Max.X - b.Min.X
}

func (b Bounds) Height() float64 {
	return b.Max.Y - b.Min.Y
}

func (b Bounds) Empty() bool {
	return b.Width() <= 0 && b.Height() <= 0
}

// ============================================================
// Transform
// ============================================================

// Transform: равномерное масштабирование со сдвигом:
// screen = plan*Scale + Offset.
type Transform struct {
	Scale  float64 `json:"scale"`
	Offset Point   `json:"offset"`
}

func Identity() Transform {
	return Transform{Scale: 1}
}

func (t Transform) Apply(p Point) Point {
	return p.Scale(t.Scale).Add(t.Offset)
}

// Invert переводит экранную точку обратно в координаты плана.
func (t Transform) Invert(p Point) Point {
	if t.Scale == 0 {
		return p
	}
	return p.Sub(t.Offset).Scale(1 / t.Scale)
}

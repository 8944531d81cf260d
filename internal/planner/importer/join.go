package importer

import (
	"math"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
)

// ============================================================
// Wall joints
// ============================================================

const (
	// DefaultJoinTolerance: концы стен ближе этого расстояния сводятся в
	// одну точку (единицы плана).
	DefaultJoinTolerance = 8.0
	// axisSnapTolerance: стена с отклонением по оси не больше этого
	// выравнивается строго по горизонтали или вертикали.
	axisSnapTolerance = 4.0
)

// joinWalls сводит близкие концы стен к общей вершине и выравнивает
// почти осевые стены. Стены нулевой длины после сведения отбрасываются.
func joinWalls(walls []models.Element, tolerance float64) []models.Element {
	if len(walls) == 0 || tolerance <= 0 {
		return walls
	}

	var vertices []geometry.Point
	vertexOf := func(p geometry.Point) int {
		for i, v := range vertices {
			if geometry.Distance(p, v) <= tolerance {
				return i
			}
		}
		vertices = append(vertices, p)
		return len(vertices) - 1
	}

	type edge struct{ a, b int }
	edges := make([]edge, len(walls))
	for i, e := range walls {
		w, _ := e.Wall()
		edges[i] = edge{vertexOf(w.Start), vertexOf(w.End)}
	}

	snapAxisAligned(vertices, func(yield func(a, b int)) {
		for _, e := range edges {
			yield(e.a, e.b)
		}
	})

	out := walls[:0]
	for i, e := range walls {
		ed := edges[i]
		if ed.a == ed.b {
			continue
		}
		w, _ := e.Wall()
		w.Start, w.End = vertices[ed.a], vertices[ed.b]
		out = append(out, e)
	}
	return out
}

// snapAxisAligned усредняет координату вершин почти горизонтальных и почти
// вертикальных стен. Вершина на нескольких таких стенах получает среднее.
func snapAxisAligned(vertices []geometry.Point, edges func(yield func(a, b int))) {
	type agg struct {
		sumX, sumY float64
		cntX, cntY int
	}
	sums := make(map[int]*agg)
	at := func(i int) *agg {
		if sums[i] == nil {
			sums[i] = &agg{}
		}
		return sums[i]
	}

	edges(func(a, b int) {
		if a == b {
			return
		}
		p, q := vertices[a], vertices[b]
		switch {
		case math.Abs(p.Y-q.Y) <= axisSnapTolerance:
			y := (p.Y + q.Y) / 2
			for _, i := range []int{a, b} {
				at(i).sumY += y
				at(i).cntY++
			}
		case math.Abs(p.X-q.X) <= axisSnapTolerance:
			x := (p.X + q.X) / 2
			for _, i := range []int{a, b} {
				at(i).sumX += x
				at(i).cntX++
			}
		}
	})

	for i, a := range sums {
		if a.cntX > 0 {
			vertices[i].X = a.sumX / float64(a.cntX)
		}
		if a.cntY > 0 {
			vertices[i].Y = a.sumY / float64(a.cntY)
		}
	}
}

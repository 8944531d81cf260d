package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func square(size float64) Polygon {
	return Polygon{{0, 0}, {size, 0}, {size, size}, {0, size}}
}

func TestSegmentProject(t *testing.T) {
	s := Segment{A: Point{0, 0}, B: Point{10, 0}}

	d, tt := s.Project(Point{5, 3})
	assert.InDelta(t, 3, d, 1e-9)
	assert.InDelta(t, 0.5, tt, 1e-9)

	d, tt = s.Project(Point{-4, 3})
	assert.InDelta(t, 5, d, 1e-9)
	assert.Equal(t, 0.0, tt)

	t.Run("degenerate", func(t *testing.T) {
		d, tt := Segment{A: Point{1, 1}, B: Point{1, 1}}.Project(Point{4, 5})
		assert.InDelta(t, 5, d, 1e-9)
		assert.Equal(t, 0.0, tt)
	})
}

func TestSegmentOutline(t *testing.T) {
	out := Segment{A: Point{0, 0}, B: Point{10, 0}}.Outline(2)

	assert.Len(t, out, 4)
	assert.InDelta(t, 20, out.Area(), 1e-9)
	assert.True(t, out.Contains(Point{5, 0.9}))
	assert.False(t, out.Contains(Point{5, 1.1}))
}

func TestPolygon(t *testing.T) {
	t.Run("area and centroid", func(t *testing.T) {
		pg := square(4)
		assert.InDelta(t, 16, pg.Area(), 1e-9)
		c := pg.Centroid()
		assert.InDelta(t, 2, c.X, 1e-9)
		assert.InDelta(t, 2, c.Y, 1e-9)
	})

	t.Run("closed ring is treated as open", func(t *testing.T) {
		pg := append(square(4), Point{0, 0})
		assert.Len(t, pg.Open(), 4)
		assert.InDelta(t, 16, pg.Area(), 1e-9)
	})

	t.Run("clockwise area is positive", func(t *testing.T) {
		pg := Polygon{{0, 0}, {0, 4}, {4, 4}, {4, 0}}
		assert.InDelta(t, 16, pg.Area(), 1e-9)
	})

	t.Run("contains", func(t *testing.T) {
		pg := square(4)
		assert.True(t, pg.Contains(Point{1, 1}))
		assert.True(t, pg.Contains(Point{0, 2}), "boundary counts as inside")
		assert.False(t, pg.Contains(Point{5, 1}))
		assert.False(t, Polygon{{0, 0}, {1, 1}}.Contains(Point{0, 0}))
	})

	t.Run("valid", func(t *testing.T) {
		assert.True(t, square(1).Valid())
		assert.False(t, Polygon{{0, 0}, {1, 0}}.Valid())
	})
}

func TestBounds(t *testing.T) {
	b := BoundsOf(Point{3, -1}, Point{-2, 4}, Point{0, 0})
	assert.Equal(t, Point{-2, -1}, b.Min)
	assert.Equal(t, Point{3, 4}, b.Max)
	assert.Equal(t, 5.0, b.Width())
	assert.Equal(t, 5.0, b.Height())

	assert.True(t, BoundsOf().Empty())
	u := b.Union(BoundsOf(Point{10, 10}))
	assert.Equal(t, Point{10, 10}, u.Max)
}

func TestTransform(t *testing.T) {
	tr := Transform{Scale: 2, Offset: Point{10, 20}}
	p := Point{3, 4}

	screen := tr.Apply(p)
	assert.Equal(t, Point{16, 28}, screen)
	assert.Equal(t, p, tr.Invert(screen))
	assert.Equal(t, p, Identity().Apply(p))
}

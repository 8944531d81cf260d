package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-planner/internal/planner/geometry"
	"safety-planner/internal/planner/models"
)

const floorSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="1000" height="600">
  <rect id="Wall_1" x="0" y="0" width="1000" height="20"/>
  <rect id="Wall_2" x="0" y="0" width="20" height="600"/>
  <path id="Hui_Wall_3" d="M 0 600 L 1000 600 L 1000 0"/>
  <rect id="Room_Main" x="20" y="20" width="480" height="560"/>
  <path id="Hall_room" d="M 500 20 h 480 v 280 h -480 Z"/>
  <g id="annex">
    <polygon id="Balcony_1" points="500,300 980,300 980,580 500,580"/>
    <rect id="Door_1" x="240" y="-5" width="80" height="30"/>
  </g>
  <rect id="Window_1" x="-5" y="200" width="30" height="90"/>
  <rect id="Furniture_sofa" x="100" y="100" width="50" height="20"/>
</svg>`

func TestImportClassifiesElements(t *testing.T) {
	res, err := Import(strings.NewReader(floorSVG), Options{Scale: 0.01})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Walls) // две rect-стены и два сегмента path
	assert.Equal(t, 3, res.Zones)
	assert.Equal(t, 2, res.Markers)
	assert.Equal(t, []string{"Furniture_sofa"}, res.Skipped)

	require.Len(t, res.State.Layers, 3)
	assert.Equal(t, models.LayerArchitectural, res.State.Layers[0].Category)
	assert.Equal(t, models.LayerSafety, res.State.Layers[1].Category)
	assert.Equal(t, models.LayerAnnotation, res.State.Layers[2].Category)

	usages := map[string]bool{}
	for _, e := range res.State.Elements {
		if z, ok := e.Zone(); ok {
			usages[z.Usage] = true
			assert.Equal(t, res.State.Layers[0].ID, e.LayerID)
		}
	}
	assert.Equal(t, map[string]bool{"room": true, "hall": true, "balcony": true}, usages)
}

func TestImportRectWallUsesLongSide(t *testing.T) {
	res, err := Import(strings.NewReader(floorSVG), Options{Scale: 0.01})
	require.NoError(t, err)

	var found bool
	for _, e := range res.State.Elements {
		w, ok := e.Wall()
		if !ok || w.Thickness != 20 || w.Start.Y != 10 {
			continue
		}
		found = true
		assert.Equal(t, geometry.Point{X: 0, Y: 10}, w.Start)
		assert.Equal(t, geometry.Point{X: 1000, Y: 10}, w.End)
		assert.InDelta(t, 300, w.Height, 1e-9) // 3 м при масштабе 0.01
	}
	assert.True(t, found)
}

func TestImportOpeningsAttachToNearestWall(t *testing.T) {
	res, err := Import(strings.NewReader(floorSVG), Options{})
	require.NoError(t, err)

	walls := map[string]*models.Wall{}
	for _, e := range res.State.Elements {
		if w, ok := e.Wall(); ok {
			walls[e.ID] = w
		}
	}

	for _, e := range res.State.Elements {
		m, ok := e.Marker()
		if !ok {
			continue
		}
		assert.Equal(t, models.PointReference, m.Category)
		assert.Equal(t, res.State.Layers[2].ID, e.LayerID)
		wall, ok := walls[m.Metadata["wallId"]]
		require.True(t, ok, "opening %s has no wall", m.Metadata["svgId"])

		switch m.Metadata["svgId"] {
		case "Door_1":
			assert.Equal(t, "door", m.Metadata["opening"])
			assert.Equal(t, geometry.Point{X: 280, Y: 10}, m.Position)
			assert.Equal(t, 10.0, wall.Start.Y)
			assert.Equal(t, "0.2800", m.Metadata["offset"])
		case "Window_1":
			assert.Equal(t, "window", m.Metadata["opening"])
			assert.Equal(t, 10.0, wall.Start.X)
		default:
			t.Fatalf("unexpected marker %v", m.Metadata)
		}
	}
}

func TestImportJoinsWallEndpoints(t *testing.T) {
	// Угол из двух стен с зазором около 4 и перекосом 3 по каждой оси.
	svg := `<svg>
  <path id="Wall_a" d="M 0 0 L 200 3"/>
  <path id="Wall_b" d="M 203 0 L 203 200"/>
  <path id="Wall_stub" d="M 0 300 L 4 302"/>
</svg>`
	res, err := Import(strings.NewReader(svg), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Walls) // заглушка схлопнулась в точку

	var horizontal, vertical *models.Wall
	for _, e := range res.State.Elements {
		w, ok := e.Wall()
		require.True(t, ok)
		if w.Start.X == w.End.X {
			vertical = w
		} else {
			horizontal = w
		}
	}
	require.NotNil(t, horizontal)
	require.NotNil(t, vertical)
	assert.Equal(t, horizontal.Start.Y, horizontal.End.Y)
	assert.Equal(t, horizontal.End, vertical.Start)

	res, err = Import(strings.NewReader(svg), Options{JoinTolerance: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Walls)
}

func TestImportInvalidXML(t *testing.T) {
	_, err := Import(strings.NewReader("<svg><rect"), Options{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestImportDegenerateShapesSkipped(t *testing.T) {
	svg := `<svg>
  <rect id="Wall_flat" x="0" y="0" width="100" height="0"/>
  <path id="Tiny_room" d="M 0 0 L 5 5"/>
</svg>`
	res, err := Import(strings.NewReader(svg), Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Wall_flat", "Tiny_room"}, res.Skipped)
	assert.Empty(t, res.State.Elements)
}

func TestParsePath(t *testing.T) {
	cases := []struct {
		d    string
		want []geometry.Point
	}{
		{"M 0 0 L 10 0 L 10 10", []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}},
		{"m 5,5 l 10,0 v 5 h -10 z", []geometry.Point{{X: 5, Y: 5}, {X: 15, Y: 5}, {X: 15, Y: 10}, {X: 5, Y: 10}, {X: 5, Y: 5}}},
		{"M 0 0 10 0 10 10", []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}},
		{"M1 1H4V3", []geometry.Point{{X: 1, Y: 1}, {X: 4, Y: 1}, {X: 4, Y: 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.d, func(t *testing.T) {
			got, err := parsePath(tc.d)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := parsePath("   ")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, kindWall, classify("Wall_7"))
	assert.Equal(t, kindWall, classify("Hui_Wall_2"))
	assert.Equal(t, kindDoor, classify("Door_main"))
	assert.Equal(t, kindWindow, classify("Window_3"))
	assert.Equal(t, kindRoom, classify("Room_12"))
	assert.Equal(t, kindRoom, classify("Toilet_room"))
	assert.Equal(t, kindRoom, classify("Kitchen_Room"))
	assert.Equal(t, kindBalcony, classify("Balcony"))
	assert.Equal(t, kindBalcony, classify("Balcony_2"))
	assert.Equal(t, kind(""), classify("Sofa"))
}

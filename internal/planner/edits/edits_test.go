package edits

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-planner/internal/planner/models"
	"safety-planner/internal/planner/versioning"
)

const batch = `[
  {"op": "addLayer", "layer": {"id": "L1", "name": "Ground", "category": "architectural", "visible": true, "order": 0}},
  {"op": "addElement", "element": {"id": "Z1", "layerId": "L1", "kind": "zone",
    "zone": {"polygon": [{"x":0,"y":0},{"x":4,"y":0},{"x":4,"y":4}], "usage": "storage"}}},
  {"op": "addElement", "element": {"id": "Z2", "layerId": "L1", "kind": "zone",
    "zone": {"polygon": [{"x":4,"y":0},{"x":8,"y":0},{"x":8,"y":4}], "usage": "office"}}},
  {"op": "addElement", "element": {"id": "W1", "layerId": "L1", "kind": "wall",
    "wall": {"start": {"x":0,"y":0}, "end": {"x":8,"y":0}, "thickness": 0.2, "height": 3}}},
  {"op": "linkZones", "zoneId": "Z1", "relatedId": "Z2"},
  {"op": "addFinding", "finding": {"id": "F1", "zoneId": "Z1", "type": "fall_risk", "severity": 3, "frequency": 2, "description": "open edge"}}
]`

func decode(t *testing.T, raw string) []Operation {
	t.Helper()
	var ops []Operation
	require.NoError(t, json.Unmarshal([]byte(raw), &ops))
	return ops
}

func newPlan(t *testing.T) (*models.Workspace, *models.Plan) {
	t.Helper()
	ws := models.NewWorkspace()
	p, err := models.NewPlan("Lab", "", 1)
	require.NoError(t, err)
	require.NoError(t, ws.AddPlan(p))
	return ws, p
}

func TestCompileAndCommit(t *testing.T) {
	ws, p := newPlan(t)
	mutate, err := Compile(p.ID, decode(t, batch))
	require.NoError(t, err)

	c, err := versioning.New().Commit(ws, p.ID, versioning.CommitOptions{Message: "setup"}, mutate)
	require.NoError(t, err)
	assert.Len(t, c.Diff.Elements.Added, 3)

	s, err := ws.State(p.ID)
	require.NoError(t, err)
	z1, ok := s.Element("Z1")
	require.True(t, ok)
	zone, _ := z1.Zone()
	assert.Equal(t, []string{"Z2"}, zone.RelatedZoneIDs)

	f, ok := s.Finding("F1")
	require.True(t, ok)
	assert.Equal(t, p.ID, f.PlanID)
	assert.False(t, f.CreatedAt.IsZero())
}

func TestCompileRemoveAndUnlink(t *testing.T) {
	ws, p := newPlan(t)
	v := versioning.New()
	mutate, err := Compile(p.ID, decode(t, batch))
	require.NoError(t, err)
	_, err = v.Commit(ws, p.ID, versioning.CommitOptions{}, mutate)
	require.NoError(t, err)

	mutate, err = Compile(p.ID, decode(t, `[
		{"op": "unlinkZones", "zoneId": "Z1", "relatedId": "Z2"},
		{"op": "removeElement", "id": "W1"},
		{"op": "removeFinding", "id": "F1"}
	]`))
	require.NoError(t, err)
	c, err := v.Commit(ws, p.ID, versioning.CommitOptions{}, mutate)
	require.NoError(t, err)
	assert.Equal(t, []string{"W1"}, c.Diff.Elements.Removed)
	assert.Equal(t, []string{"F1"}, c.Diff.Findings.Removed)

	s, err := ws.State(p.ID)
	require.NoError(t, err)
	z1, _ := s.Element("Z1")
	zone, _ := z1.Zone()
	assert.Empty(t, zone.RelatedZoneIDs)
}

func TestCompileAssignsIDs(t *testing.T) {
	ws, p := newPlan(t)
	mutate, err := Compile(p.ID, decode(t, `[
		{"op": "addLayer", "layer": {"name": "Safety", "category": "safety", "order": 1}}
	]`))
	require.NoError(t, err)
	c, err := versioning.New().Commit(ws, p.ID, versioning.CommitOptions{}, mutate)
	require.NoError(t, err)
	require.Len(t, c.Diff.Layers.Added, 1)
	assert.NotEmpty(t, c.Diff.Layers.Added[0].ID)
}

func TestCompileRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":           `[]`,
		"unknown op":      `[{"op": "explode"}]`,
		"missing layer":   `[{"op": "addLayer"}]`,
		"missing id":      `[{"op": "removeElement"}]`,
		"missing link":    `[{"op": "linkZones", "zoneId": "Z1"}]`,
		"bad kind":        `[{"op": "addElement", "element": {"id": "X", "layerId": "L1", "kind": "door"}}]`,
		"kind w/o shape":  `[{"op": "addElement", "element": {"id": "X", "layerId": "L1", "kind": "zone"}}]`,
		"missing finding": `[{"op": "updateFinding"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile("plan", decode(t, raw))
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestCompiledMutationFailureAbortsCommit(t *testing.T) {
	ws, p := newPlan(t)
	mutate, err := Compile(p.ID, decode(t, `[
		{"op": "addLayer", "layer": {"id": "L1", "name": "Ground", "category": "architectural"}},
		{"op": "removeElement", "id": "ghost"}
	]`))
	require.NoError(t, err)

	_, err = versioning.New().Commit(ws, p.ID, versioning.CommitOptions{}, mutate)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, ws.Commits)
	assert.Empty(t, ws.Plans[p.ID].Layers)
}
